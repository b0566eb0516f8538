// Package common - Failure taxonomy shared by the detection pipeline stages.
package common

import "github.com/pkg/errors"

// Kind classifies a pipeline failure so callers can decide who is at fault.
type Kind int

const (
	// KindUnknown is any failure that is not part of the taxonomy (e.g. a backend runtime error).
	KindUnknown Kind = iota
	// KindBadInput is a malformed, oversized or empty source buffer, or unusable dimensions.
	KindBadInput
	// KindUnsupportedFormat is a buffer the decoder cannot interpret or whose format is not
	// allow-listed.
	KindUnsupportedFormat
	// KindInvalidOutputShape is a backend output tensor whose layout cannot be resolved, or a
	// missing output.
	KindInvalidOutputShape
)

// Sentinel errors. Stages wrap these with context; use errors.Is or KindOf to classify.
var (
	ErrBadInput           = errors.New("bad input")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrInvalidOutputShape = errors.New("invalid output shape")
)

// String returns the stable code used in logs and CLI output.
func (k Kind) String() string {
	switch k {
	case KindBadInput:
		return "BadInput"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindInvalidOutputShape:
		return "InvalidOutputShape"
	default:
		return "Unknown"
	}
}

// ClientFault reports whether the failure was caused by the submitted data rather than the
// model or the runtime.
func (k Kind) ClientFault() bool {
	return k == KindBadInput || k == KindUnsupportedFormat
}

// KindOf maps an error produced anywhere in the pipeline back to its Kind.
//
// Arguments:
//   - err: The error to classify. May be wrapped any number of times.
//
// Returns:
//   - Kind: The matching kind, or KindUnknown when err is nil or not part of the taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrBadInput):
		return KindBadInput
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrInvalidOutputShape):
		return KindInvalidOutputShape
	default:
		return KindUnknown
	}
}

// BadInputf wraps ErrBadInput with a formatted message and a stack trace.
func BadInputf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrBadInput, format, args...)
}

// UnsupportedFormatf wraps ErrUnsupportedFormat with a formatted message and a stack trace.
func UnsupportedFormatf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnsupportedFormat, format, args...)
}

// InvalidOutputShapef wraps ErrInvalidOutputShape with a formatted message and a stack trace.
func InvalidOutputShapef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidOutputShape, format, args...)
}
