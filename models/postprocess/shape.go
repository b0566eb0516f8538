// Package postprocess - Output layout resolution for detector tensors.
package postprocess

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/common"
)

// LayoutKind tells how candidate rows are arranged in a raw output buffer.
type LayoutKind int

const (
	// ChannelMajor buffers hold one plane of N values per channel and must be transposed.
	ChannelMajor LayoutKind = iota + 1
	// CandidateMajor buffers hold one contiguous row of stride values per candidate.
	CandidateMajor
	// FallbackInferred buffers had unrecognised dims; N is derived from the buffer length and
	// rows are read candidate-major.
	FallbackInferred
)

func (k LayoutKind) String() string {
	switch k {
	case ChannelMajor:
		return "ChannelMajor"
	case CandidateMajor:
		return "CandidateMajor"
	case FallbackInferred:
		return "FallbackInferred"
	default:
		return "Unknown"
	}
}

// Layout is the resolved arrangement of a raw output tensor.
type Layout struct {
	Kind          LayoutKind
	NumCandidates int
}

func (l Layout) String() string {
	return fmt.Sprintf("%s{%d}", l.Kind, l.NumCandidates)
}

// ResolveLayout classifies output dims. The rules are applied in order:
//
//	[1, stride, N]  -> ChannelMajor{N}
//	[1, N, stride]  -> CandidateMajor{N}
//	other rank 3    -> FallbackInferred{length / stride}
//	[stride, N]     -> ChannelMajor{N}
//	other rank 2    -> CandidateMajor{dims[0]}
//	other rank      -> FallbackInferred{length / stride}
//
// Arguments:
//   - dims: The shape reported by the backend.
//   - length: The number of values in the buffer.
//   - stride: Values per candidate (4 box values plus the class scores).
//
// Returns:
//   - Layout: The resolved layout.
//   - error: common.ErrInvalidOutputShape for empty or negative dims, or when N <= 0.
func ResolveLayout(dims []int64, length, stride int) (Layout, error) {
	if stride <= 0 {
		return Layout{}, errors.Errorf("stride must be positive, got %d", stride)
	}
	if len(dims) == 0 {
		return Layout{}, common.InvalidOutputShapef("output has no dimensions")
	}
	for _, d := range dims {
		if d < 0 {
			return Layout{}, common.InvalidOutputShapef("output dims %v contain a negative value", dims)
		}
	}

	s := int64(stride)
	var layout Layout
	switch len(dims) {
	case 3:
		switch {
		case dims[0] == 1 && dims[1] == s:
			layout = Layout{Kind: ChannelMajor, NumCandidates: int(dims[2])}
		case dims[0] == 1 && dims[2] == s:
			layout = Layout{Kind: CandidateMajor, NumCandidates: int(dims[1])}
		default:
			layout = Layout{Kind: FallbackInferred, NumCandidates: length / stride}
		}
	case 2:
		if dims[0] == s {
			layout = Layout{Kind: ChannelMajor, NumCandidates: int(dims[1])}
		} else {
			layout = Layout{Kind: CandidateMajor, NumCandidates: int(dims[0])}
		}
	default:
		layout = Layout{Kind: FallbackInferred, NumCandidates: length / stride}
	}

	if layout.NumCandidates <= 0 {
		return Layout{}, common.InvalidOutputShapef("output dims %v with %d values give %d candidates",
			dims, length, layout.NumCandidates)
	}
	return layout, nil
}

// Resolved is a candidate-major view of a model output.
type Resolved struct {
	Layout Layout
	Stride int
	Data   []float32
}

// Rows is the number of complete candidate rows available, at most Layout.NumCandidates.
// A buffer shorter than NumCandidates*Stride is truncated to its complete rows.
func (r *Resolved) Rows() int {
	return min(r.Layout.NumCandidates, len(r.Data)/r.Stride)
}

// Row returns the stride values of candidate i.
func (r *Resolved) Row(i int) []float32 {
	return r.Data[i*r.Stride : (i+1)*r.Stride]
}

// Resolve classifies an output tensor and returns it in candidate-major order. Channel-major
// buffers are copied and transposed so that resolved[i*stride+c] == raw[c*N+i]; the input
// slice is never modified.
//
// Returns:
//   - *Resolved: The candidate-major view.
//   - error: common.ErrInvalidOutputShape when the layout cannot be resolved or a
//     channel-major buffer is shorter than stride*N.
func Resolve(dims []int64, data []float32, stride int) (*Resolved, error) {
	layout, err := ResolveLayout(dims, len(data), stride)
	if err != nil {
		return nil, err
	}

	if layout.Kind != ChannelMajor {
		return &Resolved{Layout: layout, Stride: stride, Data: data}, nil
	}

	n := layout.NumCandidates
	// Compared by division so a huge declared N cannot overflow stride*N.
	if n > len(data)/stride {
		return nil, common.InvalidOutputShapef("channel-major output declares %d candidates, buffer holds %d values", n, len(data))
	}

	transposed, err := transpose(data[:stride*n], stride, n)
	if err != nil {
		return nil, err
	}
	return &Resolved{Layout: layout, Stride: stride, Data: transposed}, nil
}

// transpose converts a rows x cols row-major matrix into cols x rows.
func transpose(data []float32, rows, cols int) ([]float32, error) {
	backing := make([]float32, len(data))
	copy(backing, data)
	if rows == 1 || cols == 1 {
		return backing, nil
	}

	t := tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
	if err := t.T(); err != nil {
		return nil, errors.Wrap(err, "transpose view failed")
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "transpose failed")
	}

	out, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected tensor backing %T", t.Data())
	}
	return out, nil
}
