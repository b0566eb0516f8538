// Package inference - Detection pipeline around a pluggable inference backend.
package inference

import (
	"context"

	"github.com/nvr-ai/go-detect/common"
)

// Tensor is a named float32 buffer with its dimensions.
type Tensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// Backend runs a model on one input tensor. Implementations must tolerate repeated calls
// without reinitialisation; concurrent calls are only made when the backend is safe for them.
type Backend interface {
	Infer(ctx context.Context, input Tensor) ([]Tensor, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, input Tensor) ([]Tensor, error)

// Infer implements Backend.
func (f BackendFunc) Infer(ctx context.Context, input Tensor) ([]Tensor, error) {
	return f(ctx, input)
}

// SelectOutput picks the output named name, or the first output when name is empty.
//
// Returns:
//   - Tensor: The selected output.
//   - error: common.ErrInvalidOutputShape when no output matches.
func SelectOutput(outputs []Tensor, name string) (Tensor, error) {
	if len(outputs) == 0 {
		return Tensor{}, common.InvalidOutputShapef("backend returned no outputs")
	}
	if name == "" {
		return outputs[0], nil
	}
	for _, out := range outputs {
		if out.Name == name {
			return out, nil
		}
	}
	return Tensor{}, common.InvalidOutputShapef("backend returned no output named %q", name)
}
