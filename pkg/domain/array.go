package domain

import (
	"fmt"
	"math"
)

// Array is a dense row-major float64 array.
type Array struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// NewArray allocates a zeroed array of the given shape.
func NewArray(shape ...int) Array {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return Array{Shape: append([]int(nil), shape...), Data: make([]float64, n)}
}

// Size is the number of elements implied by Shape.
func (a Array) Size() int {
	if len(a.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Rows returns the length of the first axis.
func (a Array) Rows() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// Cols returns the product of all axes but the first.
func (a Array) Cols() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Size() / max(a.Shape[0], 1)
}

// Samples returns the length of the last axis (time samples for telemetry).
func (a Array) Samples() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[len(a.Shape)-1]
}

// Row returns a view of row i for a 2-D interpretation of the array.
func (a Array) Row(i int) []float64 {
	c := a.Cols()
	return a.Data[i*c : (i+1)*c]
}

// Validate checks that Shape and Data agree.
func (a Array) Validate() error {
	for _, d := range a.Shape {
		if d < 0 {
			return fmt.Errorf("negative dimension in shape %v", a.Shape)
		}
	}
	if a.Size() != len(a.Data) {
		return fmt.Errorf("shape %v implies %d elements, have %d", a.Shape, a.Size(), len(a.Data))
	}
	return nil
}

// CheckOutput rejects arrays a generator must never emit: malformed, empty,
// non-finite or all-zero.
func (a Array) CheckOutput() error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrDegenerateOutput, err)
	}
	if len(a.Data) == 0 {
		return fmt.Errorf("%w: empty array", ErrDegenerateOutput)
	}
	nonzero := false
	for i, v := range a.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at %d", ErrDegenerateOutput, i)
		}
		if v != 0 {
			nonzero = true
		}
	}
	if !nonzero {
		return fmt.Errorf("%w: all values are zero", ErrDegenerateOutput)
	}
	return nil
}

// Reshape returns a with a new shape. One dimension may be -1 and is inferred.
func (a Array) Reshape(shape ...int) (Array, error) {
	out := append([]int(nil), shape...)
	infer := -1
	known := 1
	for i, d := range out {
		switch {
		case d == -1 && infer >= 0:
			return Array{}, fmt.Errorf("reshape %v: more than one inferred dimension", shape)
		case d == -1:
			infer = i
		case d < 0:
			return Array{}, fmt.Errorf("reshape %v: negative dimension", shape)
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || len(a.Data)%known != 0 {
			return Array{}, fmt.Errorf("cannot reshape %d elements into %v", len(a.Data), shape)
		}
		out[infer] = len(a.Data) / known
	}
	res := Array{Shape: out, Data: a.Data}
	if res.Size() != len(a.Data) {
		return Array{}, fmt.Errorf("cannot reshape %d elements into %v", len(a.Data), shape)
	}
	return res, nil
}
