package generators

import (
	"context"
	"fmt"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// MatrixParams multiplies Source (n x t) by Matrix (m x n). A missing matrix
// is the identity. Shape, when set, reshapes the m x t product; one
// dimension may be -1.
type MatrixParams struct {
	Source string      `mapstructure:"source"`
	Matrix [][]float64 `mapstructure:"matrix"`
	Shape  []int       `mapstructure:"shape"`
}

type matrixGenerator struct {
	p MatrixParams
}

// NewMatrix builds a matrix transform generator from kind params.
func NewMatrix(kind domain.Kind) (ports.Generator, error) {
	var p MatrixParams
	if err := decode(kind, &p); err != nil {
		return nil, err
	}
	for i, row := range p.Matrix {
		if len(row) != len(p.Matrix[0]) {
			return nil, fmt.Errorf("matrix row %d has %d columns, want %d", i, len(row), len(p.Matrix[0]))
		}
	}
	return &matrixGenerator{p: p}, nil
}

func (g *matrixGenerator) Generate(ctx context.Context, in ports.Inputs) (domain.Array, error) {
	src, err := source(ctx, in, g.p.Source)
	if err != nil {
		return domain.Array{}, err
	}

	out := domain.Array{Shape: append([]int(nil), src.Shape...), Data: append([]float64(nil), src.Data...)}
	if len(g.p.Matrix) > 0 {
		out, err = multiply(g.p.Matrix, src)
		if err != nil {
			return domain.Array{}, err
		}
	}
	if len(g.p.Shape) > 0 {
		return out.Reshape(g.p.Shape...)
	}
	return out, nil
}

func multiply(m [][]float64, src domain.Array) (domain.Array, error) {
	rows, inner := len(m), len(m[0])
	if src.Rows() != inner {
		return domain.Array{}, fmt.Errorf("cannot multiply %dx%d matrix by input with %d rows", rows, inner, src.Rows())
	}
	cols := src.Cols()
	out := domain.NewArray(rows, cols)
	for i := 0; i < rows; i++ {
		dst := out.Row(i)
		for k, w := range m[i] {
			if w == 0 {
				continue
			}
			for j, v := range src.Row(k) {
				dst[j] += w * v
			}
		}
	}
	return out, nil
}
