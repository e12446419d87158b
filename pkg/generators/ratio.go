package generators

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// RatioParams divides Numerator by Denominator element-wise. When unset
// they default to the first and second prerequisite.
type RatioParams struct {
	Numerator   string `mapstructure:"numerator"`
	Denominator string `mapstructure:"denominator"`
}

type ratioGenerator struct {
	p RatioParams
}

// NewRatio builds a ratio generator from kind params.
func NewRatio(kind domain.Kind) (ports.Generator, error) {
	var p RatioParams
	if err := decode(kind, &p); err != nil {
		return nil, err
	}
	return &ratioGenerator{p: p}, nil
}

func (g *ratioGenerator) Generate(ctx context.Context, in ports.Inputs) (domain.Array, error) {
	num, den := g.p.Numerator, g.p.Denominator
	prereqs := in.Prerequisites()
	if num == "" || den == "" {
		if len(prereqs) != 2 {
			return domain.Array{}, fmt.Errorf("ratio %q needs two prerequisites, has %d", in.Kind().Key, len(prereqs))
		}
		num, den = prereqs[0], prereqs[1]
	}

	a, err := source(ctx, in, num)
	if err != nil {
		return domain.Array{}, err
	}
	b, err := source(ctx, in, den)
	if err != nil {
		return domain.Array{}, err
	}
	if !slices.Equal(a.Shape, b.Shape) {
		return domain.Array{}, fmt.Errorf("shape mismatch: %v / %v", a.Shape, b.Shape)
	}

	out := domain.Array{Shape: append([]int(nil), a.Shape...), Data: make([]float64, len(a.Data))}
	for i := range a.Data {
		if b.Data[i] == 0 {
			return domain.Array{}, fmt.Errorf("division by zero at element %d", i)
		}
		out.Data[i] = a.Data[i] / b.Data[i]
	}
	return out, nil
}
