package generators

import (
	"context"
	"fmt"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// SliceParams selects rows [Start, Stop) of Source. Stop 0 means all rows.
type SliceParams struct {
	Source string `mapstructure:"source"`
	Start  int    `mapstructure:"start"`
	Stop   int    `mapstructure:"stop"`
}

type sliceGenerator struct {
	p SliceParams
}

// NewSlice builds a slice generator from kind params.
func NewSlice(kind domain.Kind) (ports.Generator, error) {
	var p SliceParams
	if err := decode(kind, &p); err != nil {
		return nil, err
	}
	if p.Start < 0 || (p.Stop != 0 && p.Stop <= p.Start) {
		return nil, fmt.Errorf("invalid row range [%d, %d)", p.Start, p.Stop)
	}
	return &sliceGenerator{p: p}, nil
}

func (g *sliceGenerator) Generate(ctx context.Context, in ports.Inputs) (domain.Array, error) {
	src, err := source(ctx, in, g.p.Source)
	if err != nil {
		return domain.Array{}, err
	}
	stop := g.p.Stop
	if stop == 0 {
		stop = src.Rows()
	}
	if stop > src.Rows() {
		return domain.Array{}, fmt.Errorf("row range [%d, %d) exceeds %d rows", g.p.Start, stop, src.Rows())
	}

	shape := append([]int{stop - g.p.Start}, src.Shape[1:]...)
	cols := src.Cols()
	out := domain.Array{
		Shape: shape,
		Data:  append([]float64(nil), src.Data[g.p.Start*cols:stop*cols]...),
	}
	return out, nil
}
