package generation

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// inputs is the read-only view a generator receives. It exposes only the
// kind's direct prerequisites and re-reads them from storage on every call.
type inputs struct {
	handle  ports.Handle
	dataset domain.Dataset
	kind    domain.Kind
	allowed []string
}

var _ ports.Inputs = (*inputs)(nil)

func (in *inputs) Dataset() domain.Dataset { return in.dataset }

func (in *inputs) Kind() domain.Kind { return in.kind }

func (in *inputs) Prerequisites() []string {
	return append([]string(nil), in.allowed...)
}

func (in *inputs) Read(ctx context.Context, key string) (domain.Array, error) {
	if !slices.Contains(in.allowed, key) {
		return domain.Array{}, fmt.Errorf("%q is not a prerequisite of %q", key, in.kind.Key)
	}
	v, err := in.handle.Get(ctx, key)
	if err != nil {
		return domain.Array{}, fmt.Errorf("failed to read prerequisite %q: %w", key, err)
	}
	return v, nil
}
