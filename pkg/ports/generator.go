package ports

import (
	"context"

	"github.com/aretw0/telemetry/pkg/domain"
)

// Generator is the compute capability behind a kind variant.
// It must read only the prerequisites exposed by Inputs, be effectively pure
// given those inputs plus static dataset metadata, and return an error rather
// than degenerate output on malformed input.
type Generator interface {
	Generate(ctx context.Context, in Inputs) (domain.Array, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, in Inputs) (domain.Array, error)

func (f GeneratorFunc) Generate(ctx context.Context, in Inputs) (domain.Array, error) {
	return f(ctx, in)
}

// Inputs is the read-only view a Generator gets of its dataset.
type Inputs interface {
	// Dataset is the dataset being generated for.
	Dataset() domain.Dataset

	// Kind is the kind being generated.
	Kind() domain.Kind

	// Prerequisites lists the keys Read accepts, in registration order.
	Prerequisites() []string

	// Read returns a materialized prerequisite value.
	// Reading a key that is not a direct prerequisite is an error.
	Read(ctx context.Context, key string) (domain.Array, error)
}
