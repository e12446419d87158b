package generators

import (
	"context"
	"fmt"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
	"github.com/aretw0/telemetry/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// Register binds every reference variant.
func Register(r *registry.Generators) {
	r.Register(domain.VariantSlice, NewSlice)
	r.Register(domain.VariantMatrix, NewMatrix)
	r.Register(domain.VariantPeriodogram, NewPeriodogram)
	r.Register(domain.VariantRatio, NewRatio)
}

// decode fills out from the kind's params. Numbers are converted loosely
// since YAML, TOML and JSON disagree on their types.
func decode(kind domain.Kind, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(kind.Params); err != nil {
		return fmt.Errorf("invalid params for %s kind %q: %w", kind.Variant, kind.Key, err)
	}
	return nil
}

// source picks the named prerequisite, or the only one when name is empty.
func source(ctx context.Context, in ports.Inputs, name string) (domain.Array, error) {
	if name == "" {
		prereqs := in.Prerequisites()
		if len(prereqs) != 1 {
			return domain.Array{}, fmt.Errorf("kind %q has %d prerequisites, set params.source", in.Kind().Key, len(prereqs))
		}
		name = prereqs[0]
	}
	arr, err := in.Read(ctx, name)
	if err != nil {
		return domain.Array{}, err
	}
	if err := arr.Validate(); err != nil {
		return domain.Array{}, fmt.Errorf("malformed input %q: %w", name, err)
	}
	return arr, nil
}
