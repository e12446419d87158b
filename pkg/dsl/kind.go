package dsl

import (
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/registry"
)

// KindBuilder provides a fluent API for configuring a kind.
type KindBuilder struct {
	spec registry.KindSpec
}

// Name sets the display name.
func (k *KindBuilder) Name(name string) *KindBuilder {
	k.spec.Name = name
	return k
}

// Variant selects the generator.
func (k *KindBuilder) Variant(v domain.Variant) *KindBuilder {
	k.spec.Variant = string(v)
	return k
}

// Requires adds prerequisites, in order.
func (k *KindBuilder) Requires(keys ...string) *KindBuilder {
	k.spec.Requires = append(k.spec.Requires, keys...)
	return k
}

// Param sets one generator parameter.
func (k *KindBuilder) Param(name string, value any) *KindBuilder {
	if k.spec.Params == nil {
		k.spec.Params = make(map[string]any)
	}
	k.spec.Params[name] = value
	return k
}

// Slice configures rows [start, stop) of one prerequisite.
func (k *KindBuilder) Slice(source string, start, stop int) *KindBuilder {
	return k.Variant(domain.VariantSlice).Requires(source).
		Param("source", source).Param("start", start).Param("stop", stop)
}

// Matrix configures matrix · source, reshaped when shape is given.
func (k *KindBuilder) Matrix(source string, matrix [][]float64, shape ...int) *KindBuilder {
	k.Variant(domain.VariantMatrix).Requires(source).Param("source", source)
	if matrix != nil {
		k.Param("matrix", matrix)
	}
	if len(shape) > 0 {
		k.Param("shape", shape)
	}
	return k
}

// Periodogram configures the power spectrum of source over length samples.
func (k *KindBuilder) Periodogram(source string, length int) *KindBuilder {
	return k.Variant(domain.VariantPeriodogram).Requires(source).
		Param("source", source).Param("length", length)
}

// Ratio configures numerator / denominator element-wise.
func (k *KindBuilder) Ratio(numerator, denominator string) *KindBuilder {
	return k.Variant(domain.VariantRatio).Requires(numerator, denominator).
		Param("numerator", numerator).Param("denominator", denominator)
}

// Spec returns the underlying table row.
func (k *KindBuilder) Spec() registry.KindSpec {
	return k.spec
}

// FamilyBuilder provides a fluent API for configuring a family.
type FamilyBuilder struct {
	spec registry.FamilySpec
}

// Name sets the name template; "{base}" is replaced by the base key.
func (f *FamilyBuilder) Name(template string) *FamilyBuilder {
	f.spec.Name = template
	return f
}

// Variant selects the generator of every member.
func (f *FamilyBuilder) Variant(v domain.Variant) *FamilyBuilder {
	f.spec.Variant = string(v)
	return f
}

// From makes each member require "<prefix>/<base>" instead of the base.
func (f *FamilyBuilder) From(prefix string) *FamilyBuilder {
	f.spec.From = prefix
	return f
}

// Param sets one generator parameter shared by every member.
func (f *FamilyBuilder) Param(name string, value any) *FamilyBuilder {
	if f.spec.Params == nil {
		f.spec.Params = make(map[string]any)
	}
	f.spec.Params[name] = value
	return f
}

// For adds base kinds.
func (f *FamilyBuilder) For(bases ...string) *FamilyBuilder {
	f.spec.For = append(f.spec.For, bases...)
	return f
}
