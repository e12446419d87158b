package dsl

import (
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/registry"
)

// Builder collects kinds and families in declaration order.
type Builder struct {
	kinds    []*KindBuilder
	byKey    map[string]*KindBuilder
	families []*FamilyBuilder
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{byKey: make(map[string]*KindBuilder)}
}

// Add declares a kind. If the kind already exists, it returns the existing builder.
func (b *Builder) Add(key string) *KindBuilder {
	if kb, ok := b.byKey[key]; ok {
		return kb
	}
	kb := &KindBuilder{spec: registry.KindSpec{Key: key, Name: key}}
	b.kinds = append(b.kinds, kb)
	b.byKey[key] = kb
	return kb
}

// Source declares a raw kind.
func (b *Builder) Source(key, name string) *KindBuilder {
	return b.Add(key).Name(name).Variant(domain.VariantSource)
}

// Family declares a family of kinds keyed "<prefix>/<base>".
func (b *Builder) Family(prefix string) *FamilyBuilder {
	fb := &FamilyBuilder{spec: registry.FamilySpec{Prefix: prefix, Name: prefix + " {base}"}}
	b.families = append(b.families, fb)
	return fb
}

// Table returns the declarations as a kinds table.
func (b *Builder) Table() registry.Table {
	var t registry.Table
	for _, kb := range b.kinds {
		t.Kinds = append(t.Kinds, kb.spec)
	}
	for _, fb := range b.families {
		t.Families = append(t.Families, fb.spec)
	}
	return t
}

// Build compiles the declarations into a graph.
func (b *Builder) Build() (*registry.Graph, error) {
	return b.Table().Build()
}
