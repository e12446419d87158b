/*
Package dsl provides a Go DSL for declaring kind graphs in code.

It builds the same table a kinds.yaml file describes, with a fluent API
instead of an external file. This is useful for tests and for embedding.

Example usage:

	b := dsl.New()
	b.Source("slopes", "Slopes")
	b.Add("pseudophase").
		Name("Pseudophase").
		Matrix("slopes", nil, -1, 144)
	b.Family("periodogram").
		Name("{base} periodogram").
		Variant(domain.VariantPeriodogram).
		Param("length", 1024).
		For("slopes", "pseudophase")

	graph, err := b.Build()
*/
package dsl
