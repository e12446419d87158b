package dsl_test

import (
	"fmt"
	"log"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/dsl"
	"github.com/aretw0/telemetry/pkg/registry"
)

func ExampleBuilder() {
	b := dsl.New()
	b.Source("slopes", "Slopes")
	b.Add("pseudophase").Name("Pseudophase").Matrix("slopes", nil)
	b.Family("periodogram").
		Name("{base} periodogram").
		Variant(domain.VariantPeriodogram).
		Param("length", 1024).
		For("slopes", "pseudophase")

	g, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}
	order, err := registry.NewResolver(g).TransitiveClosureSorted("periodogram/pseudophase")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(registry.Names(order))

	// Output:
	// [slopes pseudophase periodogram/pseudophase]
}
