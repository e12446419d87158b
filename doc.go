/*
Package telemetry materializes derived artifacts of captured datasets.

A dataset is a unit of captured data (for example one day of wavefront
sensor telemetry) whose values live in a keyed store. Kinds describe the
values: source kinds are ingested as is, every other kind is computed from
its prerequisites by a generator selected by its variant. Kinds and their
prerequisite edges form a graph that is resolved into an ordered chain of
generation steps.

# Usage

	table, err := registry.LoadTable("kinds.yaml")
	if err != nil {
		log.Fatal(err)
	}
	graph, err := table.Build()
	if err != nil {
		log.Fatal(err)
	}

	eng, err := telemetry.New(ctx, graph,
		telemetry.WithStore(file.New(".telemetry/datasets")),
		telemetry.WithWorkers(4),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	summary, err := eng.Make(ctx, "pseudophase-psd",
		domain.DayFilter(day, 1), telemetry.MakeOptions{Recursive: true})

# Guarantees

  - A kind is generated only after all of its prerequisites are committed.
  - An artifact is either fully written and recorded in the index, or absent.
  - The same (dataset, kind) is never computed twice at once; steps of one
    dataset are serialized by a per-dataset lock.
  - A failure on one dataset never affects another.
*/
package telemetry
