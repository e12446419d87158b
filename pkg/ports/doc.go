/*
Package ports defines the driven ports (interfaces) of the telemetry engine.

These interfaces decouple the core (resolver, executor, scheduler) from the
external collaborators it relies on: the per-dataset keyed store, the
relational index of materialized artifacts, the distributed locker and the
generators that compute artifact values.

# Key Interfaces

  - ArtifactStore / Handle: per-dataset keyed storage (filesystem, Redis, memory).
  - Index / IndexTx: relational rows for kinds, edges, datasets and artifacts,
    with transactional commit/rollback (PostgreSQL, memory).
  - DistributedLocker: cross-process mutual exclusion per dataset.
  - Generator / Inputs: the compute capability behind a Kind variant.
*/
package ports
