/*
Package domain contains the core domain models of the telemetry engine.

It defines the entities of the derived-artifact graph (Kinds and their
prerequisite Edges), the per-dataset materialization records (Datasets and
Artifacts), the Array value held under an artifact key, and the error
taxonomy shared by every layer. This package is kept free of I/O and
persistence concerns.

# Key Entities

  - Kind: a named type of derivable artifact, identified by its artifact key.
  - Edge: "Source cannot be generated until Prerequisite exists".
  - Dataset: an opaque unit of captured data with a storage locator.
  - Artifact: the record that a Kind is materialized for a Dataset.
  - Array: the row-major numeric value stored under an artifact key.
*/
package domain
