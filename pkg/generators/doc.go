/*
Package generators provides the reference compute capabilities behind kind
variants:

  - slice: a row range of one prerequisite
  - matrix: a matrix product with one prerequisite, optionally reshaped
  - periodogram: windowed, half-overlapped power spectra along the sample axis
  - ratio: the element-wise ratio of two prerequisites

Each variant decodes its kind's params with mapstructure. Register binds all
of them into a registry.Generators.
*/
package generators
