package domain

// Variant selects which generator implements a Kind.
type Variant string

// Known variants. Generators for other variants may be registered at runtime.
const (
	// VariantSource marks raw kinds that are ingested, never generated.
	VariantSource      Variant = "source"
	VariantSlice       Variant = "slice"
	VariantMatrix      Variant = "matrix"
	VariantPeriodogram Variant = "periodogram"
	VariantRatio       Variant = "ratio"
	// VariantProcess delegates to an allow-listed external command.
	VariantProcess     Variant = "process"
)

// Kind is a node of the derived-artifact graph.
// Key is globally unique; it is also the key the artifact value is stored under.
type Kind struct {
	Key     string         `json:"key" yaml:"key" mapstructure:"key"`
	Name    string         `json:"name" yaml:"name" mapstructure:"name"`
	Variant Variant        `json:"variant" yaml:"variant" mapstructure:"variant"`
	Params  map[string]any `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
}

// Generatable reports whether the kind is computed from prerequisites.
func (k Kind) Generatable() bool {
	return k.Variant != "" && k.Variant != VariantSource
}

func (k Kind) String() string {
	return k.Key
}

// Edge is a directed prerequisite edge: Source requires Prerequisite.
type Edge struct {
	Source       string `json:"source" yaml:"source"`
	Prerequisite string `json:"prerequisite" yaml:"prerequisite"`
}
