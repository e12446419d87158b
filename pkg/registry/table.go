package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/aretw0/telemetry/pkg/domain"
	"gopkg.in/yaml.v3"
)

// KindSpec is one row of a kinds table.
type KindSpec struct {
	Key      string         `yaml:"key" toml:"key"`
	Name     string         `yaml:"name" toml:"name"`
	Variant  string         `yaml:"variant" toml:"variant"`
	Requires []string       `yaml:"requires" toml:"requires"`
	Params   map[string]any `yaml:"params" toml:"params"`
}

// FamilySpec derives one kind per base kind, keyed "<prefix>/<base>".
// Each derived kind requires "<from>/<base>", or the base itself when From is empty.
type FamilySpec struct {
	Prefix  string         `yaml:"prefix" toml:"prefix"`
	Name    string         `yaml:"name" toml:"name"` // "{base}" is replaced by the base key
	Variant string         `yaml:"variant" toml:"variant"`
	From    string         `yaml:"from" toml:"from"`
	Params  map[string]any `yaml:"params" toml:"params"`
	For     []string       `yaml:"for" toml:"for"`
}

// Table is the static description a Graph is bootstrapped from.
type Table struct {
	Kinds    []KindSpec   `yaml:"kinds" toml:"kinds"`
	Families []FamilySpec `yaml:"families" toml:"families"`
}

// LoadTable reads a kinds table from a YAML or TOML file (by extension).
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read kinds table: %w", err)
	}
	return ParseTable(data, filepath.Ext(path))
}

// ParseTable decodes a kinds table. ext selects the format; anything other
// than ".toml" is parsed as YAML.
func ParseTable(data []byte, ext string) (Table, error) {
	var t Table
	if strings.EqualFold(ext, ".toml") {
		if err := toml.Unmarshal(data, &t); err != nil {
			return Table{}, fmt.Errorf("failed to parse kinds table (toml): %w", err)
		}
		return t, nil
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("failed to parse kinds table (yaml): %w", err)
	}
	return t, nil
}

// Build registers every kind of the table into a new Graph, then every edge.
// Edges are added after all kinds so the table can be written in any order.
func (t Table) Build() (*Graph, error) {
	g := NewGraph()
	type pending struct {
		source   string
		requires []string
	}
	var edges []pending

	for _, spec := range t.Kinds {
		if spec.Key == "" {
			return nil, &domain.StructuralError{Reason: "kind with empty key in table"}
		}
		name := spec.Name
		if name == "" {
			name = spec.Key
		}
		g.Require(name, spec.Key, WithVariant(variantOf(spec.Variant)), WithParams(spec.Params))
		edges = append(edges, pending{source: spec.Key, requires: spec.Requires})
	}

	for _, fam := range t.Families {
		if fam.Prefix == "" {
			return nil, &domain.StructuralError{Reason: "family with empty prefix in table"}
		}
		for _, base := range fam.For {
			key := fam.Prefix + "/" + base
			prereq := base
			if fam.From != "" {
				prereq = fam.From + "/" + base
			}
			params := make(map[string]any, len(fam.Params)+1)
			for k, v := range fam.Params {
				params[k] = v
			}
			if _, ok := params["source"]; !ok {
				params["source"] = prereq
			}
			name := strings.ReplaceAll(fam.Name, "{base}", base)
			if name == "" {
				name = key
			}
			g.Require(name, key, WithVariant(variantOf(fam.Variant)), WithParams(params))
			edges = append(edges, pending{source: key, requires: []string{prereq}})
		}
	}

	for _, e := range edges {
		src, _ := g.Kind(e.source)
		for _, r := range e.requires {
			pre, ok := g.Kind(r)
			if !ok {
				return nil, &domain.StructuralError{Kind: e.source, Reason: fmt.Sprintf("requires unknown kind %q", r)}
			}
			if err := g.AddPrerequisite(src, pre); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func variantOf(s string) domain.Variant {
	if s == "" {
		return domain.VariantSource
	}
	return domain.Variant(s)
}
