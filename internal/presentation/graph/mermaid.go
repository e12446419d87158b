package graph

import (
	"fmt"
	"path"
	"strings"

	"github.com/aretw0/telemetry/pkg/domain"
)

// GraphOverlay marks dataset state on the rendered graph.
type GraphOverlay struct {
	Materialized []string
	Target       string
}

// GenerateMermaid renders kinds and prerequisite edges as a Mermaid
// flowchart. Arrows follow the data: prerequisite --> dependent.
// Shapes:
// - Source: ((Circle))
// - Family member (namespaced key): [[Subroutine]]
// - Default: [Rectangle]
func GenerateMermaid(kinds []*domain.Kind, edges []domain.Edge, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, k := range kinds {
		safeID := sanitizeMermaidID(k.Key)

		opener, closer := "[", "]"
		switch {
		case !k.Generatable():
			opener, closer = "((", "))"
		case path.Dir(k.Key) != ".":
			opener, closer = "[[", "]]"
		}

		label := k.Key
		if k.Variant != "" && k.Variant != domain.VariantSource {
			label = fmt.Sprintf("%s <br/> %s", k.Key, k.Variant)
		}
		label = strings.ReplaceAll(label, "\"", "'")
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))
	}

	for _, e := range edges {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n",
			sanitizeMermaidID(e.Prerequisite), sanitizeMermaidID(e.Source)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds
		sb.WriteString("    classDef materialized fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef target fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, key := range overlay.Materialized {
			safeID := sanitizeMermaidID(key)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s materialized;\n", safeID))
			}
		}

		if overlay.Target != "" {
			sb.WriteString(fmt.Sprintf("    class %s target;\n", sanitizeMermaidID(overlay.Target)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
