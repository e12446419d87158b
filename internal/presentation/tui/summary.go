// Package tui renders batch results for terminals.
package tui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aretw0/telemetry/internal/dto"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ColorEnabled reports whether f is a terminal that should get colors.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func profile(color bool) termenv.Profile {
	if !color {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

var outcomeColors = map[domain.Outcome]string{
	domain.OutcomeSucceeded: "#22c55e",
	domain.OutcomeReused:    "#60a5fa",
	domain.OutcomeFailed:    "#ef4444",
	domain.OutcomeBusy:      "#f59e0b",
	domain.OutcomeSkipped:   "#9ca3af",
}

// RenderSummary writes one line per step grouped by dataset, then the totals.
func RenderSummary(w io.Writer, s dto.Summary, color bool) {
	p := profile(color)
	paint := func(o domain.Outcome, text string) string {
		return p.String(text).Foreground(p.Color(outcomeColors[o])).String()
	}

	byDataset := make(map[string][]dto.Step)
	var order []string
	for _, st := range s.Steps {
		if _, ok := byDataset[st.Dataset]; !ok {
			order = append(order, st.Dataset)
		}
		byDataset[st.Dataset] = append(byDataset[st.Dataset], st)
	}
	sort.Strings(order)

	for _, id := range order {
		fmt.Fprintf(w, "%s\n", p.String(id).Bold())
		for _, st := range byDataset[id] {
			line := fmt.Sprintf("  %-9s %s", st.Outcome, st.Kind)
			if st.DurationMS > 0 {
				line += fmt.Sprintf(" (%dms)", st.DurationMS)
			}
			fmt.Fprintln(w, paint(st.Outcome, line))
			if st.Error != "" {
				fmt.Fprintf(w, "            %s\n", st.Error)
			}
		}
	}
	for _, r := range s.Refused {
		fmt.Fprintf(w, "%s refused: %s\n", p.String(r.Dataset).Bold(), r.Error)
	}

	totals := []string{
		paint(domain.OutcomeSucceeded, fmt.Sprintf("%d succeeded", s.Succeeded)),
		paint(domain.OutcomeReused, fmt.Sprintf("%d reused", s.Reused)),
		paint(domain.OutcomeFailed, fmt.Sprintf("%d failed", s.Failed)),
		paint(domain.OutcomeBusy, fmt.Sprintf("%d busy", s.Busy)),
		paint(domain.OutcomeSkipped, fmt.Sprintf("%d skipped", s.Skipped)),
	}
	fmt.Fprintf(w, "\n%s: %d datasets, %s", s.Target, s.Datasets, strings.Join(totals, ", "))
	if len(s.Refused) > 0 {
		fmt.Fprintf(w, ", %d refused", len(s.Refused))
	}
	fmt.Fprintln(w)
}
