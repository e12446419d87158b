package tui_test

import (
	"bytes"
	"testing"

	"github.com/aretw0/telemetry/internal/dto"
	"github.com/aretw0/telemetry/internal/presentation/tui"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestRenderSummary_Plain(t *testing.T) {
	s := dto.Summary{
		Target:    "pseudophase-psd",
		Datasets:  2,
		Succeeded: 1,
		Failed:    1,
		Steps: []dto.Step{
			{Dataset: "b", Kind: "pseudophase", Outcome: domain.OutcomeFailed, Error: "boom"},
			{Dataset: "a", Kind: "pseudophase", Outcome: domain.OutcomeSucceeded, DurationMS: 12},
		},
		Refused: []dto.Refusal{{Dataset: "c", Error: "invalid"}},
	}

	var buf bytes.Buffer
	tui.RenderSummary(&buf, s, false)
	out := buf.String()

	assert.NotContains(t, out, "\x1b[", "no escape codes without color")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a\n")), bytes.Index(buf.Bytes(), []byte("b\n")))
	assert.Contains(t, out, "  succeeded pseudophase (12ms)")
	assert.Contains(t, out, "            boom")
	assert.Contains(t, out, "c refused: invalid")
	assert.Contains(t, out, "pseudophase-psd: 2 datasets, 1 succeeded, 0 reused, 1 failed, 0 busy, 0 skipped, 1 refused")
}

func TestPrintBanner_Plain(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, false)
	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "|__/")
}
