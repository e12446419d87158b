package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/telemetry"
	"github.com/aretw0/telemetry/internal/dto"
	apihttp "github.com/aretw0/telemetry/pkg/adapters/http"
	"github.com/aretw0/telemetry/pkg/adapters/memory"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/observability"
	"github.com/aretw0/telemetry/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	g := registry.NewGraph()
	slopes := g.Require("Slopes", "slopes")
	row := g.Require("First row", "slice/slopes",
		registry.WithVariant(domain.VariantSlice),
		registry.WithParams(map[string]any{"stop": 1}))
	require.NoError(t, g.AddPrerequisite(row, slopes))

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	store := memory.NewStore()
	store.Seed("ds-1", map[string]domain.Array{
		"slopes": {Shape: []int{2, 3}, Data: []float64{1, 2, 3, 4, 5, 6}},
	})

	eng, err := telemetry.New(ctx, g, telemetry.WithStore(store), telemetry.WithLifecycleHooks(metrics.Hooks()))
	require.NoError(t, err)
	_, err = eng.RegisterDataset(ctx, domain.Dataset{ID: "ds-1", Created: time.Date(2016, 3, 16, 8, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	h, err := apihttp.NewHandler(eng, apihttp.WithGatherer(reg))
	require.NoError(t, err)
	return h
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestKinds(t *testing.T) {
	h := newServer(t)

	w := do(t, h, "GET", "/kinds", "")
	require.Equal(t, http.StatusOK, w.Code)
	var kinds []domain.Kind
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &kinds))
	assert.Len(t, kinds, 2)

	w = do(t, h, "GET", "/kinds/slice/slopes/closure", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &kinds))
	require.Len(t, kinds, 2)
	assert.Equal(t, "slopes", kinds[0].Key)
	assert.Equal(t, "slice/slopes", kinds[1].Key)

	w = do(t, h, "GET", "/kinds/unknown/closure", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDatasets(t *testing.T) {
	h := newServer(t)

	w := do(t, h, "GET", "/datasets?date=2016-03-16", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Dataset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Samples)

	w = do(t, h, "GET", "/datasets?date=2016-03-17", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = do(t, h, "GET", "/datasets?date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "GET", "/datasets?date=2016-03-16&days=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "GET", "/datasets?include_invalid=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/datasets/missing/reconcile", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveDataset(t *testing.T) {
	h := newServer(t)

	w := do(t, h, "DELETE", "/datasets/ds-1", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, "GET", "/datasets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = do(t, h, "DELETE", "/datasets/ds-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpenAPISpec(t *testing.T) {
	h := newServer(t)

	w := do(t, h, "GET", "/openapi.yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "/datasets/{id}/reconcile:")
}

func TestMake(t *testing.T) {
	h := newServer(t)

	w := do(t, h, "POST", "/make", `{"target":"slice/slopes","date":"2016-03-16"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var summary dto.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Steps, 1)
	assert.Equal(t, domain.OutcomeSucceeded, summary.Steps[0].Outcome)

	w = do(t, h, "GET", "/datasets/ds-1/artifacts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"slice/slopes"`)

	w = do(t, h, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `telemetry_steps_total{outcome="succeeded"} 1`)
}

func TestMake_BadRequests(t *testing.T) {
	h := newServer(t)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/make", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/make", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/make", `{"target":"slopes","days":"two"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/make", `{"target":"slopes","date":"16/03/2016"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/make", `{"target":"slopes","forced":true}`).Code)

	req := httptest.NewRequest("POST", "/make", strings.NewReader(`{"target":"slopes"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, h, "POST", "/make", `{"target":"nope"}`).Code)
}
