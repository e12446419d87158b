package testutils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/telemetry/pkg/adapters/memory"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
	"github.com/aretw0/telemetry/pkg/registry"
	"github.com/stretchr/testify/require"
)

// Keys of the pseudophase chain.
const (
	Slopes         = "slopes"
	Pseudophase    = "pseudophase"
	PseudophasePSD = "pseudophase-psd"
	PseudophaseETF = "pseudophase-etf"
	Tweeter        = "tweeter"
)

// PseudophaseGraph builds slopes -> pseudophase -> pseudophase-psd -> pseudophase-etf,
// plus an unrelated source kind "tweeter".
func PseudophaseGraph(t *testing.T) *registry.Graph {
	t.Helper()
	g := registry.NewGraph()
	slopes := g.Require("Slopes", Slopes)
	pp := g.Require("Pseudophase", Pseudophase, registry.WithVariant(domain.VariantMatrix))
	psd := g.Require("Pseudophase PSD", PseudophasePSD, registry.WithVariant(domain.VariantPeriodogram))
	etf := g.Require("Pseudophase ETF", PseudophaseETF, registry.WithVariant(domain.VariantRatio))
	g.Require("Tweeter", Tweeter)
	require.NoError(t, g.AddPrerequisite(pp, slopes))
	require.NoError(t, g.AddPrerequisite(psd, pp))
	require.NoError(t, g.AddPrerequisite(etf, psd))
	return g
}

// Dataset registers a valid dataset in the index and returns it.
func Dataset(t *testing.T, index ports.Index, id string) domain.Dataset {
	t.Helper()
	ds := domain.Dataset{
		ID:      id,
		Locator: id,
		Created: time.Date(2016, 3, 16, 12, 0, 0, 0, time.UTC),
		Valid:   true,
	}
	require.NoError(t, index.PutDataset(context.Background(), ds))
	return ds
}

// Ramp returns a rows x cols array filled with 1, 2, 3, ...
func Ramp(rows, cols int) domain.Array {
	a := domain.NewArray(rows, cols)
	for i := range a.Data {
		a.Data[i] = float64(i + 1)
	}
	return a
}

// Commit writes value under key and records the artifact row, as a
// successful generation would.
func Commit(t *testing.T, store ports.ArtifactStore, index ports.Index, ds domain.Dataset, key string, value domain.Array) {
	t.Helper()
	ctx := context.Background()
	h, err := store.Open(ctx, ds)
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.Put(ctx, key, value))

	tx, err := index.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertArtifact(ctx, domain.Artifact{DatasetID: ds.ID, Key: key, Created: time.Now().UTC()}))
	require.NoError(t, tx.Commit(ctx))
}

// ErrInjected is the failure FaultyStore produces.
var ErrInjected = errors.New("injected storage failure")

// FaultyStore wraps a memory store and fails selected operations.
type FaultyStore struct {
	*memory.Store

	mu       sync.Mutex
	FailOpen bool
	FailKeys bool
	FailPut  bool
	opened   int
	closed   int
}

// NewFaultyStore creates a FaultyStore over a fresh memory store.
func NewFaultyStore() *FaultyStore {
	return &FaultyStore{Store: memory.NewStore()}
}

// Open implements ports.ArtifactStore.
func (s *FaultyStore) Open(ctx context.Context, ds domain.Dataset) (ports.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOpen {
		return nil, ErrInjected
	}
	h, err := s.Store.Open(ctx, ds)
	if err != nil {
		return nil, err
	}
	s.opened++
	return &faultyHandle{Handle: h, store: s}, nil
}

// Outstanding returns the number of handles opened but not yet closed.
func (s *FaultyStore) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened - s.closed
}

// Set toggles a failure flag under the store's lock.
func (s *FaultyStore) Set(fn func(s *FaultyStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type faultyHandle struct {
	ports.Handle
	store *FaultyStore
}

func (h *faultyHandle) Keys(ctx context.Context) ([]string, error) {
	h.store.mu.Lock()
	fail := h.store.FailKeys
	h.store.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return h.Handle.Keys(ctx)
}

func (h *faultyHandle) Put(ctx context.Context, key string, value domain.Array) error {
	h.store.mu.Lock()
	fail := h.store.FailPut
	h.store.mu.Unlock()
	if fail {
		// Leave a partial write behind, as a crashed writer would.
		_ = h.Handle.Put(ctx, key, domain.Array{Shape: []int{1}, Data: []float64{0}})
		return ErrInjected
	}
	return h.Handle.Put(ctx, key, value)
}

func (h *faultyHandle) Close() error {
	h.store.mu.Lock()
	h.store.closed++
	h.store.mu.Unlock()
	return h.Handle.Close()
}
