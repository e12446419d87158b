package memory

import (
	"context"
	"sync"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// Store implements ports.ArtifactStore in memory, keyed by dataset ID.
// Safe for concurrent use.
type Store struct {
	data map[string]map[string]domain.Array
	mu   sync.RWMutex
}

var _ ports.ArtifactStore = (*Store)(nil)

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[string]domain.Array),
	}
}

// Open returns a handle on the dataset's keys. Values written through the
// handle are visible to every other handle immediately.
func (s *Store) Open(ctx context.Context, ds domain.Dataset) (ports.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &handle{store: s, dataset: ds.ID}, nil
}

// Seed writes values directly, bypassing any index. Used to simulate
// externally ingested or externally mutated storage.
func (s *Store) Seed(datasetID string, values map[string]domain.Array) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.keysLocked(datasetID)
	for k, v := range values {
		keys[k] = copyArray(v)
	}
}

func (s *Store) keysLocked(datasetID string) map[string]domain.Array {
	keys, ok := s.data[datasetID]
	if !ok {
		keys = make(map[string]domain.Array)
		s.data[datasetID] = keys
	}
	return keys
}

type handle struct {
	store   *Store
	dataset string
	closed  bool
}

func (h *handle) Get(ctx context.Context, key string) (domain.Array, error) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	v, ok := h.store.data[h.dataset][key]
	if !ok {
		return domain.Array{}, domain.ErrKeyNotFound
	}
	// Copy on read so callers can't mutate the stored value.
	return copyArray(v), nil
}

func (h *handle) Put(ctx context.Context, key string, value domain.Array) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.keysLocked(h.dataset)[key] = copyArray(value)
	return nil
}

func (h *handle) Has(ctx context.Context, key string) (bool, error) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	_, ok := h.store.data[h.dataset][key]
	return ok, nil
}

func (h *handle) Delete(ctx context.Context, key string) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	delete(h.store.data[h.dataset], key)
	return nil
}

func (h *handle) Keys(ctx context.Context) ([]string, error) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	keys := make([]string, 0, len(h.store.data[h.dataset]))
	for k := range h.store.data[h.dataset] {
		keys = append(keys, k)
	}
	return keys, nil
}

func (h *handle) Close() error {
	h.closed = true
	return nil
}

func copyArray(a domain.Array) domain.Array {
	return domain.Array{
		Shape: append([]int(nil), a.Shape...),
		Data:  append([]float64(nil), a.Data...),
	}
}
