package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.ArtifactStore using Redis.
// Each dataset is one hash: field = artifact key, value = JSON array.
type Store struct {
	client *backend.Client
	prefix string
}

var _ ports.ArtifactStore = (*Store)(nil)

type Option func(*Store)

// WithPrefix sets the key prefix for dataset hashes.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "telemetry:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client returns the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

// HashKey is the Redis key holding the dataset's artifacts.
func (s *Store) HashKey(ds domain.Dataset) string {
	loc := ds.Locator
	if loc == "" {
		loc = ds.ID
	}
	return s.prefix + "dataset:" + loc
}

// Open returns a handle on the dataset's hash.
func (s *Store) Open(ctx context.Context, ds domain.Dataset) (ports.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &handle{client: s.client, key: s.HashKey(ds)}, nil
}

// Discover scans for dataset hashes under the prefix. Creation time comes
// from a date-like name, else from now.
func (s *Store) Discover(ctx context.Context) ([]domain.Dataset, error) {
	base := s.prefix + "dataset:"
	var out []domain.Dataset
	iter := s.client.Scan(ctx, 0, base+"*", 100).Iterator()
	for iter.Next(ctx) {
		name := strings.TrimPrefix(iter.Val(), base)
		created, ok := domain.CreatedFromName(name)
		if !ok {
			created = time.Now().UTC()
		}
		out = append(out, domain.Dataset{ID: name, Locator: name, Created: created, Valid: true})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan datasets: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

type handle struct {
	client *backend.Client
	key    string
}

func (h *handle) Get(ctx context.Context, key string) (domain.Array, error) {
	val, err := h.client.HGet(ctx, h.key, key).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Array{}, domain.ErrKeyNotFound
		}
		return domain.Array{}, fmt.Errorf("failed to get from redis: %w", err)
	}
	var arr domain.Array
	if err := json.Unmarshal(val, &arr); err != nil {
		return domain.Array{}, fmt.Errorf("failed to unmarshal %q: %w", key, err)
	}
	return arr, nil
}

func (h *handle) Put(ctx context.Context, key string, value domain.Array) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}
	if err := h.client.HSet(ctx, h.key, key, data).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (h *handle) Has(ctx context.Context, key string) (bool, error) {
	ok, err := h.client.HExists(ctx, h.key, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query redis: %w", err)
	}
	return ok, nil
}

func (h *handle) Delete(ctx context.Context, key string) error {
	if err := h.client.HDel(ctx, h.key, key).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

func (h *handle) Keys(ctx context.Context) ([]string, error) {
	keys, err := h.client.HKeys(ctx, h.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// Close is a no-op: the client is shared by every handle.
func (h *handle) Close() error {
	return nil
}
