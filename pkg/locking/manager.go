package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/telemetry/internal/logging"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/ports"
)

// DefaultTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultTTL = 30 * time.Second

// lockEntry holds a one-slot semaphore and the reference count.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Manager hands out per-key mutual exclusion.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker ports.DistributedLocker // Optional distributed locker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithTTL sets the expiry of distributed locks.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a lock manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST call release(key) once done with the entry.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Active returns the number of keys currently holding or awaiting a lock.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock runs fn while holding the lock for key, waiting as long as ctx allows.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	return m.run(ctx, ctx, key, fn)
}

// TryWithLock runs fn while holding the lock for key. If the lock is not
// acquired within timeout it returns a *domain.LockBusyError and fn does not run.
// Cancellation of ctx is returned as is.
func (m *Manager) TryWithLock(ctx context.Context, key string, timeout time.Duration, fn func(context.Context) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.run(ctx, waitCtx, key, fn)
}

// run acquires under waitCtx and executes fn under ctx.
func (m *Manager) run(ctx, waitCtx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	defer m.release(key)

	// 1. Local lock
	select {
	case entry.sem <- struct{}{}:
	case <-waitCtx.Done():
		return m.busy(ctx, key, waitCtx.Err())
	}
	defer func() { <-entry.sem }()

	// 2. Distributed lock
	if m.locker != nil {
		unlock, err := m.locker.Lock(waitCtx, key, m.ttl)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return m.busy(ctx, key, err)
			}
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// Release even if the step's context was cancelled.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"dataset", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// busy maps a wait failure: caller cancellation stays a context error,
// anything else is a timeout.
func (m *Manager) busy(ctx context.Context, key string, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Debug("Lock busy", "dataset", key, "err", cause)
	return &domain.LockBusyError{Dataset: key, Cause: cause}
}
