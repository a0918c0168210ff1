package lock

import (
	"log/slog"
	"sync"
)

// MemoryRegistry keeps lock state in a map owned by the registry. Entries are
// created on first acquire and only toggled afterwards, never removed.
type MemoryRegistry struct {
	mu     sync.Mutex
	held   map[Key]bool
	logger *slog.Logger
}

// Compile-time check that MemoryRegistry satisfies Registry.
var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry returns an empty registry. A nil logger discards output.
func NewMemoryRegistry(logger *slog.Logger) *MemoryRegistry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MemoryRegistry{held: make(map[Key]bool), logger: logger}
}

// Acquire marks key as held.
func (r *MemoryRegistry) Acquire(key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held[key] {
		r.logger.Debug("lock contention", "key", key.String())
		return heldError(key)
	}
	r.held[key] = true
	return nil
}

// Release marks key as free and reports whether it was held.
func (r *MemoryRegistry) Release(key Key) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	was, ok := r.held[key]
	if !ok {
		return false, nil
	}
	r.held[key] = false
	return was, nil
}

// Held reports whether key is held.
func (r *MemoryRegistry) Held(key Key) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[key], nil
}

// Len returns the number of keys ever acquired.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.held)
}
