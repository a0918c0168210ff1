// Package lock provides checkout locks for mementos: a Key naming what is
// locked, a Registry recording which keys are held, and SingleOwnerLock, a
// token that holds at most one key at a time.
//
// The registry is injected and scoped to its owner. MemoryRegistry gives
// in-process exclusion; RedisRegistry extends it to every process sharing the
// same Redis namespace. Neither is a general concurrency primitive: a held
// key fails fast and is never waited on.
package lock

import (
	"fmt"
	"strconv"

	"github.com/mantidproject/mantid-sub073/pkg/types"
)

// Key identifies a lockable entity by workspace name or by run number.
// Keys are comparable and usable as map keys.
type Key struct {
	name    string
	run     int64
	numeric bool
}

// NameKey returns the key for a workspace name.
func NameKey(name string) Key { return Key{name: name} }

// RunKey returns the key for a run number.
func RunKey(run int64) Key { return Key{run: run, numeric: true} }

// String returns "ws:<name>" or "run:<n>".
func (k Key) String() string {
	if k.numeric {
		return "run:" + strconv.FormatInt(k.run, 10)
	}
	return "ws:" + k.name
}

// Registry records which keys are held.
type Registry interface {
	// Acquire marks key as held. Returns a *LockError wrapping
	// types.ErrLockHeld if it already is.
	Acquire(key Key) error

	// Release marks key as free and reports whether it was held.
	// Releasing a free key is not an error.
	Release(key Key) (bool, error)

	// Held reports whether key is currently held.
	Held(key Key) (bool, error)
}

// OwnershipChecker is implemented by registries whose keys can be lost
// without a Release, such as RedisRegistry with a TTL.
type OwnershipChecker interface {
	// Owns reports whether key is held by this registry.
	Owns(key Key) (bool, error)
}

// Lock is the capability a memento uses to guard its checkout.
type Lock interface {
	// Lock takes the lock. Fails if it is already taken, by anyone.
	Lock() error

	// Unlock releases the lock and reports whether this token held it.
	Unlock() (bool, error)

	// Locked reports whether this token currently holds the lock.
	Locked() bool

	// Key returns the key the lock guards.
	Key() Key
}

// LockError reports an attempt to take a key that is already held.
type LockError struct {
	Key Key
	Err error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }

func heldError(key Key) error {
	return &LockError{Key: key, Err: types.ErrLockHeld}
}

// SingleOwnerLock binds one key to a registry. The token remembers whether it
// took the key, so Unlock on a token that never locked returns false.
type SingleOwnerLock struct {
	registry Registry
	key      Key
	held     bool
}

// Compile-time check that SingleOwnerLock satisfies Lock.
var _ Lock = (*SingleOwnerLock)(nil)

// NewSingleOwnerLock returns an unlocked token for key.
func NewSingleOwnerLock(registry Registry, key Key) *SingleOwnerLock {
	return &SingleOwnerLock{registry: registry, key: key}
}

// Key returns the key this token guards.
func (l *SingleOwnerLock) Key() Key { return l.key }

// Lock acquires the key. A token that already holds it fails as well.
func (l *SingleOwnerLock) Lock() error {
	if l.held {
		return heldError(l.key)
	}
	if err := l.registry.Acquire(l.key); err != nil {
		return err
	}
	l.held = true
	return nil
}

// Unlock releases the key if this token holds it.
func (l *SingleOwnerLock) Unlock() (bool, error) {
	if !l.held {
		return false, nil
	}
	released, err := l.registry.Release(l.key)
	if err != nil {
		return false, fmt.Errorf("release %s: %w", l.key, err)
	}
	l.held = false
	return released, nil
}

// Locked reports whether this token holds the key. When the registry is an
// OwnershipChecker the answer comes from the registry, and a token whose key
// expired or passed to another owner stops holding it. A failed check keeps
// the last known state.
func (l *SingleOwnerLock) Locked() bool {
	if !l.held {
		return false
	}
	oc, ok := l.registry.(OwnershipChecker)
	if !ok {
		return true
	}
	owns, err := oc.Owns(l.key)
	if err != nil {
		return true
	}
	l.held = owns
	return owns
}
