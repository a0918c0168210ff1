package lock

import (
	"errors"
	"testing"

	"github.com/mantidproject/mantid-sub073/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyString(t *testing.T) {
	assert.Equal(t, "ws:MAR11001", NameKey("MAR11001").String())
	assert.Equal(t, "run:11001", RunKey(11001).String())
	assert.NotEqual(t, NameKey("1"), RunKey(1))
}

func TestSingleOwnerLock(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T, r Registry)
	}{
		{
			name: "second token cannot lock a held key until unlock",
			check: func(t *testing.T, r Registry) {
				first := NewSingleOwnerLock(r, NameKey("ws1"))
				second := NewSingleOwnerLock(r, NameKey("ws1"))

				require.NoError(t, first.Lock())
				assert.True(t, first.Locked())

				err := second.Lock()
				require.Error(t, err)
				assert.ErrorIs(t, err, types.ErrLockHeld)
				var lockErr *LockError
				require.True(t, errors.As(err, &lockErr))
				assert.Equal(t, NameKey("ws1"), lockErr.Key)
				assert.False(t, second.Locked())

				released, err := first.Unlock()
				require.NoError(t, err)
				assert.True(t, released)

				require.NoError(t, second.Lock())
				assert.True(t, second.Locked())
			},
		},
		{
			name: "unlock on a never locked key returns false",
			check: func(t *testing.T, r Registry) {
				l := NewSingleOwnerLock(r, RunKey(42))
				released, err := l.Unlock()
				require.NoError(t, err)
				assert.False(t, released)
			},
		},
		{
			name: "unlock twice returns false the second time",
			check: func(t *testing.T, r Registry) {
				l := NewSingleOwnerLock(r, RunKey(7))
				require.NoError(t, l.Lock())
				released, err := l.Unlock()
				require.NoError(t, err)
				assert.True(t, released)
				released, err = l.Unlock()
				require.NoError(t, err)
				assert.False(t, released)
			},
		},
		{
			name: "locking twice with the same token fails",
			check: func(t *testing.T, r Registry) {
				l := NewSingleOwnerLock(r, NameKey("again"))
				require.NoError(t, l.Lock())
				assert.ErrorIs(t, l.Lock(), types.ErrLockHeld)
				assert.True(t, l.Locked(), "failed relock keeps the original hold")
			},
		},
		{
			name: "name and run keys do not collide",
			check: func(t *testing.T, r Registry) {
				require.NoError(t, NewSingleOwnerLock(r, NameKey("5")).Lock())
				require.NoError(t, NewSingleOwnerLock(r, RunKey(5)).Lock())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, NewMemoryRegistry(nil))
		})
	}
}

func TestMemoryRegistryNeverPrunes(t *testing.T) {
	r := NewMemoryRegistry(nil)
	require.NoError(t, r.Acquire(NameKey("a")))
	_, err := r.Release(NameKey("a"))
	require.NoError(t, err)

	held, err := r.Held(NameKey("a"))
	require.NoError(t, err)
	assert.False(t, held)
	assert.Equal(t, 1, r.Len())
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewMemoryRegistry(nil)
	b := NewMemoryRegistry(nil)
	require.NoError(t, a.Acquire(NameKey("shared")))
	require.NoError(t, b.Acquire(NameKey("shared")), "separate registries share no state")
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(types.Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryRegistry{}, r)

	_, err = NewRegistry(types.Config{LockBackend: "zookeeper"}, nil)
	assert.ErrorIs(t, err, types.ErrLockBackendUnknown)
}
