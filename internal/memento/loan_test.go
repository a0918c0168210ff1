package memento

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantidproject/mantid-sub073/pkg/types"
)

func TestLoanRelease(t *testing.T) {
	c := newTestCollection(t, "ws1")
	loan, err := c.At(0)
	require.NoError(t, err)
	assert.True(t, loan.Active())

	require.NoError(t, loan.Release())
	assert.False(t, loan.Active())
	assert.NoError(t, loan.Release(), "second release is a no-op")
	_, err = loan.Memento()
	assert.ErrorIs(t, err, types.ErrLoanReleased)
	_, err = loan.Transfer()
	assert.ErrorIs(t, err, types.ErrLoanReleased)
}

func TestLoanTransfer(t *testing.T) {
	c := newTestCollection(t, "ws1")
	loan, err := c.At(0)
	require.NoError(t, err)
	m, _ := loan.Memento()

	next, err := loan.Transfer()
	require.NoError(t, err)
	assert.False(t, loan.Active())
	assert.True(t, m.Locked(), "lock stays held across a transfer")
	_, err = c.At(0)
	assert.ErrorIs(t, err, types.ErrLockHeld)

	require.NoError(t, loan.Release(), "the old handle no longer owns the lock")
	assert.True(t, m.Locked())

	got, err := next.Memento()
	require.NoError(t, err)
	assert.Same(t, m, got)
	require.NoError(t, next.Release())
	assert.False(t, m.Locked())
}

func TestWithReleasesOnError(t *testing.T) {
	c := newTestCollection(t, "ws1")
	boom := errors.New("boom")
	err := c.With(0, func(*Memento) error { return boom })
	assert.ErrorIs(t, err, boom)

	loan, err := c.At(0)
	require.NoError(t, err)
	assert.NoError(t, loan.Release())
}
