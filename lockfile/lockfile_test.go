package lockfile_test

import (
	"path/filepath"
	"testing"

	"github.com/gridhome/energy-supervisor/lockfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAndUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.lock")

	l := lockfile.New(path)
	require.NoError(t, l.TryLock())
	require.NoError(t, l.Unlock())

	// Lockable again after unlocking.
	require.NoError(t, l.TryLock())
	require.NoError(t, l.Unlock())
}

func TestSecondLockInProcessFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.lock")

	first := lockfile.New(path)
	require.NoError(t, first.TryLock())
	defer first.Unlock()

	second := lockfile.New(path)
	assert.ErrorIs(t, second.TryLock(), lockfile.ErrAlreadyLocked)
}

func TestUnlockWithoutLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.lock")

	l := lockfile.New(path)
	assert.ErrorIs(t, l.Unlock(), lockfile.ErrNotLocked)
}

func TestUnlockSomeoneElsesLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisor.lock")

	owner := lockfile.New(path)
	require.NoError(t, owner.TryLock())
	defer owner.Unlock()

	thief := lockfile.New(path)
	assert.ErrorIs(t, thief.Unlock(), lockfile.ErrNotOurLock)
}
