package daemon

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadPID is a PID that almost certainly does not exist.
const deadPID = 999999

func newPIDFile(t *testing.T) *PIDFile {
	t.Helper()
	return NewPIDFile(filepath.Join(t.TempDir(), "run", "todoai-serve.pid"))
}

func TestPIDFile_WriteAndRead(t *testing.T) {
	pf := newPIDFile(t)

	require.NoError(t, pf.WritePID(12345), "parent directory is created")

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-number\n"), 0o644))

	_, err := NewPIDFile(path).Read()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PID file content")
}

func TestPIDFile_Read_MissingFile(t *testing.T) {
	_, err := newPIDFile(t).Read()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPIDFile_IsRunning(t *testing.T) {
	pf := newPIDFile(t)

	pid, running := pf.IsRunning()
	assert.Zero(t, pid)
	assert.False(t, running, "no file means not running")

	require.NoError(t, pf.Write())
	pid, running = pf.IsRunning()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, pf.WritePID(deadPID))
	pid, running = pf.IsRunning()
	assert.Equal(t, deadPID, pid)
	assert.False(t, running)
}

func TestPIDFile_Acquire(t *testing.T) {
	pf := newPIDFile(t)

	require.NoError(t, pf.Acquire())
	err := pf.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestPIDFile_Acquire_ReplacesStale(t *testing.T) {
	pf := newPIDFile(t)
	require.NoError(t, pf.WritePID(deadPID))

	require.NoError(t, pf.Acquire())
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Release(t *testing.T) {
	pf := newPIDFile(t)

	assert.NoError(t, pf.Release(), "missing file is fine")

	require.NoError(t, pf.WritePID(deadPID))
	require.NoError(t, pf.Release())
	_, err := os.Stat(pf.Path)
	assert.NoError(t, err, "a file owned by another PID is kept")

	require.NoError(t, pf.Write())
	require.NoError(t, pf.Release())
	_, err = os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestPIDFile_WaitExit(t *testing.T) {
	pf := newPIDFile(t)
	require.NoError(t, pf.WritePID(deadPID))
	assert.True(t, pf.WaitExit(time.Second))

	require.NoError(t, pf.Write())
	assert.False(t, pf.WaitExit(150*time.Millisecond), "current process never exits")
}

func TestPIDFile_Signal(t *testing.T) {
	pf := newPIDFile(t)

	err := pf.Signal(syscall.Signal(0))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read PID file")

	require.NoError(t, pf.Write())
	assert.NoError(t, pf.Signal(syscall.Signal(0)))
}
