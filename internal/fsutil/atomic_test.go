package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomicReplacesFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "out.txt")
	err := WriteAtomic(target, 0o644, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteAtomicKeepsOriginalOnFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o644))

	failure := errors.New("encoder broke")
	err := WriteAtomic(target, 0o644, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return failure
	})
	require.ErrorIs(t, err, failure)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be cleaned up")
}

func TestLockAndWrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "locked.txt")
	require.NoError(t, LockAndWrite(target, 0o600, func(w io.Writer) error {
		_, err := io.WriteString(w, "data")
		return err
	}))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}
