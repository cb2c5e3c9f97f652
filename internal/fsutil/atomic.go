// Package fsutil provides locked, atomic file replacement.
package fsutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const temporaryPattern = ".dirstat-tmp-*"

// FileLock wraps a flock lock file next to the file it protects.
type FileLock struct {
	flock *flock.Flock
	path  string
}

func NewFileLock(path string) *FileLock {
	return &FileLock{flock: flock.New(path), path: path}
}

func (lock *FileLock) Lock() error {
	if err := lock.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", lock.path, err)
	}
	return nil
}

func (lock *FileLock) Unlock() error {
	if err := lock.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", lock.path, err)
	}
	return nil
}

// WriteAtomic streams content produced by write into a temporary file in the
// target directory and renames it over path once everything succeeded. A
// failure at any point leaves an existing file at path untouched.
func WriteAtomic(path string, perm os.FileMode, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	temporary, err := os.CreateTemp(dir, temporaryPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	temporaryPath := temporary.Name()
	defer func() {
		if err != nil {
			temporary.Close()
			os.Remove(temporaryPath)
		}
	}()

	buffered := bufio.NewWriter(temporary)
	if err = write(buffered); err != nil {
		return err
	}
	if err = buffered.Flush(); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = temporary.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = temporary.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(temporaryPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = os.Rename(temporaryPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

// LockAndWrite holds "<path>.lock" for the duration of WriteAtomic.
func LockAndWrite(path string, perm os.FileMode, write func(io.Writer) error) error {
	lock := NewFileLock(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()
	return WriteAtomic(path, perm, write)
}
