package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath means the scan root does not exist, is not a directory
	// or cannot be opened. No scan is started.
	ErrInvalidPath = errors.New("invalid path")
	ErrBusy        = errors.New("a scan is in progress")
	ErrNoTree      = errors.New("no tree loaded")
	ErrNotFound    = errors.New("path not in tree")
	ErrNotDir      = errors.New("not a directory")
	// ErrTruncated is wrapped by CacheIOError when a cache file ends early.
	ErrTruncated = errors.New("truncated cache file")
)

// ReadError records one path that could not be read during a scan.
type ReadError struct {
	Path string
	Err  error
}

func (readError *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", readError.Path, readError.Err)
}

func (readError *ReadError) Unwrap() error {
	return readError.Err
}

// CacheFormatError reports malformed cache content.
type CacheFormatError struct {
	File   string
	Line   int
	Reason string
}

func (formatError *CacheFormatError) Error() string {
	if formatError.File == "" {
		return fmt.Sprintf("cache line %d: %s", formatError.Line, formatError.Reason)
	}
	return fmt.Sprintf("cache file %s line %d: %s", formatError.File, formatError.Line, formatError.Reason)
}

// CacheIOError reports a storage failure while reading or writing a cache.
type CacheIOError struct {
	File string
	Op   string
	Err  error
}

func (ioError *CacheIOError) Error() string {
	if ioError.File == "" {
		return fmt.Sprintf("cache %s: %v", ioError.Op, ioError.Err)
	}
	return fmt.Sprintf("cache %s %s: %v", ioError.Op, ioError.File, ioError.Err)
}

func (ioError *CacheIOError) Unwrap() error {
	return ioError.Err
}
