package services

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"dirstat/internal/domain"
	"dirstat/internal/fsutil"
)

// DefaultCacheName is the cache file written into a scanned directory when
// no other name is configured.
const DefaultCacheName = ".dirstat.cache.gz"

const cacheFileMode = 0o644

func isGzipName(file string) bool {
	return strings.HasSuffix(file, ".gz")
}

// ReadCacheFile decodes file, transparently decompressing ".gz" files.
func ReadCacheFile(ctx context.Context, file string) (*domain.Entry, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, &CacheIOError{File: file, Op: "open", Err: err}
	}
	defer handle.Close()

	var reader io.Reader = handle
	if isGzipName(file) {
		unzipped, err := gzip.NewReader(handle)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = ErrTruncated
			}
			return nil, &CacheIOError{File: file, Op: "read", Err: err}
		}
		defer unzipped.Close()
		reader = unzipped
	}

	root, err := DecodeCache(ctx, reader)
	return root, withCacheFile(err, file)
}

// WriteCacheFile encodes root into file. The file is replaced only after the
// whole tree was written.
func WriteCacheFile(ctx context.Context, file string, root *domain.Entry) error {
	err := fsutil.LockAndWrite(file, cacheFileMode, func(w io.Writer) error {
		if !isGzipName(file) {
			return EncodeCache(ctx, w, root)
		}
		zipped := gzip.NewWriter(w)
		if err := EncodeCache(ctx, zipped, root); err != nil {
			zipped.Close()
			return err
		}
		return zipped.Close()
	})
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrNoTree) {
		return err
	}
	return &CacheIOError{File: file, Op: "write", Err: err}
}

func withCacheFile(err error, file string) error {
	var formatError *CacheFormatError
	if errors.As(err, &formatError) {
		formatError.File = file
		return formatError
	}
	var ioError *CacheIOError
	if errors.As(err, &ioError) {
		ioError.File = file
		return ioError
	}
	return err
}
