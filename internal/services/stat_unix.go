//go:build linux || darwin || freebsd

package services

import (
	"io/fs"

	"golang.org/x/sys/unix"

	"dirstat/internal/domain"
)

type fileStat struct {
	mode    fs.FileMode
	metrics domain.Metrics
}

// lstat reads the facts of path without following symbolic links. Blocks are
// reported in bytes.
func lstat(path string) (fileStat, error) {
	var raw unix.Stat_t
	if err := unix.Lstat(path, &raw); err != nil {
		return fileStat{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}
	var mode fs.FileMode
	switch uint32(raw.Mode) & unix.S_IFMT {
	case unix.S_IFDIR:
		mode = fs.ModeDir
	case unix.S_IFLNK:
		mode = fs.ModeSymlink
	case unix.S_IFREG:
		mode = 0
	default:
		mode = fs.ModeIrregular
	}
	return fileStat{
		mode: mode,
		metrics: domain.Metrics{
			Size:    int64(raw.Size),
			Blocks:  int64(raw.Blocks) * 512,
			ModTime: int64(raw.Mtim.Sec),
			Links:   uint64(raw.Nlink),
		},
	}, nil
}
