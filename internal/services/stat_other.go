//go:build !(linux || darwin || freebsd)

package services

import (
	"io/fs"
	"os"

	"dirstat/internal/domain"
)

type fileStat struct {
	mode    fs.FileMode
	metrics domain.Metrics
}

// lstat falls back to os.Lstat where allocated blocks and link counts are not
// available; the logical size stands in for the allocation.
func lstat(path string) (fileStat, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return fileStat{}, err
	}
	return fileStat{
		mode: info.Mode().Type(),
		metrics: domain.Metrics{
			Size:    info.Size(),
			Blocks:  info.Size(),
			ModTime: info.ModTime().Unix(),
			Links:   1,
		},
	}, nil
}
