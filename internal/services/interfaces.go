package services

import (
	"context"

	"dirstat/internal/domain"
)

// TreeReader is the read side of a DirectoryTree used by front ends.
type TreeReader interface {
	View(read func(root *domain.Entry))
	Generation() uint64
	URL() string
	IsBusy() bool
	State() ScanState
	Stats() ScanStats
	CacheOrigin() string
}

// TreeCommander issues commands to a DirectoryTree.
type TreeCommander interface {
	OpenPath(path string) error
	Refresh() error
	RefreshSubtree(path string) error
	AbortReading()
	ReadCache(ctx context.Context, file string) error
	WriteCache(ctx context.Context, file string) error
}

type Tree interface {
	TreeReader
	TreeCommander
	Subscribe(callback func(Event)) func()
}
