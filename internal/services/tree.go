package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"dirstat/internal/domain"
	"dirstat/internal/exclude"
)

// DirectoryTree owns the root entry and the scanner lifecycle. It is the
// single object front ends talk to.
type DirectoryTree struct {
	// mu guards the node graph. The scanner holds it for writing while it
	// attaches a directory's children; readers go through View.
	mu sync.RWMutex
	// control serializes commands so two scans never overlap.
	control sync.Mutex

	stateMu     sync.Mutex
	root        *domain.Entry
	rootPath    string
	cacheOrigin string
	modified    bool
	generation  uint64
	scanner     *FSScanner
	lastState   ScanState

	options  TreeOptions
	logger   *zap.Logger
	notifier notifier
}

func NewDirectoryTree(options TreeOptions) *DirectoryTree {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Rules == nil {
		options.Rules, _ = exclude.NewRules()
	}
	return &DirectoryTree{
		options: options,
		logger:  options.Logger.Named("tree"),
	}
}

// Subscribe registers callback for tree events and returns a function that
// removes it. Callbacks run on the scanning goroutine; apart from
// AbortReading they must not issue tree commands synchronously.
func (tree *DirectoryTree) Subscribe(callback func(Event)) func() {
	return tree.notifier.subscribe(callback)
}

// Rules are the exclude rules applied to the next scan.
func (tree *DirectoryTree) Rules() *exclude.Rules {
	return tree.options.Rules
}

// OpenPath aborts any scan in flight, waits for it to stop and starts a fresh
// scan of path. On ErrInvalidPath the current tree and its running scan are
// kept.
func (tree *DirectoryTree) OpenPath(path string) error {
	tree.control.Lock()
	defer tree.control.Unlock()
	return tree.openPath(path)
}

func (tree *DirectoryTree) openPath(path string) error {
	scanner := newFSScanner(&tree.mu, tree.notifier.emit, tree.options)
	root, err := scanner.prepare(path)
	if err != nil {
		tree.logger.Warn("cannot open path", zap.String("path", path), zap.Error(err))
		return err
	}
	tree.stopScan()

	tree.mu.Lock()
	tree.stateMu.Lock()
	tree.root = root
	tree.rootPath = root.Path()
	tree.cacheOrigin = ""
	tree.generation++
	tree.scanner = scanner
	generation := tree.generation
	tree.stateMu.Unlock()
	tree.mu.Unlock()

	return scanner.launch(generation, tree.scanFinished)
}

// Refresh rescans the current root from scratch.
func (tree *DirectoryTree) Refresh() error {
	tree.control.Lock()
	defer tree.control.Unlock()
	url := tree.URL()
	if url == "" {
		return ErrNoTree
	}
	return tree.openPath(url)
}

// RefreshSubtree discards the directory at path and reads it again in the
// background. The fresh entry is appended to the parent's children. If the
// directory vanished it is pruned and ErrInvalidPath returned.
func (tree *DirectoryTree) RefreshSubtree(path string) error {
	tree.control.Lock()
	defer tree.control.Unlock()
	if tree.IsBusy() {
		return ErrBusy
	}

	tree.mu.Lock()
	root := tree.root
	if root == nil {
		tree.mu.Unlock()
		return ErrNoTree
	}
	old := domain.Locate(root, path)
	if old == nil {
		tree.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if old == root {
		tree.mu.Unlock()
		return tree.openPath(root.Path())
	}
	if old.Kind() != domain.KindDir {
		tree.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotDir, path)
	}
	absolute := old.Path()
	parent := old.Parent()

	scanner := newFSScanner(&tree.mu, tree.notifier.emit, tree.options)
	fresh, prepareErr := scanner.prepareAt(absolute)
	if err := domain.DetachChild(parent, old); err != nil {
		tree.logger.Warn("detach refreshed directory", zap.String("path", absolute), zap.Error(err))
	}
	if prepareErr == nil {
		if err := domain.AttachChild(parent, fresh); err != nil {
			tree.logger.Warn("attach refreshed directory", zap.String("path", absolute), zap.Error(err))
		}
	}
	tree.stateMu.Lock()
	tree.generation++
	tree.modified = true
	generation := tree.generation
	if prepareErr == nil {
		tree.scanner = scanner
	}
	tree.stateMu.Unlock()
	tree.mu.Unlock()

	if prepareErr != nil {
		tree.logger.Info("pruned vanished directory", zap.String("path", absolute), zap.Error(prepareErr))
		return prepareErr
	}
	return scanner.launch(generation, tree.scanFinished)
}

// AbortReading requests the running scan to stop. It never blocks and is a
// no-op when idle.
func (tree *DirectoryTree) AbortReading() {
	tree.stateMu.Lock()
	scanner := tree.scanner
	tree.stateMu.Unlock()
	if scanner != nil {
		scanner.Abort()
	}
}

// Wait blocks until the current scan, if any, reached a terminal state.
func (tree *DirectoryTree) Wait() {
	tree.stateMu.Lock()
	scanner := tree.scanner
	tree.stateMu.Unlock()
	if scanner != nil {
		scanner.Wait()
	}
}

// Close aborts a running scan and waits for it.
func (tree *DirectoryTree) Close() {
	tree.control.Lock()
	defer tree.control.Unlock()
	tree.stopScan()
}

func (tree *DirectoryTree) stopScan() {
	tree.AbortReading()
	tree.Wait()
}

func (tree *DirectoryTree) IsBusy() bool {
	return tree.State() == StateScanning
}

func (tree *DirectoryTree) State() ScanState {
	tree.stateMu.Lock()
	scanner := tree.scanner
	lastState := tree.lastState
	tree.stateMu.Unlock()
	if scanner == nil {
		return lastState
	}
	return scanner.State()
}

// Stats of the most recent scan.
func (tree *DirectoryTree) Stats() ScanStats {
	tree.stateMu.Lock()
	scanner := tree.scanner
	tree.stateMu.Unlock()
	if scanner == nil {
		return ScanStats{}
	}
	return scanner.Stats()
}

// URL is the root path of the current tree, empty if none is loaded.
func (tree *DirectoryTree) URL() string {
	tree.stateMu.Lock()
	defer tree.stateMu.Unlock()
	return tree.rootPath
}

// Generation changes whenever entries are discarded. Entry references taken
// under an older generation must not be used.
func (tree *DirectoryTree) Generation() uint64 {
	tree.stateMu.Lock()
	defer tree.stateMu.Unlock()
	return tree.generation
}

// IsModified reports whether the tree holds scan results not yet written to
// a cache file.
func (tree *DirectoryTree) IsModified() bool {
	tree.stateMu.Lock()
	defer tree.stateMu.Unlock()
	return tree.modified
}

// CacheOrigin is the cache file the tree was last read from or written to.
func (tree *DirectoryTree) CacheOrigin() string {
	tree.stateMu.Lock()
	defer tree.stateMu.Unlock()
	return tree.cacheOrigin
}

// View runs read with the node graph locked for reading. root is nil before
// anything was loaded. Entries must not be retained past a generation change.
func (tree *DirectoryTree) View(read func(root *domain.Entry)) {
	tree.mu.RLock()
	defer tree.mu.RUnlock()
	read(tree.root)
}

// ReadCache replaces the tree with the contents of file. The previous tree is
// kept on any error.
func (tree *DirectoryTree) ReadCache(ctx context.Context, file string) error {
	tree.control.Lock()
	defer tree.control.Unlock()
	if tree.IsBusy() {
		return ErrBusy
	}

	root, err := ReadCacheFile(ctx, file)
	if err != nil {
		tree.logger.Warn("cache read failed", zap.String("file", file), zap.Error(err))
		return err
	}

	tree.mu.Lock()
	tree.stateMu.Lock()
	tree.root = root
	tree.rootPath = root.Path()
	tree.cacheOrigin = file
	tree.modified = false
	tree.generation++
	tree.scanner = nil
	tree.lastState = StateIdle
	generation := tree.generation
	tree.stateMu.Unlock()
	tree.mu.Unlock()

	tree.logger.Info("cache read", zap.String("file", file), zap.Int64("items", root.Totals().Items))
	tree.notifier.emit(Event{
		Type:       EventTreeReplaced,
		Generation: generation,
		Path:       root.Path(),
		Text:       fmt.Sprintf("Read cache file %s", filepath.Base(file)),
	})
	return nil
}

// WriteCache stores the current tree in file, replacing it only once the
// whole tree was written.
func (tree *DirectoryTree) WriteCache(ctx context.Context, file string) error {
	tree.control.Lock()
	defer tree.control.Unlock()
	if tree.IsBusy() {
		return ErrBusy
	}

	var err error
	tree.View(func(root *domain.Entry) {
		if root == nil {
			err = ErrNoTree
			return
		}
		err = WriteCacheFile(ctx, file, root)
	})
	if err != nil {
		tree.logger.Warn("cache write failed", zap.String("file", file), zap.Error(err))
		return err
	}

	tree.stateMu.Lock()
	tree.cacheOrigin = file
	tree.modified = false
	tree.stateMu.Unlock()
	tree.logger.Info("cache written", zap.String("file", file))
	return nil
}

// scanFinished runs on the scanning goroutine right before the terminal event.
func (tree *DirectoryTree) scanFinished(state ScanState) {
	tree.stateMu.Lock()
	defer tree.stateMu.Unlock()
	tree.lastState = state
	tree.modified = true
}
