package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"dirstat/internal/domain"
	"dirstat/internal/exclude"
)

// FSScanner runs one depth-first traversal. It is created Idle, moves to
// Scanning on launch and ends in exactly one terminal state.
type FSScanner struct {
	rules      *exclude.Rules
	interval   time.Duration
	logger     *zap.Logger
	treeLock   sync.Locker
	emit       func(Event)
	finish     func(ScanState)
	generation uint64

	mu     sync.Mutex
	state  ScanState
	cancel context.CancelFunc
	done   chan struct{}
	stats  ScanStats
	root   *domain.Entry
	path   string
	// failOnRoot turns an unreadable root into StateFailed. Subtree
	// refreshes record it as a read error instead.
	failOnRoot bool
	err        error

	lastProgress time.Time
}

func newFSScanner(treeLock sync.Locker, emit func(Event), options TreeOptions) *FSScanner {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSScanner{
		rules:    options.Rules.Clone(),
		interval: options.ProgressInterval,
		logger:   logger.Named("scanner"),
		treeLock: treeLock,
		emit:     emit,
		done:     make(chan struct{}),
	}
}

// prepare validates rootPath and creates the busy root entry without
// touching the tree.
func (scanner *FSScanner) prepare(rootPath string) (*domain.Entry, error) {
	root := cleanPath(rootPath)
	if root == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	stat, err := lstat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if stat.mode&fs.ModeSymlink != 0 {
		// The root itself is resolved so that "dirstat ~/link" scans the target.
		info, statErr := os.Stat(root)
		if statErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, statErr)
		}
		stat.mode = info.Mode().Type()
		stat.metrics.Size = info.Size()
		stat.metrics.ModTime = info.ModTime().Unix()
	}
	if !stat.mode.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, root)
	}
	handle, err := os.Open(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	handle.Close()

	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	scanner.root = domain.NewEntry(root, domain.KindBusy, stat.metrics)
	scanner.path = root
	scanner.failOnRoot = true
	return scanner.root, nil
}

// prepareAt creates a busy entry for a directory that replaces an existing
// subtree at path. The caller attaches it.
func (scanner *FSScanner) prepareAt(path string) (*domain.Entry, error) {
	stat, err := lstat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !stat.mode.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDir, path)
	}
	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	scanner.root = domain.NewEntry(filepath.Base(path), domain.KindBusy, stat.metrics)
	scanner.path = path
	scanner.failOnRoot = false
	return scanner.root, nil
}

// launch emits the start event and begins the traversal in the background.
func (scanner *FSScanner) launch(generation uint64, finish func(ScanState)) error {
	scanner.mu.Lock()
	if scanner.state == StateScanning {
		scanner.mu.Unlock()
		return ErrBusy
	}
	if scanner.root == nil {
		scanner.mu.Unlock()
		return ErrNoTree
	}
	ctx, cancel := context.WithCancel(context.Background())
	scanner.generation = generation
	scanner.finish = finish
	scanner.cancel = cancel
	scanner.state = StateScanning
	scanner.stats = ScanStats{}
	root, path := scanner.root, scanner.path
	scanner.mu.Unlock()

	scanner.logger.Info("scan started", zap.String("path", path), zap.Uint64("generation", generation))
	scanner.emit(Event{Type: EventScanStarted, Generation: generation, Path: path, Text: "Reading " + path, Busy: true})
	go scanner.run(ctx, root, path)
	return nil
}

// Abort requests cooperative cancellation. It is a no-op unless scanning.
func (scanner *FSScanner) Abort() {
	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	if scanner.state != StateScanning || scanner.cancel == nil {
		return
	}
	scanner.cancel()
}

// Wait blocks until the scan reached a terminal state.
func (scanner *FSScanner) Wait() {
	scanner.mu.Lock()
	state := scanner.state
	scanner.mu.Unlock()
	if state == StateIdle {
		return
	}
	<-scanner.done
}

func (scanner *FSScanner) State() ScanState {
	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	return scanner.state
}

func (scanner *FSScanner) Stats() ScanStats {
	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	return scanner.stats
}

// Err is the reason for StateFailed.
func (scanner *FSScanner) Err() error {
	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	return scanner.err
}

func (scanner *FSScanner) run(ctx context.Context, root *domain.Entry, path string) {
	defer close(scanner.done)
	start := time.Now()

	_, rootErr := scanner.readDirectory(ctx, root, path, true)

	state := StateFinished
	switch {
	case rootErr != nil:
		state = StateFailed
	case ctx.Err() != nil:
		state = StateAborted
		scanner.finalizeAborted(root)
	}

	scanner.mu.Lock()
	scanner.stats.Duration = time.Since(start)
	scanner.state = state
	scanner.err = rootErr
	stats := scanner.stats
	finish := scanner.finish
	scanner.cancel()
	scanner.mu.Unlock()

	if finish != nil {
		finish(state)
	}

	event := Event{Generation: scanner.generation, Path: path, Stats: stats}
	switch state {
	case StateFailed:
		scanner.logger.Warn("scan failed", zap.String("path", path), zap.Error(rootErr))
		event.Type = EventFailed
		event.Err = rootErr
		event.Text = fmt.Sprintf("Reading %s failed: %v", path, rootErr)
	case StateAborted:
		scanner.logger.Info("scan aborted", zap.String("path", path), zap.Int64("items", stats.Items))
		event.Type = EventAborted
		event.Text = "Reading aborted."
	default:
		scanner.logger.Info("scan finished",
			zap.String("path", path),
			zap.Int64("items", stats.Items),
			zap.Int64("errors", stats.Errors),
			zap.Duration("duration", stats.Duration))
		event.Type = EventFinished
		event.Text = fmt.Sprintf("Finished reading %s in %s", path, stats.Duration.Round(time.Millisecond))
	}
	scanner.emit(event)
}

type pendingDir struct {
	entry *domain.Entry
	path  string
}

// readDirectory lists dir, attaches all its children in one locked batch and
// recurses into the busy subdirectories. It reports whether the whole subtree
// was read; only an unreadable scan root yields an error.
func (scanner *FSScanner) readDirectory(ctx context.Context, dir *domain.Entry, path string, isRoot bool) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	items, err := os.ReadDir(path)
	if err != nil {
		readErr := &ReadError{Path: path, Err: err}
		if isRoot && scanner.failOnRoot {
			scanner.withTreeLock(func() { scanner.setKind(dir, domain.KindError) })
			return false, readErr
		}
		scanner.recordError(readErr)
		scanner.withTreeLock(func() { scanner.setKind(dir, domain.KindError) })
		if !isRoot {
			// Counted as an item when its parent was listed.
			scanner.mu.Lock()
			scanner.stats.Items--
			scanner.mu.Unlock()
		}
		return true, nil
	}

	children := make([]*domain.Entry, 0, len(items))
	var subdirs []pendingDir
	var excluded, failed int64
	for _, item := range items {
		childPath := filepath.Join(path, item.Name())
		child := scanner.classify(childPath, item)
		switch child.Kind() {
		case domain.KindBusy:
			subdirs = append(subdirs, pendingDir{entry: child, path: childPath})
		case domain.KindExcluded:
			excluded++
		case domain.KindError:
			failed++
		}
		children = append(children, child)
	}

	scanner.withTreeLock(func() {
		for _, child := range children {
			if err := domain.AttachChild(dir, child); err != nil {
				scanner.logger.Warn("attach entry", zap.String("path", filepath.Join(path, child.Name())), zap.Error(err))
			}
		}
	})

	scanner.mu.Lock()
	scanner.stats.Dirs++
	scanner.stats.Items += int64(len(children)) - excluded - failed
	scanner.stats.Excluded += excluded
	scanner.mu.Unlock()
	scanner.reportProgress(path)

	complete := true
	for _, subdir := range subdirs {
		if ctx.Err() != nil {
			return false, nil
		}
		subComplete, _ := scanner.readDirectory(ctx, subdir.entry, subdir.path, false)
		complete = complete && subComplete
	}
	if complete {
		scanner.withTreeLock(func() { scanner.setKind(dir, domain.KindDir) })
	}
	return complete, nil
}

// classify turns a listed name into a fully populated, detached entry.
func (scanner *FSScanner) classify(path string, item fs.DirEntry) *domain.Entry {
	name := item.Name()
	stat, err := lstat(path)
	if err != nil {
		scanner.recordError(&ReadError{Path: path, Err: err})
		return domain.NewPlaceholder(name, domain.KindError)
	}
	switch {
	case stat.mode.IsDir():
		if scanner.rules.Matches(path) {
			scanner.logger.Debug("excluded", zap.String("path", path))
			return domain.NewPlaceholder(name, domain.KindExcluded)
		}
		return domain.NewEntry(name, domain.KindBusy, stat.metrics)
	case stat.mode&fs.ModeSymlink != 0:
		return domain.NewEntry(name, domain.KindSymlink, stat.metrics)
	case stat.mode.IsRegular():
		return domain.NewEntry(name, domain.KindFile, stat.metrics)
	default:
		return domain.NewEntry(name, domain.KindSpecial, stat.metrics)
	}
}

// finalizeAborted turns every directory that was still being read into a
// regular directory flagged as incomplete.
func (scanner *FSScanner) finalizeAborted(root *domain.Entry) {
	scanner.withTreeLock(func() {
		root.Walk(func(node *domain.Entry, _ int) bool {
			if node.Kind() != domain.KindBusy {
				return node.IsDirLike()
			}
			scanner.setKind(node, domain.KindDir)
			domain.MarkIncomplete(node, true)
			return true
		})
	})
}

// setKind converts entry and logs when the tree refuses the change. The tree
// lock must be held.
func (scanner *FSScanner) setKind(entry *domain.Entry, kind domain.Kind) {
	if err := domain.SetKind(entry, kind); err != nil {
		scanner.logger.Warn("change entry kind",
			zap.String("path", entry.Path()),
			zap.Stringer("kind", kind),
			zap.Error(err))
	}
}

func (scanner *FSScanner) recordError(readErr *ReadError) {
	if isPermissionErr(readErr.Err) {
		scanner.logger.Debug("permission denied", zap.String("path", readErr.Path))
	} else {
		scanner.logger.Warn("read error", zap.String("path", readErr.Path), zap.Error(readErr.Err))
	}
	scanner.mu.Lock()
	defer scanner.mu.Unlock()
	scanner.stats.Errors++
	if len(scanner.stats.ReadErrors) < maxRecordedErrors {
		scanner.stats.ReadErrors = append(scanner.stats.ReadErrors, *readErr)
	}
}

func (scanner *FSScanner) reportProgress(path string) {
	now := time.Now()
	if !scanner.lastProgress.IsZero() && now.Sub(scanner.lastProgress) < scanner.interval {
		return
	}
	scanner.lastProgress = now
	stats := scanner.Stats()
	scanner.emit(Event{
		Type:       EventProgress,
		Generation: scanner.generation,
		Path:       path,
		Text:       fmt.Sprintf("Reading %s (%d items)", path, stats.Items),
		Busy:       true,
		Stats:      stats,
	})
}

func (scanner *FSScanner) withTreeLock(change func()) {
	scanner.treeLock.Lock()
	defer scanner.treeLock.Unlock()
	change()
}

func cleanPath(path string) string {
	if path == "" {
		return path
	}
	clean := filepath.Clean(path)
	abs, err := filepath.Abs(clean)
	if err != nil {
		return clean
	}
	return abs
}

func isPermissionErr(err error) bool {
	return errors.Is(err, os.ErrPermission)
}
