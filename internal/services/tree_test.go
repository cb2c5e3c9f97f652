package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"dirstat/internal/domain"
	"dirstat/internal/exclude"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (recorder *eventRecorder) record(event Event) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.events = append(recorder.events, event)
}

func (recorder *eventRecorder) snapshot() []Event {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return append([]Event(nil), recorder.events...)
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func newTestTree(t *testing.T, patterns ...string) *DirectoryTree {
	t.Helper()
	if patterns == nil {
		patterns = exclude.DefaultPatterns
	}
	rules, err := exclude.NewRules(patterns...)
	require.NoError(t, err)
	tree := NewDirectoryTree(TreeOptions{Rules: rules})
	t.Cleanup(tree.Close)
	return tree
}

func scan(t *testing.T, tree *DirectoryTree, path string) {
	t.Helper()
	require.NoError(t, tree.OpenPath(path))
	tree.Wait()
}

// requireConsistent checks the aggregation invariant through the public API.
// Fixture files have a single link, so own size equals the share.
func requireConsistent(t *testing.T, root *domain.Entry) {
	t.Helper()
	root.Walk(func(node *domain.Entry, _ int) bool {
		var expected domain.Totals
		if !node.IsPlaceholder() {
			expected.Size = node.Size()
			expected.Blocks = node.Blocks()
		}
		for _, child := range node.Children() {
			require.Same(t, node, child.Parent())
			expected = expected.Add(domain.Contribution(child))
		}
		require.Equal(t, expected, node.Totals(), "totals of %s", node.Path())
		return true
	})
}

func TestScanBuildsTree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), 100)
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), 250)
	writeFile(t, filepath.Join(dir, "sub", "deeper", "c.txt"), 0)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))

	tree := newTestTree(t)
	recorder := &eventRecorder{}
	tree.Subscribe(recorder.record)
	scan(t, tree, dir)

	assert.Equal(t, StateFinished, tree.State())
	assert.False(t, tree.IsBusy())
	assert.True(t, tree.IsModified())
	assert.Equal(t, dir, tree.URL())
	assert.Equal(t, uint64(1), tree.Generation())

	tree.View(func(root *domain.Entry) {
		require.NotNil(t, root)
		assert.Equal(t, domain.KindDir, root.Kind())
		assert.False(t, root.Incomplete())
		assert.Equal(t, int64(6), root.Totals().Items)
		assert.Equal(t, int64(3), root.Totals().SubDirs)
		sub := domain.Locate(root, filepath.Join(dir, "sub"))
		require.NotNil(t, sub)
		assert.Equal(t, domain.KindDir, sub.Kind())
		assert.Equal(t, int64(3), sub.Totals().Items)
		leaf := domain.Locate(root, filepath.Join(dir, "sub", "b.txt"))
		require.NotNil(t, leaf)
		assert.Equal(t, int64(250), leaf.Size())
		requireConsistent(t, root)
	})

	stats := tree.Stats()
	assert.Equal(t, int64(6), stats.Items)
	assert.Equal(t, int64(4), stats.Dirs)

	events := recorder.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, EventScanStarted, events[0].Type)
	assert.True(t, events[0].Busy)
	last := events[len(events)-1]
	assert.Equal(t, EventFinished, last.Type)
	assert.False(t, last.Busy)
	for _, event := range events {
		assert.Equal(t, uint64(1), event.Generation)
	}
}

func TestScanExcludesSnapshotDirectories(t *testing.T) {
	dir := t.TempDir()
	for index := 0; index < 10; index++ {
		writeFile(t, filepath.Join(dir, ".snapshot", fmt.Sprintf("f%d", index)), 10)
	}
	writeFile(t, filepath.Join(dir, "data", "kept"), 5)

	tree := newTestTree(t)
	scan(t, tree, dir)

	tree.View(func(root *domain.Entry) {
		snapshot := root.Find(".snapshot")
		require.NotNil(t, snapshot)
		assert.Equal(t, domain.KindExcluded, snapshot.Kind())
		assert.Equal(t, 0, snapshot.ChildCount())
		assert.Equal(t, int64(1), root.Totals().Excluded)
		assert.Equal(t, int64(2), root.Totals().Items)
		requireConsistent(t, root)
	})
	assert.Equal(t, int64(1), tree.Stats().Excluded)
}

func TestScanDoesNotFollowSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := t.TempDir()
	writeFile(t, filepath.Join(target, "big"), 4096)
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "link")))

	tree := newTestTree(t)
	scan(t, tree, dir)

	tree.View(func(root *domain.Entry) {
		link := root.Find("link")
		require.NotNil(t, link)
		assert.Equal(t, domain.KindSymlink, link.Kind())
		assert.Equal(t, 0, link.ChildCount())
		assert.Equal(t, int64(1), root.Totals().Items)
	})
}

func TestScanRecordsUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	dir := t.TempDir()
	locked := filepath.Join(dir, "locked")
	writeFile(t, filepath.Join(locked, "secret"), 10)
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	tree := newTestTree(t)
	scan(t, tree, dir)

	assert.Equal(t, StateFinished, tree.State())
	stats := tree.Stats()
	assert.Equal(t, int64(1), stats.Errors)
	require.Len(t, stats.ReadErrors, 1)
	assert.Equal(t, locked, stats.ReadErrors[0].Path)
	assert.ErrorIs(t, &stats.ReadErrors[0], os.ErrPermission)
	tree.View(func(root *domain.Entry) {
		entry := root.Find("locked")
		require.NotNil(t, entry)
		assert.Equal(t, domain.KindError, entry.Kind())
		assert.Equal(t, int64(1), root.Totals().Errors)
		assert.Equal(t, int64(0), root.Totals().SubDirs)
		requireConsistent(t, root)
	})
}

func TestAbortAfterFirstProgressLeavesConsistentTree(t *testing.T) {
	dir := t.TempDir()
	for index := 0; index < 20; index++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("d%02d", index), "file"), 64)
	}

	tree := newTestTree(t)
	recorder := &eventRecorder{}
	var once sync.Once
	tree.Subscribe(func(event Event) {
		recorder.record(event)
		if event.Type == EventProgress {
			once.Do(func() {
				tree.AbortReading()
				tree.AbortReading()
			})
		}
	})
	scan(t, tree, dir)

	assert.Equal(t, StateAborted, tree.State())
	events := recorder.snapshot()
	last := events[len(events)-1]
	assert.Equal(t, EventAborted, last.Type)
	assert.Equal(t, "Reading aborted.", last.Text)
	terminal := 0
	for _, event := range events {
		if event.IsTerminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)

	tree.View(func(root *domain.Entry) {
		assert.Equal(t, domain.KindDir, root.Kind())
		assert.True(t, root.Incomplete())
		assert.Equal(t, 20, root.ChildCount())
		root.Walk(func(node *domain.Entry, _ int) bool {
			assert.NotEqual(t, domain.KindBusy, node.Kind(), node.Path())
			return true
		})
		for _, child := range root.Children() {
			assert.True(t, child.Incomplete(), child.Name())
			assert.Equal(t, 0, child.ChildCount())
		}
		assert.Equal(t, int64(20), root.Totals().Items)
		requireConsistent(t, root)
	})

	// Idempotent once terminal.
	tree.AbortReading()
	assert.Equal(t, StateAborted, tree.State())
}

func TestAbortWhileIdleIsNoop(t *testing.T) {
	tree := newTestTree(t)
	tree.AbortReading()
	tree.Wait()
	assert.Equal(t, StateIdle, tree.State())

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), 1)
	scan(t, tree, dir)
	tree.AbortReading()
	assert.Equal(t, StateFinished, tree.State())
}

func TestOpenPathWhileScanningOrdersEvents(t *testing.T) {
	first := t.TempDir()
	for index := 0; index < 50; index++ {
		writeFile(t, filepath.Join(first, fmt.Sprintf("d%02d", index), "f"), 1)
	}
	second := t.TempDir()
	writeFile(t, filepath.Join(second, "only"), 3)

	tree := newTestTree(t)
	recorder := &eventRecorder{}
	tree.Subscribe(recorder.record)
	require.NoError(t, tree.OpenPath(first))
	require.NoError(t, tree.OpenPath(second))
	tree.Wait()

	assert.Equal(t, second, tree.URL())
	assert.Equal(t, uint64(2), tree.Generation())

	events := recorder.snapshot()
	var order []string
	for _, event := range events {
		if event.Type == EventScanStarted || event.IsTerminal() {
			order = append(order, fmt.Sprintf("%d:%s", event.Generation, event.Type))
		}
	}
	require.Len(t, order, 4)
	assert.Equal(t, "1:started", order[0])
	assert.Contains(t, []string{"1:finished", "1:aborted"}, order[1])
	assert.Equal(t, "2:started", order[2])
	assert.Equal(t, "2:finished", order[3])
}

func TestOpenPathRejectsInvalidPathAndKeepsTree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file"), 10)
	tree := newTestTree(t)
	scan(t, tree, dir)
	generation := tree.Generation()

	assert.ErrorIs(t, tree.OpenPath(filepath.Join(dir, "missing")), ErrInvalidPath)
	assert.ErrorIs(t, tree.OpenPath(filepath.Join(dir, "file")), ErrInvalidPath)
	assert.ErrorIs(t, tree.OpenPath(""), ErrInvalidPath)

	assert.Equal(t, dir, tree.URL())
	assert.Equal(t, generation, tree.Generation())
	tree.View(func(root *domain.Entry) {
		require.NotNil(t, root)
		assert.Equal(t, int64(1), root.Totals().Items)
	})
}

func TestOpenPathInvalidPathKeepsRunningScan(t *testing.T) {
	dir := t.TempDir()
	for index := 0; index < 3; index++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("d%d", index), "f"), 10)
	}
	tree := newTestTree(t)

	// The first progress event holds the scan until the invalid open returned.
	paused := make(chan struct{})
	release := make(chan struct{})
	var pauseOnce, releaseOnce sync.Once
	t.Cleanup(func() { releaseOnce.Do(func() { close(release) }) })
	unsubscribe := tree.Subscribe(func(event Event) {
		if event.Type != EventProgress {
			return
		}
		pauseOnce.Do(func() {
			close(paused)
			<-release
		})
	})
	defer unsubscribe()

	require.NoError(t, tree.OpenPath(dir))
	<-paused
	generation := tree.Generation()

	result := make(chan error, 1)
	go func() { result <- tree.OpenPath(filepath.Join(dir, "missing")) }()
	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrInvalidPath)
	case <-time.After(5 * time.Second):
		t.Fatal("OpenPath on an invalid path waited for the running scan")
	}
	assert.Equal(t, StateScanning, tree.State())

	releaseOnce.Do(func() { close(release) })
	tree.Wait()
	assert.Equal(t, StateFinished, tree.State())
	assert.Equal(t, dir, tree.URL())
	assert.Equal(t, generation, tree.Generation())
	tree.View(func(root *domain.Entry) {
		require.NotNil(t, root)
		assert.Equal(t, dir, root.Path())
		assert.False(t, root.Incomplete())
		requireConsistent(t, root)
	})
}

func TestScannerLogsRefusedKindChange(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	scanner := newFSScanner(&sync.RWMutex{}, func(Event) {}, TreeOptions{Logger: zap.New(core)})
	dir := domain.NewEntry("dir", domain.KindDir, domain.Metrics{})
	require.NoError(t, domain.AttachChild(dir, domain.NewEntry("child", domain.KindFile, domain.Metrics{Size: 1, Links: 1})))

	scanner.setKind(dir, domain.KindFile)

	assert.Equal(t, domain.KindDir, dir.Kind())
	entries := logs.FilterMessage("change entry kind").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "dir", entries[0].ContextMap()["path"])
	assert.Equal(t, "file", entries[0].ContextMap()["kind"])
}

func TestRefreshWithoutTree(t *testing.T) {
	tree := newTestTree(t)
	assert.ErrorIs(t, tree.Refresh(), ErrNoTree)
	assert.ErrorIs(t, tree.RefreshSubtree("/"), ErrNoTree)
	assert.ErrorIs(t, tree.WriteCache(context.Background(), filepath.Join(t.TempDir(), "c")), ErrNoTree)
}

func TestRefreshPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), 10)
	tree := newTestTree(t)
	scan(t, tree, dir)

	writeFile(t, filepath.Join(dir, "b"), 20)
	require.NoError(t, tree.Refresh())
	tree.Wait()

	assert.Equal(t, uint64(2), tree.Generation())
	tree.View(func(root *domain.Entry) {
		assert.Equal(t, int64(2), root.Totals().Items)
	})
}

func TestRefreshSubtree(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	writeFile(t, filepath.Join(sub, "a"), 10)
	writeFile(t, filepath.Join(dir, "top"), 1)
	tree := newTestTree(t)
	scan(t, tree, dir)
	generation := tree.Generation()

	writeFile(t, filepath.Join(sub, "b"), 30)
	require.NoError(t, tree.RefreshSubtree(sub))
	tree.Wait()

	assert.Greater(t, tree.Generation(), generation)
	tree.View(func(root *domain.Entry) {
		fresh := root.Find("sub")
		require.NotNil(t, fresh)
		assert.Same(t, fresh, root.Children()[len(root.Children())-1])
		assert.Equal(t, domain.KindDir, fresh.Kind())
		assert.Equal(t, 2, fresh.ChildCount())
		assert.Equal(t, int64(4), root.Totals().Items)
		requireConsistent(t, root)
	})

	assert.ErrorIs(t, tree.RefreshSubtree(filepath.Join(dir, "top")), ErrNotDir)
	assert.ErrorIs(t, tree.RefreshSubtree(filepath.Join(dir, "nowhere")), ErrNotFound)
}

func TestRefreshSubtreePrunesVanishedDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	writeFile(t, filepath.Join(sub, "a"), 10)
	tree := newTestTree(t)
	scan(t, tree, dir)

	require.NoError(t, os.RemoveAll(sub))
	assert.ErrorIs(t, tree.RefreshSubtree(sub), ErrInvalidPath)
	tree.View(func(root *domain.Entry) {
		assert.Nil(t, root.Find("sub"))
		assert.Equal(t, int64(0), root.Totals().Items)
		requireConsistent(t, root)
	})
}

func TestWriteAndReadCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), 100)
	writeFile(t, filepath.Join(dir, "sub", "b"), 0)
	writeFile(t, filepath.Join(dir, ".snapshot", "x"), 1)
	tree := newTestTree(t)
	scan(t, tree, dir)

	file := filepath.Join(t.TempDir(), "tree.cache")
	require.NoError(t, tree.WriteCache(context.Background(), file))
	assert.False(t, tree.IsModified())
	assert.Equal(t, file, tree.CacheOrigin())

	var before []entrySnapshot
	tree.View(func(root *domain.Entry) { before = snapshotTree(root) })

	loaded := newTestTree(t)
	recorder := &eventRecorder{}
	loaded.Subscribe(recorder.record)
	require.NoError(t, loaded.ReadCache(context.Background(), file))
	assert.Equal(t, dir, loaded.URL())
	assert.Equal(t, file, loaded.CacheOrigin())
	assert.False(t, loaded.IsModified())
	assert.Equal(t, uint64(1), loaded.Generation())
	loaded.View(func(root *domain.Entry) {
		assert.Equal(t, before, snapshotTree(root))
	})

	events := recorder.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, EventTreeReplaced, events[0].Type)
}

func TestTruncatedCacheKeepsOldTree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), 100)
	tree := newTestTree(t)
	scan(t, tree, dir)

	file := filepath.Join(t.TempDir(), "tree.cache")
	require.NoError(t, tree.WriteCache(context.Background(), file))
	content, err := os.ReadFile(file)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, content[:len(content)-len(cacheFooter)-1], 0o644))

	other := t.TempDir()
	writeFile(t, filepath.Join(other, "x"), 1)
	writeFile(t, filepath.Join(other, "y"), 1)
	scan(t, tree, other)
	generation := tree.Generation()

	err = tree.ReadCache(context.Background(), file)
	var ioError *CacheIOError
	require.ErrorAs(t, err, &ioError)
	assert.ErrorIs(t, err, ErrTruncated)

	assert.Equal(t, other, tree.URL())
	assert.Equal(t, generation, tree.Generation())
	tree.View(func(root *domain.Entry) {
		assert.Equal(t, int64(2), root.Totals().Items)
	})
}
