package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirstat/internal/config"
	"dirstat/internal/domain"
)

func browseTree(t *testing.T) *domain.Entry {
	t.Helper()
	root := domain.NewEntry("/data", domain.KindDir, domain.Metrics{Size: 1, ModTime: 1, Links: 2})
	attach := func(parent *domain.Entry, name string, kind domain.Kind, size, mtime int64) *domain.Entry {
		child := domain.NewEntry(name, kind, domain.Metrics{Size: size, ModTime: mtime, Links: 1})
		require.NoError(t, domain.AttachChild(parent, child))
		return child
	}
	photos := attach(root, "photos", domain.KindDir, 1, 5)
	attach(photos, "cat.jpg", domain.KindFile, 500, 50)
	attach(root, "notes.txt", domain.KindFile, 900, 10)
	attach(root, ".cache", domain.KindDir, 1, 1)
	attach(root, "archive.tar", domain.KindFile, 20, 99)
	return root
}

func names(visible []VisibleNode) []string {
	result := make([]string, len(visible))
	for index, node := range visible {
		result[index] = node.Entry.Name()
	}
	return result
}

func newTestState(source TreeSource) *State {
	return NewState(config.Config{SortMode: domain.SortBySize}, source)
}

func TestVisibleNodesSortAndHidden(t *testing.T) {
	root := browseTree(t)
	appState := newTestState(&fakeSource{root: root})
	appState.SetRoot(root)

	assert.Equal(t, []string{"/data", "photos", "notes.txt", "archive.tar"}, names(appState.VisibleNodes(root)))

	appState.ToggleShowHidden()
	assert.Equal(t, []string{"/data", "photos", ".cache", "notes.txt", "archive.tar"}, names(appState.VisibleNodes(root)))

	assert.Equal(t, domain.SortByName, appState.ToggleSortMode())
	assert.Equal(t, []string{"/data", ".cache", "photos", "archive.tar", "notes.txt"}, names(appState.VisibleNodes(root)))

	assert.Equal(t, domain.SortByMod, appState.ToggleSortMode())
	assert.Equal(t, []string{"/data", "photos", ".cache", "archive.tar", "notes.txt"}, names(appState.VisibleNodes(root)))
}

func TestExpandAndNavigate(t *testing.T) {
	root := browseTree(t)
	appState := newTestState(&fakeSource{root: root})
	appState.SetRoot(root)

	photos := root.Find("photos")
	assert.True(t, appState.ToggleExpanded(photos.Path()))
	visible := appState.VisibleNodes(root)
	assert.Equal(t, []string{"/data", "photos", "cat.jpg", "notes.txt", "archive.tar"}, names(visible))
	assert.Equal(t, 2, visible[2].Depth)

	appState.Cursor = 2
	assert.Equal(t, "cat.jpg", appState.CurrentNode(root).Name())

	require.True(t, appState.EnterDir(photos))
	assert.Equal(t, []string{"photos", "cat.jpg"}, names(appState.VisibleNodes(root)))
	assert.False(t, appState.EnterDir(photos.Find("cat.jpg")))
	require.True(t, appState.LeaveDir(root))
	assert.Equal(t, "/data", appState.CurrentPath())
	assert.False(t, appState.LeaveDir(root))

	appState.Cursor = 10
	appState.ClampCursor(3)
	assert.Equal(t, 2, appState.Cursor)
}

func TestFilters(t *testing.T) {
	root := browseTree(t)
	appState := newTestState(&fakeSource{root: root})
	appState.SetRoot(root)
	appState.ToggleExpanded(root.Find("photos").Path())

	appState.FilterExt = ".jpg"
	assert.Equal(t, []string{"/data", "photos", "cat.jpg"}, names(appState.VisibleNodes(root)))

	appState.ClearFilters()
	appState.MinSizeBytes = 600
	assert.Equal(t, []string{"/data", "notes.txt"}, names(appState.VisibleNodes(root)))

	appState.ClearFilters()
	appState.SearchQuery = "ARCH"
	assert.Equal(t, []string{"/data", "archive.tar"}, names(appState.VisibleNodes(root)))
}

func TestSetRootMovesToNewTree(t *testing.T) {
	root := browseTree(t)
	appState := newTestState(&fakeSource{root: root})
	appState.SetRoot(root)
	require.True(t, appState.EnterDir(root.Find("photos")))

	// Same tree reloaded: keep the current directory.
	appState.SetRoot(root)
	assert.Equal(t, root.Find("photos").Path(), appState.CurrentPath())

	other := domain.NewEntry("/elsewhere", domain.KindDir, domain.Metrics{Links: 2})
	appState.SetRoot(other)
	assert.Equal(t, "/elsewhere", appState.CurrentPath())
	assert.Equal(t, 0, appState.Cursor)
}
