package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
}

func names(t *testing.T, w *Walker, dir string) []string {
	t.Helper()
	files, err := w.Walk(dir)
	require.NoError(t, err)
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
		assert.Equal(t, filepath.Join(dir, f.Name), f.Path)
	}
	return out
}

func TestWalker_DefaultsSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.txt", "a.PDF", "c.csv", "image.png", "README", "z.txt"} {
		touch(t, dir, n)
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0755))
	touch(t, filepath.Join(dir, "nested.txt"), "inner.txt")

	assert.Equal(t, []string{"a.PDF", "b.txt", "c.csv", "z.txt"}, names(t, NewWalker(nil, nil), dir))
}

func TestWalker_Excludes(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"keep.txt", "~$draft.txt", "old.bak.txt"} {
		touch(t, dir, n)
	}
	w := NewWalker([]string{"*.txt"}, []string{"~$*", "*.bak.*"})
	assert.Equal(t, []string{"keep.txt"}, names(t, w, dir))
}

func TestWalker_BraceInclude(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.md", "b.txt", "c.csv"} {
		touch(t, dir, n)
	}
	w := NewWalker([]string{"*.{md,txt}"}, nil)
	assert.Equal(t, []string{"a.md", "b.txt"}, names(t, w, dir))
}

func TestWalker_MissingDir(t *testing.T) {
	_, err := NewWalker(nil, nil).Walk(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestWalker_FollowsSymlinkedFiles(t *testing.T) {
	dir := t.TempDir()
	elsewhere := t.TempDir()
	touch(t, elsewhere, "real.txt")
	require.NoError(t, os.Mkdir(filepath.Join(elsewhere, "folder.txt"), 0755))

	require.NoError(t, os.Symlink(filepath.Join(elsewhere, "real.txt"), filepath.Join(dir, "linked.txt")))
	require.NoError(t, os.Symlink(filepath.Join(elsewhere, "folder.txt"), filepath.Join(dir, "dirlink.txt")))
	require.NoError(t, os.Symlink(filepath.Join(elsewhere, "gone.txt"), filepath.Join(dir, "dangling.txt")))
	touch(t, dir, "plain.txt")

	files, err := NewWalker(nil, nil).Walk(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "linked.txt", files[0].Name)
	assert.Equal(t, int64(1), files[0].Size)
	assert.Equal(t, "plain.txt", files[1].Name)
}
