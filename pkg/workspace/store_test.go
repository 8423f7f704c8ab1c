package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crxforge/crxforge/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), []string{".git/**", "*.log"})
	require.NoError(t, err)
	return store
}

func TestInitialize_SeedsTemplateIcons(t *testing.T) {
	store := newTestStore(t)

	h, err := store.Initialize("session-1")
	require.NoError(t, err)

	paths, err := h.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"icon128.png", "icon16.png", "icon48.png"}, paths)
}

func TestInitialize_IsIdempotent(t *testing.T) {
	store := newTestStore(t)

	h1, err := store.Initialize("session-1")
	require.NoError(t, err)

	custom := filepath.Join(h1.Dir(), "icon16.png")
	require.NoError(t, os.WriteFile(custom, []byte("custom"), 0o644))

	h2, err := store.Initialize("session-1")
	require.NoError(t, err)
	assert.Same(t, h1, h2)

	data, err := os.ReadFile(custom)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(data), "re-initialize must not overwrite existing icons")
}

func TestWrite_ReplaceDiscardsPreviousFiles(t *testing.T) {
	store := newTestStore(t)
	h, err := store.Initialize("session-1")
	require.NoError(t, err)

	require.NoError(t, h.Write(types.FileMap{
		"manifest.json": `{"name":"old"}`,
		"old.js":        "console.log('old')",
	}, ModeReplace))

	require.NoError(t, h.Write(types.FileMap{
		"manifest.json": `{"name":"new"}`,
		"popup.html":    "<html></html>",
	}, ModeReplace))

	files, err := h.Read()
	require.NoError(t, err)
	assert.NotContains(t, files, "old.js")
	assert.Equal(t, `{"name":"new"}`, files["manifest.json"])
	assert.Equal(t, "<html></html>", files["popup.html"])

	// Seeded icons survive a replace.
	assert.Contains(t, files, "icon16.png")
	assert.Contains(t, files, "icon48.png")
	assert.Contains(t, files, "icon128.png")
}

func TestWrite_MergeLeavesOtherFilesUntouched(t *testing.T) {
	store := newTestStore(t)
	h, err := store.Initialize("session-1")
	require.NoError(t, err)

	require.NoError(t, h.Write(types.FileMap{
		"manifest.json": `{"name":"v1"}`,
		"popup.html":    "<html>v1</html>",
		"content.js":    "// v1",
	}, ModeReplace))

	require.NoError(t, h.Write(types.FileMap{
		"popup.html": "<html>v2</html>",
		"extra.js":   "// new",
	}, ModeMerge))

	files, err := h.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"name":"v1"}`, files["manifest.json"])
	assert.Equal(t, "// v1", files["content.js"])
	assert.Equal(t, "<html>v2</html>", files["popup.html"])
	assert.Equal(t, "// new", files["extra.js"])
}

func TestWrite_RejectsEscapingPaths(t *testing.T) {
	store := newTestStore(t)
	h, err := store.Initialize("session-1")
	require.NoError(t, err)

	assert.Error(t, h.Write(types.FileMap{"../outside.js": "x"}, ModeMerge))
	assert.Error(t, h.Write(types.FileMap{"/etc/passwd": "x"}, ModeMerge))
	assert.Error(t, h.Write(types.FileMap{"": "x"}, ModeMerge))
}

func TestWrite_NestedPathsAndOrdering(t *testing.T) {
	store := newTestStore(t)
	h, err := store.Initialize("session-1")
	require.NoError(t, err)

	require.NoError(t, h.Write(types.FileMap{
		"scripts/content.js": "// content",
		"manifest.json":      "{}",
		"scripts/bg.js":      "// bg",
	}, ModeReplace))

	paths, err := h.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"icon128.png", "icon16.png", "icon48.png",
		"manifest.json", "scripts/bg.js", "scripts/content.js",
	}, paths)
}

func TestRead_AppliesIgnorePatterns(t *testing.T) {
	store := newTestStore(t)
	h, err := store.Initialize("session-1")
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(h.Dir(), ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.Dir(), ".git", "HEAD"), []byte("ref"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(h.Dir(), "run.log"), []byte("noise"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(h.Dir(), "manifest.json"), []byte("{}"), 0o644))

	files, err := h.Read()
	require.NoError(t, err)
	assert.NotContains(t, files, ".git/HEAD")
	assert.NotContains(t, files, "run.log")
	assert.Contains(t, files, "manifest.json")
}

func TestStore_HandleRequiresInitialize(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Handle("never-created")
	assert.Error(t, err)
}

func TestStore_Discard(t *testing.T) {
	store := newTestStore(t)
	h, err := store.Initialize("session-1")
	require.NoError(t, err)
	dir := h.Dir()

	require.NoError(t, store.Discard("session-1"))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	_, err = store.Handle("session-1")
	assert.Error(t, err)
}

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID("0b6f3a2e"))
	assert.Error(t, ValidateSessionID(""))
	assert.Error(t, ValidateSessionID("../evil"))
	assert.Error(t, ValidateSessionID("a/b"))
}
