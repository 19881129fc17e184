package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avasile/scrollsnap/internal/capture"
	"github.com/avasile/scrollsnap/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeDirName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com/a/b", "example.com_a_b"},
		{"http://example.com", "example.com"},
		{"https://docs.site.io/page?id=1&x=2", "docs.site.io_page_id_1_x_2"},
		{"example.com/path", "example.com_path"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeDirName(tt.in))
	}

	long := "https://example.com/" + strings.Repeat("a", 300)
	assert.Len(t, SafeDirName(long), 120)
}

func TestTileName(t *testing.T) {
	assert.Equal(t, "tile_0001.png", TileName(1))
	assert.Equal(t, "tile_0042.png", TileName(42))
	assert.Equal(t, "tile_1234.png", TileName(1234))
	// The padding widens past four digits rather than truncating.
	assert.Equal(t, "tile_10000.png", TileName(10000))
}

func TestPageWriter_StreamsTiles(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, []string{"https://example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, s.RunID)

	w, err := s.NewPageWriter("https://example.com")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		err := w.WriteTile(capture.Tile{Index: i, Offset: (i - 1) * 1000, SettledHeight: 3000, Data: []byte{byte(i)}})
		require.NoError(t, err)
	}

	paths := w.TilePaths()
	require.Len(t, paths, 3)
	// Each tile exists on disk the moment WriteTile returns.
	for i, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i + 1)}, data)
	}

	listed, err := ListTiles(filepath.Dir(paths[0]))
	require.NoError(t, err)
	assert.Equal(t, paths, listed)
}

func TestPageWriter_Metadata(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, []string{"https://example.com"})
	require.NoError(t, err)

	w, err := s.NewPageWriter("https://example.com")
	require.NoError(t, err)
	require.NoError(t, w.WriteTile(capture.Tile{Index: 1, Offset: 0, SettledHeight: 900, Data: []byte("x")}))

	err = w.WritePageMeta(PageMeta{
		Viewport:    geometry.Viewport{Width: 1280, Height: 1000, Scale: 1},
		Wait:        "networkidle",
		TotalHeight: 900,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.Dir, "example.com", "page_meta.json"))
	require.NoError(t, err)

	var meta PageMeta
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "https://example.com", meta.URL)
	assert.Equal(t, 900, meta.TotalHeight)
	assert.Len(t, meta.Tiles, 1)

	require.NoError(t, s.Finish())
	sessionData, err := os.ReadFile(filepath.Join(s.Dir, "meta.json"))
	require.NoError(t, err)
	assert.Contains(t, string(sessionData), s.RunID)
	assert.Contains(t, string(sessionData), "tile_0001.png")
}

func TestListTiles_RejectsGaps(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tile_0001.png"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tile_0003.png"), []byte("c"), 0644))

	_, err := ListTiles(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gap")
}

func TestListTiles_FiveDigitIndexes(t *testing.T) {
	// Past index 9999 the names gain a digit and lexicographic order no
	// longer matches capture order; the listing must still return every
	// tile in numeric order.
	dir := t.TempDir()
	const n = 10002
	for i := 1; i <= n; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, TileName(i)), nil, 0644))
	}

	paths, err := ListTiles(dir)
	require.NoError(t, err)
	require.Len(t, paths, n)
	assert.Equal(t, "tile_0001.png", filepath.Base(paths[0]))
	assert.Equal(t, "tile_9999.png", filepath.Base(paths[9998]))
	assert.Equal(t, "tile_10000.png", filepath.Base(paths[9999]))
	assert.Equal(t, "tile_10002.png", filepath.Base(paths[n-1]))
}

func TestListTiles_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tile_0001.png"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stitched.png"), []byte("s"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("n"), 0644))

	paths, err := ListTiles(dir)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "tile_0001.png", filepath.Base(paths[0]))
}
