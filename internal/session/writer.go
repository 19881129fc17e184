package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/avasile/scrollsnap/internal/capture"
	"github.com/avasile/scrollsnap/internal/geometry"
	"github.com/avasile/scrollsnap/internal/stitch"
)

// PageWriter persists one URL's tiles and metadata. It implements
// capture.Sink: each tile is written to disk as it is produced, so a crash
// mid-session keeps everything captured so far.
type PageWriter struct {
	session  *Session
	url      string
	dir      string
	tilesDir string
	paths    []string
}

// NewPageWriter creates <session>/<safe-url>/tiles/ and returns a writer
// bound to it.
func (s *Session) NewPageWriter(url string) (*PageWriter, error) {
	dir := filepath.Join(s.Dir, SafeDirName(url))
	tilesDir := filepath.Join(dir, "tiles")
	if err := os.MkdirAll(tilesDir, 0755); err != nil {
		return nil, fmt.Errorf("create tiles directory %s: %w", tilesDir, err)
	}
	return &PageWriter{session: s, url: url, dir: dir, tilesDir: tilesDir}, nil
}

// WriteTile persists the tile image under its canonical name.
func (w *PageWriter) WriteTile(t capture.Tile) error {
	path := filepath.Join(w.tilesDir, TileName(t.Index))
	if err := os.WriteFile(path, t.Data, 0644); err != nil {
		return fmt.Errorf("write tile %s: %w", path, err)
	}
	w.paths = append(w.paths, path)
	w.session.recordTile(tileRecord{
		URL:    w.url,
		Tile:   path,
		Offset: t.Offset,
		Height: t.SettledHeight,
	})
	return nil
}

// TilePaths returns the persisted tile paths in capture order.
func (w *PageWriter) TilePaths() []string { return w.paths }

// StitchedPath is where this page's composed image is written.
func (w *PageWriter) StitchedPath() string {
	return filepath.Join(w.dir, "stitched.png")
}

// PageMeta is the per-URL metadata record.
type PageMeta struct {
	URL            string            `json:"url"`
	Title          string            `json:"title,omitempty"`
	Description    string            `json:"description,omitempty"`
	Viewport       geometry.Viewport `json:"viewport"`
	Wait           string            `json:"wait"`
	TotalHeight    int               `json:"total_height"`
	Plan           any               `json:"plan,omitempty"`
	Stitch         *stitch.Spec      `json:"stitch,omitempty"`
	Tiles          []string          `json:"tiles"`
	HeightUnstable bool              `json:"height_unstable,omitempty"`
	Truncated      bool              `json:"truncated,omitempty"`
}

// WritePageMeta records the page metadata next to the tiles.
func (w *PageWriter) WritePageMeta(meta PageMeta) error {
	meta.URL = w.url
	meta.Tiles = w.paths
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal page metadata: %w", err)
	}
	path := filepath.Join(w.dir, "page_meta.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write page metadata %s: %w", path, err)
	}
	return nil
}

// sessionMeta is the session-wide metadata record.
type sessionMeta struct {
	RunID      string       `json:"run_id"`
	URLs       []string     `json:"urls"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Tiles      []tileRecord `json:"tiles"`
}

// Finish writes the session-wide meta.json.
func (s *Session) Finish() error {
	s.mu.Lock()
	meta := sessionMeta{
		RunID:      s.RunID,
		URLs:       s.urls,
		StartedAt:  s.StartedAt,
		FinishedAt: time.Now(),
		Tiles:      s.tiles,
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session metadata: %w", err)
	}
	path := filepath.Join(s.Dir, "meta.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write session metadata %s: %w", path, err)
	}
	return nil
}

var tileNameRe = regexp.MustCompile(`^tile_(\d{4,})\.png$`)

// ListTiles returns the tile files in a directory, ordered by index, and
// verifies the numbering starts at 1 with no gaps. Names are ordered by the
// numeric index, not lexicographically: past index 9999 the zero padding
// widens and string order no longer matches capture order.
func ListTiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read tiles directory %s: %w", dir, err)
	}
	type tileFile struct {
		index int
		name  string
	}
	var files []tileFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := tileNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, tileFile{index: index, name: e.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })

	paths := make([]string, 0, len(files))
	for i, f := range files {
		if f.index != i+1 {
			return nil, fmt.Errorf("tile sequence has a gap: expected %s, found %s", TileName(i+1), f.name)
		}
		paths = append(paths, filepath.Join(dir, f.name))
	}
	return paths, nil
}
