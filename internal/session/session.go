// Package session owns the on-disk layout of a capture run: the timestamped
// session directory, per-URL page directories, tile naming, and the JSON
// metadata files consumed by downstream tooling. It is a write-only sink;
// nothing here reads persisted state back during a run.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

const timestampLayout = "2006-01-02_15-04-05"

var (
	schemeRe = regexp.MustCompile(`^https?://`)
	unsafeRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

// SafeDirName converts a URL into a filesystem-safe directory name: scheme
// stripped, unsafe character runs collapsed to "_", capped at 120 characters.
func SafeDirName(url string) string {
	name := schemeRe.ReplaceAllString(url, "")
	name = unsafeRe.ReplaceAllString(name, "_")
	if len(name) > 120 {
		name = name[:120]
	}
	return name
}

// TileName returns the canonical tile filename for a 1-based index.
// Downstream tooling orders tiles by name, so the numbering is zero-padded
// and must stay sequential and gap-free.
func TileName(index int) string {
	return fmt.Sprintf("tile_%04d.png", index)
}

// tileRecord is one entry in the session-wide tile list.
type tileRecord struct {
	URL    string `json:"url"`
	Tile   string `json:"tile"`
	Offset int    `json:"y"`
	Height int    `json:"height"`
}

// Session is one invocation's output root: out/<timestamp>/.
type Session struct {
	Dir       string
	RunID     string
	StartedAt time.Time

	mu    sync.Mutex
	urls  []string
	tiles []tileRecord
}

// New creates the session directory under outRoot.
func New(outRoot string, urls []string) (*Session, error) {
	dir := filepath.Join(outRoot, time.Now().Format(timestampLayout))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create session directory %s: %w", dir, err)
	}
	return &Session{
		Dir:       dir,
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		urls:      urls,
	}, nil
}

func (s *Session) recordTile(rec tileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles = append(s.tiles, rec)
}
