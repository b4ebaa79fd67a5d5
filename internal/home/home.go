// Package home manages the pirserve data directory layout.
//
// The data directory owns all persistent state: the catalog database, the
// chunk tree, and retained upload provenance files.
//
// Layout:
//
//	<root>/
//	  catalog.db          (SQLite catalog store, WAL-enabled)
//	  chunks/<module_id>/<chunk_index>.bin
//	  uploads/<sanitized_name>
package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Dir represents a pirserve data directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir using the platform-appropriate default location:
//   - Linux:   ~/.config/pirserve/data
//   - macOS:   ~/Library/Application Support/pirserve/data
//   - Windows: %APPDATA%/pirserve/data
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "pirserve", "data")}, nil
}

// Root returns the data directory path.
func (d Dir) Root() string {
	return d.root
}

// CatalogPath returns the path to the catalog database file.
func (d Dir) CatalogPath() string {
	return filepath.Join(d.root, "catalog.db")
}

// ChunksDir returns the root of the chunk tree.
func (d Dir) ChunksDir() string {
	return filepath.Join(d.root, "chunks")
}

// ModuleDir returns the chunk directory for a specific module id.
func (d Dir) ModuleDir(moduleID int64) string {
	return filepath.Join(d.ChunksDir(), strconv.FormatInt(moduleID, 10))
}

// ChunkPath returns the path of a specific chunk file.
func (d Dir) ChunkPath(moduleID int64, chunkIndex int) string {
	return filepath.Join(d.ModuleDir(moduleID), strconv.Itoa(chunkIndex)+".bin")
}

// UploadsDir returns the directory where original uploads are retained as
// provenance artifacts. The server never reads from this directory after
// ingest; it exists purely for operator inspection.
func (d Dir) UploadsDir() string {
	return filepath.Join(d.root, "uploads")
}

// EnsureExists creates the data directory, chunk tree, and uploads
// directory (and parents) if they don't exist.
func (d Dir) EnsureExists() error {
	for _, dir := range []string{d.root, d.ChunksDir(), d.UploadsDir()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
