// Package ingest turns an uploaded module file into catalog metadata, a
// compressed chunk tree on disk, and a retained provenance copy, then
// triggers a chunk cache reload so the new module becomes queryable.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"pirserve/internal/catalog"
	"pirserve/internal/chunkcache"
	"pirserve/internal/home"
	"pirserve/internal/logging"
	"pirserve/internal/pirconfig"
)

// Result describes a completed ingest.
type Result struct {
	ModuleID       int64
	ChunkCount     int
	CompressedSize int64
}

// Ingester writes uploaded content into the data directory and catalog.
type Ingester struct {
	store  catalog.Store
	dir    home.Dir
	cache  *chunkcache.Cache
	logger *slog.Logger
}

// New constructs an Ingester.
func New(store catalog.Store, dir home.Dir, cache *chunkcache.Cache, logger *slog.Logger) *Ingester {
	return &Ingester{
		store:  store,
		dir:    dir,
		cache:  cache,
		logger: logging.Default(logger).With("component", "ingest"),
	}
}

// Process compresses source with the protocol's fixed compressor, inserts
// the module row, writes its chunk files, retains the original upload as
// provenance, and reloads the chunk cache.
//
// The catalog row is inserted before any chunk file is written: the
// store-assigned module id names the chunk directory, and a module whose
// catalog row exists but whose chunks are still being written is simply
// invisible to the chunk cache (reload intersects catalog and disk), which
// is a safer crash state than a chunk directory with no owning row.
func (ig *Ingester) Process(ctx context.Context, source []byte, title, topic string, tier int, originalFilename string) (Result, error) {
	compressed, err := compress(source)
	if err != nil {
		return Result{}, fmt.Errorf("compress module: %w", err)
	}

	chunkCount := ceilDiv(len(compressed), pirconfig.ChunkSize)
	if chunkCount == 0 {
		chunkCount = 1 // an empty module still occupies one (empty) chunk slot.
	}

	id, err := ig.store.AddModule(ctx, title, topic, tier, chunkCount, int64(len(compressed)), sanitizeFilename(originalFilename))
	if err != nil {
		return Result{}, fmt.Errorf("add module: %w", err)
	}

	if err := ig.writeChunks(id, compressed, chunkCount); err != nil {
		return Result{}, fmt.Errorf("write chunks for module %d: %w", id, err)
	}

	if err := ig.retainUpload(source, originalFilename); err != nil {
		ig.logger.Warn("failed to retain upload provenance", "module_id", id, "error", err)
	}

	if err := ig.cache.Reload(ctx); err != nil {
		return Result{}, fmt.Errorf("reload chunk cache: %w", err)
	}

	ig.logger.Info("ingested module", "module_id", id, "chunk_count", chunkCount, "compressed_size", len(compressed))
	return Result{ModuleID: id, ChunkCount: chunkCount, CompressedSize: int64(len(compressed))}, nil
}

// writeChunks fills a staging directory whose name does not parse as a
// module id (so Reload skips it) and renames it into place once every chunk
// is written.
func (ig *Ingester) writeChunks(moduleID int64, compressed []byte, chunkCount int) error {
	staging := ig.dir.ModuleDir(moduleID) + ".partial"
	if err := os.MkdirAll(staging, 0o750); err != nil {
		return fmt.Errorf("create module directory: %w", err)
	}
	for i := 0; i < chunkCount; i++ {
		start := i * pirconfig.ChunkSize
		end := start + pirconfig.ChunkSize
		if end > len(compressed) {
			end = len(compressed)
		}
		if err := os.WriteFile(filepath.Join(staging, fmt.Sprintf("%d.bin", i)), compressed[start:end], 0o640); err != nil {
			return fmt.Errorf("write chunk %d: %w", i, err)
		}
	}
	if err := os.Rename(staging, ig.dir.ModuleDir(moduleID)); err != nil {
		return fmt.Errorf("publish module directory: %w", err)
	}
	return nil
}

func (ig *Ingester) retainUpload(source []byte, originalFilename string) error {
	dest := filepath.Join(ig.dir.UploadsDir(), sanitizeFilename(originalFilename))
	return os.WriteFile(dest, source, 0o640)
}

func compress(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(source); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ceilDiv(a, b int) int {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// sanitizeFilename strips any directory components and rejects an empty or
// traversal-only result, guarding against a client-supplied name escaping
// the uploads directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(filepath.Clean(name))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "upload.bin"
	}
	return strings.TrimPrefix(name, string(filepath.Separator))
}
