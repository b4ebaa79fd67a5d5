// Package chunkcache holds the in-memory chunk index the PIR engine reads
// from. Disk is the source of truth; the cache is a read-mostly view
// rebuilt on Reload and published atomically so readers never observe a
// module in a half-loaded state.
//
// Coherence contract: the catalog store and the on-disk chunk tree are two
// independent sources of truth and can disagree after a crash (an orphan
// catalog row whose directory was never written, or an orphan directory
// whose catalog insert never landed). Reload closes this gap by
// intersecting — a module is loaded only if both the catalog lists it and
// its directory exists — and never repairs either side.
package chunkcache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"pirserve/internal/callgroup"
	"pirserve/internal/catalog"
	"pirserve/internal/home"
	"pirserve/internal/logging"
)

// Snapshot is an immutable, point-in-time view of the chunk cache. Once
// published, its contents never change — readers may hold a reference for
// as long as an in-flight computation needs it, even after a later Reload
// has published a newer Snapshot.
type Snapshot struct {
	order  []int64
	chunks map[int64]map[int][]byte
}

// Order returns the loaded module ids in canonical ascending order. This is
// the coordinate system PIR query vectors are indexed against.
func (s *Snapshot) Order() []int64 {
	return s.order
}

// Len returns the number of loaded modules.
func (s *Snapshot) Len() int {
	return len(s.order)
}

// Chunk returns the chunk at index idx for moduleID, and whether it exists.
func (s *Snapshot) Chunk(moduleID int64, idx int) ([]byte, bool) {
	m, ok := s.chunks[moduleID]
	if !ok {
		return nil, false
	}
	b, ok := m[idx]
	return b, ok
}

// emptySnapshot is returned before the first successful Reload.
func emptySnapshot() *Snapshot {
	return &Snapshot{chunks: map[int64]map[int][]byte{}}
}

// NewSnapshot builds a Snapshot directly from a module-id to
// chunk-index-to-bytes mapping, without touching disk or a catalog store.
// Used by tests and by any future in-memory deployment mode.
func NewSnapshot(chunks map[int64]map[int][]byte) *Snapshot {
	order := make([]int64, 0, len(chunks))
	for id := range chunks {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return &Snapshot{order: order, chunks: chunks}
}

// Cache holds the current Snapshot and knows how to rebuild it from the
// catalog store and the on-disk chunk tree.
type Cache struct {
	store  catalog.Store
	dir    home.Dir
	logger *slog.Logger

	snapshot atomic.Pointer[Snapshot]
	reloads  callgroup.Group[string]
}

// New creates a Cache. Call Reload at least once before Current is
// meaningful; an unreloaded Cache reports zero loaded modules.
func New(store catalog.Store, dir home.Dir, logger *slog.Logger) *Cache {
	c := &Cache{
		store:  store,
		dir:    dir,
		logger: logging.Default(logger).With("component", "chunkcache"),
	}
	c.snapshot.Store(emptySnapshot())
	return c
}

// Current returns the currently published Snapshot. Safe for concurrent use.
func (c *Cache) Current() *Snapshot {
	return c.snapshot.Load()
}

// Reload rebuilds the cache from scratch and atomically publishes the
// result. Concurrent callers (e.g. an ingest and a delete firing close
// together) are coalesced into a single rescan via callgroup, so the second
// caller's Reload observes the first caller's completed result rather than
// scanning twice.
func (c *Cache) Reload(ctx context.Context) error {
	return <-c.reloads.DoChan("reload", func() error {
		return c.reloadOnce(ctx)
	})
}

func (c *Cache) reloadOnce(ctx context.Context) error {
	modules, err := c.store.ListModules(ctx, catalog.ModuleFilter{})
	if err != nil {
		return fmt.Errorf("list modules: %w", err)
	}
	valid := make(map[int64]bool, len(modules))
	for _, m := range modules {
		valid[m.ID] = true
	}

	entries, err := os.ReadDir(c.dir.ChunksDir())
	if err != nil {
		if os.IsNotExist(err) {
			c.snapshot.Store(emptySnapshot())
			return nil
		}
		return fmt.Errorf("scan chunks directory: %w", err)
	}

	chunks := make(map[int64]map[int][]byte)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue // not a module directory; ignore.
		}
		if !valid[id] {
			continue // stale directory; skipped, never repaired.
		}

		moduleChunks, err := readModuleChunks(c.dir.ModuleDir(id))
		if err != nil {
			c.logger.Warn("skipping module with unreadable chunk directory", "module_id", id, "error", err)
			continue
		}
		chunks[id] = moduleChunks
	}

	order := make([]int64, 0, len(chunks))
	for id := range chunks {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	c.snapshot.Store(&Snapshot{order: order, chunks: chunks})
	c.logger.Info("reloaded chunk cache", "modules", len(order))
	return nil
}

func readModuleChunks(dir string) (map[int][]byte, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[int][]byte, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := f.Name()
		if !strings.HasSuffix(name, ".bin") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(name, ".bin"))
		if err != nil {
			continue // ignore non-integer filenames.
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read chunk %s: %w", name, err)
		}
		out[idx] = data
	}
	return out, nil
}
