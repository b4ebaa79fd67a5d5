package ingest

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/klauspost/compress/zstd"

	"pirserve/internal/catalog/sqlite"
	"pirserve/internal/chunkcache"
	"pirserve/internal/home"
	"pirserve/internal/pirconfig"
)

func newTestFixture(t *testing.T) (*Ingester, home.Dir) {
	t.Helper()
	root := t.TempDir()
	dir := home.New(root)
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	store, err := sqlite.NewStore(dir.CatalogPath())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cache := chunkcache.New(store, dir, nil)
	return New(store, dir, cache, nil), dir
}

func decompress(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer r.Close()
	out, err := r.DecodeAll(data, nil)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	return out
}

func TestProcessWritesChunksAndReloadsCache(t *testing.T) {
	ig, dir := newTestFixture(t)
	ctx := context.Background()

	source := bytes.Repeat([]byte("lesson content "), 1000)
	result, err := ig.Process(ctx, source, "Intro", "topic-a", 1, "lesson1.txt")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.ModuleID == 0 {
		t.Fatal("expected nonzero module id")
	}
	if result.ChunkCount == 0 {
		t.Fatal("expected nonzero chunk count")
	}

	var reassembled []byte
	for i := 0; i < result.ChunkCount; i++ {
		data, err := os.ReadFile(dir.ChunkPath(result.ModuleID, i))
		if err != nil {
			t.Fatalf("ReadFile chunk %d: %v", i, err)
		}
		if i < result.ChunkCount-1 && len(data) != pirconfig.ChunkSize {
			t.Errorf("chunk %d: expected full chunk size, got %d", i, len(data))
		}
		reassembled = append(reassembled, data...)
	}

	decompressed := decompress(t, reassembled)
	if !bytes.Equal(decompressed, source) {
		t.Error("round-tripped compressed content does not match original source")
	}

	if ig.cache.Current().Len() != 1 {
		t.Errorf("expected chunk cache to be reloaded with 1 module, got %d", ig.cache.Current().Len())
	}
}

func TestProcessRetainsUploadProvenance(t *testing.T) {
	ig, dir := newTestFixture(t)
	ctx := context.Background()

	source := []byte("small module body")
	result, err := ig.Process(ctx, source, "Intro", "topic-a", 1, "../../etc/passwd")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	entries, err := os.ReadDir(dir.UploadsDir())
	if err != nil {
		t.Fatalf("ReadDir uploads: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 retained upload, got %d", len(entries))
	}
	name := entries[0].Name()
	if bytes.Contains([]byte(name), []byte("..")) || bytes.Contains([]byte(name), []byte("/")) {
		t.Errorf("retained upload name was not sanitized: %q", name)
	}
	_ = result
}

func TestProcessEmptySourceStillOccupiesOneChunk(t *testing.T) {
	ig, dir := newTestFixture(t)
	ctx := context.Background()

	result, err := ig.Process(ctx, []byte{}, "Empty", "topic-a", 1, "empty.txt")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.ChunkCount != 1 {
		t.Errorf("expected chunk count 1 for empty module, got %d", result.ChunkCount)
	}
	if _, err := os.Stat(dir.ChunkPath(result.ModuleID, 0)); err != nil {
		t.Errorf("expected chunk 0 to exist: %v", err)
	}
}

func TestSanitizeFilenameRejectsTraversal(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd": "passwd",
		"..":               "upload.bin",
		".":                "upload.bin",
		"":                 "upload.bin",
		"notes.txt":        "notes.txt",
		"a/b/c.bin":        "c.bin",
	}
	for input, want := range cases {
		if got := sanitizeFilename(input); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}
