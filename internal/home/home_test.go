package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	d := New("/tmp/pirserve-test")
	if d.Root() != "/tmp/pirserve-test" {
		t.Errorf("expected root /tmp/pirserve-test, got %s", d.Root())
	}
}

func TestDefault(t *testing.T) {
	d, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if d.Root() == "" {
		t.Fatal("expected non-empty root")
	}
	if filepath.Base(d.Root()) != "data" {
		t.Errorf("expected root to end with 'data', got %s", d.Root())
	}
}

func TestCatalogPath(t *testing.T) {
	d := New("/data")
	if got := d.CatalogPath(); got != "/data/catalog.db" {
		t.Errorf("got %s", got)
	}
}

func TestModuleAndChunkPaths(t *testing.T) {
	d := New("/data")
	if got := d.ModuleDir(7); got != "/data/chunks/7" {
		t.Errorf("got %s", got)
	}
	if got := d.ChunkPath(7, 3); got != "/data/chunks/7/3.bin" {
		t.Errorf("got %s", got)
	}
}

func TestUploadsDir(t *testing.T) {
	d := New("/data")
	if got := d.UploadsDir(); got != "/data/uploads" {
		t.Errorf("got %s", got)
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "data")
	d := New(root)
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists: %v", err)
	}
	for _, dir := range []string{root, d.ChunksDir(), d.UploadsDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("Stat(%s): %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s: expected directory", dir)
		}
	}

	// Calling again should be idempotent.
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists (idempotent): %v", err)
	}
}
