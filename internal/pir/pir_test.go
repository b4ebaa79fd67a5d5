package pir

import (
	"bytes"
	"testing"

	"pirserve/internal/chunkcache"
	"pirserve/internal/pirconfig"
)

func zeroPad(data []byte) []byte {
	out := make([]byte, pirconfig.ChunkSize)
	copy(out, data)
	return out
}

func TestComputeUnitVectorRecoversChunk(t *testing.T) {
	chunkA := bytes.Repeat([]byte{0x11}, pirconfig.ChunkSize)
	chunkB := []byte("short tail")

	snap := chunkcache.NewSnapshot(map[int64]map[int][]byte{
		1: {0: chunkA},
		2: {0: chunkB},
	})
	engine := New(snap)

	// Select module 2 (column index 1) via a unit vector distributed across
	// the K vectors: v1 + v2 + v3 == e_1 (mod 256).
	vectors := [][]byte{
		{0, 1},
		{0, 0},
		{0, 0},
	}
	responses, err := engine.Compute(vectors, 0)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(responses) != pirconfig.K {
		t.Fatalf("expected %d responses, got %d", pirconfig.K, len(responses))
	}

	sum := make([]byte, pirconfig.ChunkSize)
	for _, r := range responses {
		if len(r) != pirconfig.ChunkSize {
			t.Fatalf("expected response length %d, got %d", pirconfig.ChunkSize, len(r))
		}
		for i := range sum {
			sum[i] += r[i]
		}
	}
	want := zeroPad(chunkB)
	if !bytes.Equal(sum, want) {
		t.Errorf("sum of responses does not match zero-padded chunk B")
	}
}

func TestComputeShortChunkNeutrality(t *testing.T) {
	// Module 1 has no chunk at index 5; selecting it must contribute zero
	// regardless of the vector value used.
	snap := chunkcache.NewSnapshot(map[int64]map[int][]byte{
		1: {0: []byte("only chunk 0")},
	})
	engine := New(snap)

	vectors := [][]byte{{200}, {33}, {99}}
	responses, err := engine.Compute(vectors, 5)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i, r := range responses {
		for _, b := range r {
			if b != 0 {
				t.Fatalf("response %d: expected all-zero bytes for missing chunk, found %d", i, b)
			}
		}
	}
}

func TestComputeAllZeroVectorsYieldAllZeroResponses(t *testing.T) {
	snap := chunkcache.NewSnapshot(map[int64]map[int][]byte{
		1: {0: bytes.Repeat([]byte{1}, pirconfig.ChunkSize)},
		2: {0: bytes.Repeat([]byte{2}, pirconfig.ChunkSize)},
		3: {0: bytes.Repeat([]byte{3}, pirconfig.ChunkSize)},
	})
	engine := New(snap)

	vectors := [][]byte{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}
	responses, err := engine.Compute(vectors, 0)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for _, r := range responses {
		if len(r) != pirconfig.ChunkSize {
			t.Fatalf("expected length %d, got %d", pirconfig.ChunkSize, len(r))
		}
		for _, b := range r {
			if b != 0 {
				t.Fatal("expected all-zero response")
			}
		}
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	snap := chunkcache.NewSnapshot(map[int64]map[int][]byte{
		1: {0: bytes.Repeat([]byte{77}, pirconfig.ChunkSize)},
	})
	engine := New(snap)
	vectors := [][]byte{{5}, {9}, {200}}

	r1, err := engine.Compute(vectors, 0)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	r2, err := engine.Compute(vectors, 0)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := range r1 {
		if !bytes.Equal(r1[i], r2[i]) {
			t.Errorf("response %d differs between calls", i)
		}
	}
}

func TestComputeRejectsEmptyCache(t *testing.T) {
	snap := chunkcache.NewSnapshot(map[int64]map[int][]byte{})
	engine := New(snap)
	_, err := engine.Compute([][]byte{{}, {}, {}}, 0)
	if err != ErrEmptyCache {
		t.Errorf("expected ErrEmptyCache, got %v", err)
	}
}

func TestComputeRejectsWrongVectorCount(t *testing.T) {
	snap := chunkcache.NewSnapshot(map[int64]map[int][]byte{1: {0: []byte("x")}})
	engine := New(snap)
	_, err := engine.Compute([][]byte{{1}, {0}}, 0)
	if err == nil {
		t.Fatal("expected error for wrong vector count")
	}
}

func TestComputeRejectsWrongVectorLength(t *testing.T) {
	snap := chunkcache.NewSnapshot(map[int64]map[int][]byte{
		1: {0: []byte("a")},
		2: {0: []byte("b")},
	})
	engine := New(snap)
	_, err := engine.Compute([][]byte{{1}, {0}, {0}}, 0)
	if err == nil {
		t.Fatal("expected error for vector length mismatch (n_modules=2, got length 1)")
	}
}
