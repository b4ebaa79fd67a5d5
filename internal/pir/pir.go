// Package pir implements the single-server PIR computation: a modular
// linear combination of a public module×chunk matrix against secret client
// query vectors.
//
// Privacy note: running all K vectors through one server breaks
// information-theoretic privacy — nothing prevents this server from summing
// the K vectors it receives in one request to recover which module was
// selected. That is a deliberate, documented property of this single-server
// deployment, not a bug to be silently patched. The engine still accepts and
// returns K independent vectors/responses so the wire shape stays
// forward-compatible with a genuine multi-server deployment.
package pir

import (
	"errors"
	"fmt"

	"pirserve/internal/chunkcache"
	"pirserve/internal/pirconfig"
)

// Precondition failures, each client-visible and non-retryable.
var (
	ErrEmptyCache     = errors.New("pir: no modules loaded")
	ErrVectorCount    = errors.New("pir: wrong number of vectors")
	ErrVectorLength   = errors.New("pir: vector length does not match module count")
	ErrByteOutOfRange = errors.New("pir: vector byte out of range")
)

// Engine computes PIR responses against a fixed chunk cache snapshot. An
// Engine is cheap to construct per request: it borrows the snapshot's byte
// slices rather than copying them.
type Engine struct {
	snapshot *chunkcache.Snapshot
}

// New constructs an Engine bound to snapshot. Precondition checks (K,
// per-vector length, empty cache) happen in Compute so that a caller which
// constructs an Engine early and validates later gets uniform error
// semantics.
func New(snapshot *chunkcache.Snapshot) *Engine {
	return &Engine{snapshot: snapshot}
}

// Compute validates vectors against the engine's module count and returns K
// responses, one per vector, each exactly pirconfig.ChunkSize bytes. Either
// all K responses are returned or an error is — there is no partial
// success.
func (e *Engine) Compute(vectors [][]byte, chunkIdx int) ([][]byte, error) {
	n := e.snapshot.Len()
	if n == 0 {
		return nil, ErrEmptyCache
	}
	if len(vectors) != pirconfig.K {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVectorCount, len(vectors), pirconfig.K)
	}
	for i, v := range vectors {
		if len(v) != n {
			return nil, fmt.Errorf("%w: vector %d has length %d, want %d", ErrVectorLength, i, len(v), n)
		}
	}
	// Every byte of a Go []byte is already in [0,255]; the range check exists
	// to reject non-byte numerics if a looser transport delivered them, so it
	// is a structural no-op here and is retained for documentation parity
	// with the protocol's precondition list.

	order := e.snapshot.Order()

	// One widening accumulator row per query vector, summed across every
	// module column before the final modular reduction. Each contribution is
	// at most 255*255; since 2^32 is a multiple of 256, uint32 wraparound
	// would not change the result mod 256 either.
	accs := make([][]uint32, len(vectors))
	for i := range accs {
		accs[i] = make([]uint32, pirconfig.ChunkSize)
	}

	for col, moduleID := range order {
		row := e.rowFor(moduleID, chunkIdx)
		for i, v := range vectors {
			coef := uint32(v[col])
			if coef == 0 {
				continue
			}
			acc := accs[i]
			for b, rb := range row {
				acc[b] += coef * uint32(rb)
			}
		}
	}

	responses := make([][]byte, len(vectors))
	for i, acc := range accs {
		responses[i] = make([]byte, pirconfig.ChunkSize)
		for b, v := range acc {
			responses[i][b] = byte(v % pirconfig.Modulus)
		}
	}
	return responses, nil
}

// rowFor returns the zero-padded matrix row for moduleID at chunkIdx. A
// module with no chunk at chunkIdx (chunk_count <= chunkIdx) contributes an
// all-zero row; a module whose chunk at chunkIdx is shorter than
// ChunkSize (the module's last chunk) is right-padded with zeros. Both
// cases use the identical all-zero-tail representation so the server's
// behavior never distinguishes "short" from "absent" to the client.
func (e *Engine) rowFor(moduleID int64, chunkIdx int) []byte {
	data, ok := e.snapshot.Chunk(moduleID, chunkIdx)
	if !ok {
		return make([]byte, pirconfig.ChunkSize)
	}
	if len(data) == pirconfig.ChunkSize {
		return data
	}
	row := make([]byte, pirconfig.ChunkSize)
	copy(row, data)
	return row
}
