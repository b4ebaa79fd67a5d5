// Package integrity lets a client verify a PIR response against a published
// digest of the underlying chunk, without revealing which module it asked
// for to a third party holding the digest list.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"

	"pirserve/internal/apierr"
	"pirserve/internal/chunkcache"
)

// Hash returns the hex-encoded SHA-256 digest of the chunk at chunkIdx for
// moduleID, as loaded in snapshot. It returns apierr.ErrNotFound if the
// module or chunk index does not exist in snapshot — the same miss the PIR
// engine treats as an all-zero row, surfaced here as an explicit error
// because a digest lookup has no meaningful zero-value answer.
func Hash(snapshot *chunkcache.Snapshot, moduleID int64, chunkIdx int) (string, error) {
	data, ok := snapshot.Chunk(moduleID, chunkIdx)
	if !ok {
		return "", apierr.ErrNotFound
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
