package determinism

import (
	"crypto/sha256"
	"encoding/binary"
)

// GenerateSeed creates a deterministic uint64 seed from a review request's
// fingerprint. The seed is derived from a SHA-256 hash of the fingerprint,
// ensuring reproducibility across retries of the same change request.
// The returned value is guaranteed to be <= math.MaxInt64 (9223372036854775807)
// to ensure compatibility with LLM APIs that use signed int64 for seeds.
func GenerateSeed(fingerprint string) uint64 {
	hash := sha256.Sum256([]byte(fingerprint))

	// Convert the first 8 bytes of the hash to uint64
	seed := binary.BigEndian.Uint64(hash[:8])

	// Mask off the high bit to ensure the value fits in int64
	// This keeps the seed in range [0, 9223372036854775807] (math.MaxInt64)
	seed = seed & 0x7FFFFFFFFFFFFFFF

	return seed
}
