package determinism_test

import (
	"math"
	"testing"

	"github.com/reviewpipe/reviewpipe/internal/determinism"
	"github.com/stretchr/testify/assert"
)

func TestGenerateSeed(t *testing.T) {
	t.Run("generates consistent seed for same fingerprint", func(t *testing.T) {
		seed1 := determinism.GenerateSeed("github:owner/repo:42:abcd1234")
		seed2 := determinism.GenerateSeed("github:owner/repo:42:abcd1234")

		assert.Equal(t, seed1, seed2, "seed should be deterministic for same fingerprint")
	})

	t.Run("generates different seeds for different fingerprints", func(t *testing.T) {
		seed1 := determinism.GenerateSeed("github:owner/repo:42:abcd1234")
		seed2 := determinism.GenerateSeed("github:owner/repo:43:abcd1234")

		assert.NotEqual(t, seed1, seed2, "different fingerprints should produce different seeds")
	})

	t.Run("handles empty string", func(t *testing.T) {
		seed1 := determinism.GenerateSeed("")
		seed2 := determinism.GenerateSeed("")

		assert.Equal(t, seed1, seed2, "empty fingerprint should still produce a deterministic seed")
	})

	t.Run("generates non-zero seed", func(t *testing.T) {
		seed := determinism.GenerateSeed("github:owner/repo:42:abcd1234")

		assert.NotEqual(t, uint64(0), seed, "seed should not be zero")
	})

	t.Run("seed fits in int64 range for LLM API compatibility", func(t *testing.T) {
		fingerprints := []string{
			"github:owner/repo:1:aaa",
			"gitlab:group/project:2:bbb",
			"",
			"a-very-long-fingerprint-string-that-might-produce-a-large-hash-value",
		}

		for _, fp := range fingerprints {
			seed := determinism.GenerateSeed(fp)

			assert.LessOrEqual(t, seed, uint64(math.MaxInt64),
				"seed must fit in int64 for OpenAI and other LLM APIs (fingerprint=%s)", fp)
		}
	})
}
