package content

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

const cacheKeyPrefix = "speakeasy:content:"

// Cache stores rendered lesson content between requests. *cache.Cache from
// internal/platform/cache satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// cacheKey fingerprints a prompt for one language and learner level.
func cacheKey(prompt, targetLanguage, userLevel string) string {
	sum := blake2b.Sum256([]byte(prompt + "\x00" + targetLanguage + "\x00" + userLevel))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
