package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key derives the cache key for a resource identity: the lowercase hex
// SHA-256 of its UTF-8 bytes. The key depends on the identity only, so a URL
// whose target changes keeps its key and refreshes overwrite in place.
func Key(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}
