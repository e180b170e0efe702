package tool

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

func GenerateRandomUUID() string {
	return uuid.New().String()
}

// StreamCacheKey hashes a stream URL to a short stable key. Keeps cache keys
// compact and keeps raw URLs out of filenames and incidental log lines.
func StreamCacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:16]
}
