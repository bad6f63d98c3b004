package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// UpdateKey hashes the identifying parts of a Telegram update (callback ID,
// or chat and message IDs) into a fixed-length redis key.
func UpdateKey(parts ...interface{}) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v:", part)
	}

	return hex.EncodeToString(h.Sum(nil))
}
