// Package checksum derives version tags for optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Links returns the hex SHA-256 digest of an entity id and its link values,
// in order. Each value is NUL-separated so ("ab","") and ("a","b") differ.
func Links(id string, refs ...string) string {
	h := sha256.New()
	h.Write([]byte(id))
	for _, r := range refs {
		h.Write([]byte{0})
		h.Write([]byte(r))
	}
	return hex.EncodeToString(h.Sum(nil))
}
