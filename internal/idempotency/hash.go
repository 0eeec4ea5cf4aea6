package idempotency

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// RequestHash fingerprints a request so that a key reused for a different
// request is detected as a collision.
func RequestHash(method, path string, body []byte) string {
	h, _ := blake2b.New256(nil) // a nil key never fails
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
