package id

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a short random identifier used to correlate the log lines and
// trace spans of one run.
func New() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "run-fallback-id"
	}
	return hex.EncodeToString(b[:])
}
