package codes

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashCode is the one-way digest codes are stored and matched under.
// Deterministic by requirement: redemption looks the code up by hash.
// Input is trimmed but case is preserved; codes are issued uppercase.
func HashCode(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
