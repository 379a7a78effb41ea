package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// ContentID derives a stable identifier for a piece of text, e.g. "doc_3f2a...".
func ContentID(prefix, text string) string {
	return prefix + "_" + HashString(text)[:16]
}
