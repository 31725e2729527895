package circuits

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashBytesSHA256 returns the SHA256 hash of the provided byte slice.
func HashBytesSHA256(content []byte) (string, error) {
	hasher := sha256.New()
	if _, err := hasher.Write(content); err != nil {
		return "", fmt.Errorf("hash bytes: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
