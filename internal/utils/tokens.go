package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

func NewRefreshToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32 // 256 bits
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewLeadID returns a human-friendly lead identifier such as "LD-1F3A9C2B".
func NewLeadID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "LD-" + strings.ToUpper(id[:8])
}
