package app

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// MinJWTSecretBytes is the shortest HMAC secret accepted without a warning.
const MinJWTSecretBytes = 32

// KeyByteLength returns the decoded byte length of a key string.
// It supports hex, base64, and raw string encodings.
func KeyByteLength(value string) (int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, nil
	}

	// Try hex first (runtime defaults use hex)
	if len(v)%2 == 0 {
		if decoded, err := hex.DecodeString(v); err == nil {
			return len(decoded), nil
		}
	}

	// Support both standard and raw base64 encodings
	if decoded, err := base64.StdEncoding.DecodeString(v); err == nil {
		return len(decoded), nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(v); err == nil {
		return len(decoded), nil
	}

	return len(v), nil
}

// WeakJWTSecret reports whether secret carries fewer than MinJWTSecretBytes of key material.
func WeakJWTSecret(secret string) bool {
	length, err := KeyByteLength(secret)
	return err != nil || length < MinJWTSecretBytes
}
