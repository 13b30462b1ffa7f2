package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// FileSha256 streams a file through SHA-256 and returns the hex digest. Used
// as the content fingerprint for corpus PDFs.
func FileSha256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// CanonicalJSONHash marshals a value to JSON and hashes it. encoding/json
// emits map keys in sorted order, so equal values always hash equally.
func CanonicalJSONHash(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal for hashing: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// StringsHash hashes a list of strings in order.
func StringsHash(values []string) string {
	hasher := sha256.New()
	for _, v := range values {
		hasher.Write([]byte(v))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
