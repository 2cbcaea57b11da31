// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// VerifyFile computes the SHA256 of the file at path and compares it with
// expectedHash, case-insensitively. A mismatch yields a *ChecksumError.
func VerifyFile(path, expectedHash string) error {
	got, err := ComputeFileHash(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, expectedHash) {
		return &ChecksumError{
			Filename: path,
			Expected: strings.ToLower(expectedHash),
			Got:      got,
		}
	}
	return nil
}

// ComputeFileHash returns the lowercase hex SHA256 digest of the file at path.
func ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }() // read-only file handle

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// isValidHexHash checks if s is a 64-character hex-encoded SHA256 hash.
func isValidHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
