// Package sha256 fingerprints archive files.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Hasher computes hex SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// HashReader streams r and returns its digest and length.
func (h *Hasher) HashReader(r io.Reader) (string, int64, error) {
	sum := sha256.New()
	n, err := io.Copy(sum, r)
	if err != nil {
		return "", n, fmt.Errorf("hash stream: %w", err)
	}
	return hex.EncodeToString(sum.Sum(nil)), n, nil
}

// HashFile returns the digest and size of the file at path.
func (h *Hasher) HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only
	return h.HashReader(f)
}
