package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// fastFPWindow is the number of bytes hashed from each end of a file for
// the fast fingerprint.
const fastFPWindow = 64 * 1024

// FastFingerprint hashes the first and last 64 KiB of a file and returns
// the first 16 hex characters of the digest. Files smaller than one window
// are hashed whole; the head and tail windows may overlap for files under
// two windows, which is fine because the result only needs to be stable.
func FastFingerprint(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for fast fingerprint: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	head := make([]byte, min(int64(fastFPWindow), size))
	if _, err := io.ReadFull(f, head); err != nil {
		return "", fmt.Errorf("read head window: %w", err)
	}
	hasher.Write(head)

	if size > fastFPWindow {
		tail := make([]byte, fastFPWindow)
		if _, err := f.ReadAt(tail, size-fastFPWindow); err != nil {
			return "", fmt.Errorf("read tail window: %w", err)
		}
		hasher.Write(tail)
	}

	return hex.EncodeToString(hasher.Sum(nil))[:16], nil
}

// FullHash streams the entire file through SHA-256.
func FullHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for full hash: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	buf := make([]byte, 1<<20)
	if _, err := io.CopyBuffer(hasher, f, buf); err != nil {
		return "", fmt.Errorf("hash %q: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
