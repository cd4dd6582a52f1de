package transfer

import (
	"crypto/md5" //nolint:gosec // Swift ETags are MD5 digests
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ComputeMD5 returns the hex MD5 of the file at fsPath, streaming it in
// constant memory.
func ComputeMD5(fsPath string) (string, error) {
	f, err := os.Open(fsPath)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", fsPath, err)
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // see import
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", fsPath, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
