// Package sessioncache persists an authenticated storage session between
// CLI invocations. The file holds the auth token as an oauth2.Token (so its
// expiry travels with it) plus the storage URL and the auth endpoint it was
// issued by.
package sessioncache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/objectstorage-go/internal/swift"
)

// FilePerms restricts session files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the cache directory.
const DirPerms = 0o700

// tokenType marks tokens written by this package.
const tokenType = "X-Auth-Token"

// Metadata keys.
const (
	MetaStorageURL = "storage_url"
	MetaAuthURL    = "auth_url"
	MetaUsername   = "username"
)

// File is the on-disk format.
type File struct {
	Token *oauth2.Token     `json:"token"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Load reads a session file. Returns (nil, nil, nil) if the file does not
// exist, and a nil session (with its metadata) if the token has expired.
func Load(path string) (*swift.Session, map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}

	if err != nil {
		return nil, nil, fmt.Errorf("sessioncache: reading %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("sessioncache: decoding %s: %w", path, err)
	}

	if f.Token == nil {
		return nil, nil, fmt.Errorf("sessioncache: %s missing token field", path)
	}

	if !f.Token.Valid() || f.Meta[MetaStorageURL] == "" {
		return nil, f.Meta, nil
	}

	return &swift.Session{
		Token:      f.Token.AccessToken,
		StorageURL: f.Meta[MetaStorageURL],
		Expiry:     f.Token.Expiry,
	}, f.Meta, nil
}

// Save writes s to path atomically (temp file, fsync, rename) with 0600
// permissions. meta is stored alongside; the storage URL key is always set
// from s.
func Save(path string, s *swift.Session, meta map[string]string) error {
	if s == nil {
		return errors.New("sessioncache: nil session")
	}

	m := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		m[k] = v
	}

	m[MetaStorageURL] = s.StorageURL

	f := File{
		Token: &oauth2.Token{
			AccessToken: s.Token,
			TokenType:   tokenType,
			Expiry:      s.Expiry,
		},
		Meta: m,
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("sessioncache: encoding: %w", err)
	}

	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("sessioncache: creating directory %s: %w", dir, err)
	}

	// Same directory keeps the rename on one filesystem.
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("sessioncache: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("sessioncache: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("sessioncache: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sessioncache: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sessioncache: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("sessioncache: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the session file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("sessioncache: removing %s: %w", path, err)
	}

	return nil
}

// Persister returns a callback for swift.Authenticator.OnSessionChange that
// saves every new session to path. Failures are logged, not returned: a
// session that cannot be cached is still usable.
func Persister(path string, meta map[string]string, logger *slog.Logger) func(*swift.Session) {
	if logger == nil {
		logger = slog.Default()
	}

	return func(s *swift.Session) {
		if err := Save(path, s, meta); err != nil {
			logger.Warn("could not cache session", slog.String("path", path), slog.String("error", err.Error()))
			return
		}

		logger.Debug("cached session", slog.String("path", path))
	}
}
