package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tonimelisma/objectstorage-go/internal/swift"
)

// defaultMaxHashRetries is how many extra full downloads are attempted when
// the downloaded content does not match the ETag.
const defaultMaxHashRetries = 1

// DefaultWorkers bounds parallel uploads when Options.Workers is unset.
const DefaultWorkers = 4

// Options configure a Manager.
type Options struct {
	ChunkSize      int  // 0 = swift.DefaultChunkSize
	Workers        int  // 0 = DefaultWorkers
	Verify         bool // compare MD5 with ETag
	MaxHashRetries int  // 0 = defaultMaxHashRetries
}

// DownloadResult reports a completed download.
type DownloadResult struct {
	LocalHash string
	Size      int64
	Resumed   bool // bytes from an earlier .partial were reused
	Verified  bool // LocalHash matched the ETag
}

// Manager performs file transfers.
type Manager struct {
	logger         *slog.Logger
	chunkSize      int
	workers        int
	verify         bool
	maxHashRetries int
	hashFunc       func(string) (string, error)
}

// NewManager creates a Manager.
func NewManager(opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.ChunkSize <= 0 {
		opts.ChunkSize = swift.DefaultChunkSize
	}

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	if opts.MaxHashRetries <= 0 {
		opts.MaxHashRetries = defaultMaxHashRetries
	}

	return &Manager{
		logger:         logger,
		chunkSize:      opts.ChunkSize,
		workers:        opts.Workers,
		verify:         opts.Verify,
		maxHashRetries: opts.MaxHashRetries,
		hashFunc:       ComputeMD5,
	}
}

// DownloadToFile downloads obj to targetPath via targetPath.partial. An
// existing partial file is resumed with a range request. The partial file is
// kept when ctx is canceled so a later call can resume it.
func (m *Manager) DownloadToFile(ctx context.Context, obj *swift.Object, targetPath string) (*DownloadResult, error) {
	if targetPath == "" {
		return nil, errors.New("download: target path must not be empty")
	}

	if err := obj.Load(ctx); err != nil {
		return nil, fmt.Errorf("download: stat %s: %w", obj.Path(), err)
	}

	info := obj.Info()

	m.logger.Debug("DownloadToFile",
		slog.String("object", obj.Path()),
		slog.String("target", targetPath),
		slog.Int64("size", info.Size),
	)

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o700); err != nil { //nolint:mnd // owner-only dir perms
		return nil, fmt.Errorf("creating parent dir for %s: %w", targetPath, err)
	}

	partialPath := targetPath + ".partial"

	// Manifest ETags hash the segment list, not the content.
	remoteHash := info.ETag
	if !m.verify || info.Manifest != "" {
		remoteHash = ""
	}

	var (
		localHash string
		size      int64
		resumed   bool
	)

	for attempt := range m.maxHashRetries + 1 {
		var err error

		localHash, size, resumed, err = m.downloadToPartial(ctx, obj, partialPath, info.Size)
		if err != nil {
			return nil, err
		}

		if remoteHash == "" || strings.EqualFold(localHash, remoteHash) {
			break
		}

		os.Remove(partialPath)

		if attempt < m.maxHashRetries {
			m.logger.Warn("download hash mismatch, retrying",
				slog.String("object", obj.Path()),
				slog.Int("attempt", attempt+1),
				slog.String("local_hash", localHash),
				slog.String("remote_hash", remoteHash),
			)

			continue
		}

		return nil, &swift.ChecksumMismatchError{Path: obj.Path(), Local: localHash, Remote: remoteHash}
	}

	if err := os.Rename(partialPath, targetPath); err != nil {
		return nil, fmt.Errorf("renaming partial to %s: %w", targetPath, err)
	}

	m.logger.Debug("download complete",
		slog.String("target", targetPath),
		slog.Int64("size", size),
		slog.Bool("resumed", resumed),
	)

	return &DownloadResult{
		LocalHash: localHash,
		Size:      size,
		Resumed:   resumed,
		Verified:  remoteHash != "",
	}, nil
}

// downloadToPartial fills partialPath with the object and hashes it. A
// non-empty partial shorter than the object is resumed.
func (m *Manager) downloadToPartial(
	ctx context.Context, obj *swift.Object, partialPath string, remoteSize int64,
) (string, int64, bool, error) {
	f, openErr := os.OpenFile(partialPath, os.O_APPEND|os.O_WRONLY, 0o600) //nolint:mnd // owner-only
	if openErr == nil {
		st, statErr := f.Stat()

		switch {
		case statErr != nil || st.Size() == 0 || st.Size() > remoteSize:
			f.Close()
		case st.Size() == remoteSize:
			f.Close()
			return m.hashPartial(ctx, partialPath, st.Size(), true)
		default:
			return m.resumeDownload(ctx, obj, f, partialPath, st.Size())
		}
	} else if !errors.Is(openErr, os.ErrNotExist) {
		m.logger.Warn("cannot open partial file for resume, starting fresh",
			slog.String("path", partialPath), slog.String("error", openErr.Error()))
	}

	return m.freshDownload(ctx, obj, partialPath)
}

// removePartialIfNotCanceled keeps the partial for a later resume when the
// failure was a cancellation.
func removePartialIfNotCanceled(ctx context.Context, path string) {
	if ctx.Err() == nil {
		os.Remove(path)
	}
}

func (m *Manager) freshDownload(ctx context.Context, obj *swift.Object, partialPath string) (string, int64, bool, error) {
	f, err := os.OpenFile(partialPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) //nolint:mnd // owner-only file perms
	if err != nil {
		return "", 0, false, fmt.Errorf("creating partial file %s: %w", partialPath, err)
	}

	it, err := obj.Download(ctx, swift.ByteRange{}, m.chunkSize)
	if err != nil {
		f.Close()
		os.Remove(partialPath)

		return "", 0, false, err
	}

	n, err := copyChunks(f, it)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing partial file %s: %w", partialPath, closeErr)
	}

	if err != nil {
		removePartialIfNotCanceled(ctx, partialPath)
		return "", 0, false, fmt.Errorf("downloading %s: %w", obj.Path(), err)
	}

	return m.hashPartial(ctx, partialPath, n, false)
}

// resumeDownload appends the rest of the object to the already-open partial
// file. A server that ignores the range (200 instead of 206) gets the file
// rewritten from the start.
func (m *Manager) resumeDownload(
	ctx context.Context, obj *swift.Object, f *os.File, partialPath string, existing int64,
) (string, int64, bool, error) {
	m.logger.Debug("resuming download from partial file",
		slog.String("path", partialPath),
		slog.Int64("existing_bytes", existing),
	)

	it, err := obj.Download(ctx, swift.RangeFrom(existing), m.chunkSize)
	if err == nil {
		err = it.Open()
	}

	if err != nil {
		f.Close()
		m.logger.Warn("range download failed, falling back to fresh download",
			slog.String("path", partialPath), slog.String("error", err.Error()))

		return m.freshDownload(ctx, obj, partialPath)
	}

	resumed := true

	if it.StatusCode() != http.StatusPartialContent {
		m.logger.Debug("server ignored range, rewriting partial", slog.String("path", partialPath))

		if err := f.Truncate(0); err != nil {
			it.Close()
			f.Close()

			return "", 0, false, fmt.Errorf("truncating %s: %w", partialPath, err)
		}

		existing = 0
		resumed = false
	}

	n, err := copyChunks(f, it)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing partial file %s: %w", partialPath, closeErr)
	}

	if err != nil {
		removePartialIfNotCanceled(ctx, partialPath)
		return "", 0, false, fmt.Errorf("resuming %s: %w", obj.Path(), err)
	}

	return m.hashPartial(ctx, partialPath, existing+n, resumed)
}

func (m *Manager) hashPartial(ctx context.Context, partialPath string, size int64, resumed bool) (string, int64, bool, error) {
	localHash, err := m.hashFunc(partialPath)
	if err != nil {
		removePartialIfNotCanceled(ctx, partialPath)
		return "", 0, false, fmt.Errorf("hashing partial file %s: %w", partialPath, err)
	}

	return localHash, size, resumed, nil
}

// copyChunks drains it into w and always releases it.
func copyChunks(w io.Writer, it *swift.ChunkIterator) (int64, error) {
	defer it.Close()

	var n int64

	for chunk, err := range it.All() {
		if err != nil {
			return n, err
		}

		written, err := w.Write(chunk)
		n += int64(written)

		if err != nil {
			return n, err
		}
	}

	return n, nil
}

// UploadFile uploads localPath as object name in c. The file's size is
// declared up front, and the ETag is checked unless verification is off.
func (m *Manager) UploadFile(ctx context.Context, c *swift.Container, name, localPath string) (*swift.UploadResult, error) {
	if name == "" {
		return nil, errors.New("upload: object name must not be empty")
	}

	if localPath == "" {
		return nil, errors.New("upload: local path must not be empty")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s for upload: %w", localPath, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", localPath, err)
	}

	if st.IsDir() {
		return nil, fmt.Errorf("upload: %s is a directory", localPath)
	}

	m.logger.Debug("UploadFile",
		slog.String("path", localPath),
		slog.String("container", c.Name()),
		slog.String("name", name),
		slog.Int64("size", st.Size()),
	)

	res, err := c.Object(name).Upload(ctx, f, st.Size(), swift.UploadOptions{
		ChunkSize:  m.chunkSize,
		SkipVerify: !m.verify,
	})
	if err != nil {
		return res, fmt.Errorf("uploading %s: %w", localPath, err)
	}

	return res, nil
}
