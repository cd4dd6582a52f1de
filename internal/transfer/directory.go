package transfer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/objectstorage-go/internal/swift"
)

// DirectoryReport summarizes an UploadDirectory run.
type DirectoryReport struct {
	Directories int
	Files       int
	Bytes       int64
}

// localEntry is one file or directory found under the upload root.
type localEntry struct {
	fsPath     string
	objectName string
}

// UploadDirectory uploads the tree under dir into c, below prefix. Each
// sub-directory becomes a directory marker object, created before any file.
// Files are uploaded by up to Options.Workers goroutines; the first failure
// cancels the rest.
func (m *Manager) UploadDirectory(ctx context.Context, c *swift.Container, prefix, dir string) (*DirectoryReport, error) {
	dirs, files, err := scanTree(dir, prefix)
	if err != nil {
		return nil, err
	}

	m.logger.Info("uploading directory",
		slog.String("dir", dir),
		slog.String("container", c.Name()),
		slog.Int("directories", len(dirs)),
		slog.Int("files", len(files)),
		slog.Int("workers", m.workers),
	)

	report := &DirectoryReport{}

	for _, d := range dirs {
		if err := c.Object(d.objectName).MakeDir(ctx); err != nil {
			return report, fmt.Errorf("creating directory marker %s: %w", d.objectName, err)
		}

		report.Directories++
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	var mu sync.Mutex

	for _, f := range files {
		g.Go(func() error {
			res, err := m.UploadFile(gctx, c, f.objectName, f.fsPath)
			if err != nil {
				return err
			}

			mu.Lock()
			report.Files++
			report.Bytes += res.Size
			mu.Unlock()

			m.logger.Debug("uploaded file", slog.String("object", f.objectName), slog.Int64("bytes", res.Size))

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	return report, nil
}

// scanTree walks root and returns directories (parents first) and regular
// files with their object names. Names are NFC-normalized and always use
// "/" so the same tree maps to the same objects on every platform.
func scanTree(root, prefix string) (dirs, files []localEntry, err error) {
	prefix = strings.Trim(prefix, "/")

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		name := norm.NFC.String(filepath.ToSlash(rel))
		if prefix != "" {
			name = path.Join(prefix, name)
		}

		switch {
		case d.IsDir():
			dirs = append(dirs, localEntry{fsPath: p, objectName: name})
		case d.Type().IsRegular():
			files = append(files, localEntry{fsPath: p, objectName: name})
		}

		return nil
	})
	if walkErr != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", root, walkErr)
	}

	return dirs, files, nil
}
