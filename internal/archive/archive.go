// Package archive packs a session folder into a sibling zip file.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-archiver/internal/crawler"
)

const maxCollisionSuffix = 10000

// Archiver writes deflated zip archives.
type Archiver struct {
	logger *zap.Logger
}

// New returns an Archiver.
func New(logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{logger: logger}
}

// Archive zips folder into <folder>.zip (or <folder>_N.zip when taken) and
// returns the archive path. Entries are stored as <folder name>/<relative path>.
func (a *Archiver) Archive(ctx context.Context, folder string) (string, error) {
	folder = filepath.Clean(folder)
	info, err := os.Stat(folder)
	if err != nil {
		return "", fmt.Errorf("%w: stat session folder: %w", crawler.ErrPersistence, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", crawler.ErrPersistence, folder)
	}

	out, path, err := createArchiveFile(folder)
	if err != nil {
		return "", err
	}
	if err := a.write(ctx, out, folder); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: close archive: %w", crawler.ErrPersistence, err)
	}
	a.logger.Info("archive written", zap.String("path", path))
	return path, nil
}

func createArchiveFile(folder string) (*os.File, string, error) {
	for n := 0; n <= maxCollisionSuffix; n++ {
		path := folder + ".zip"
		if n > 0 {
			path = fmt.Sprintf("%s_%d.zip", folder, n)
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("%w: create archive: %w", crawler.ErrPersistence, err)
		}
	}
	return nil, "", fmt.Errorf("%w: no free archive name for %s", crawler.ErrPersistence, folder)
}

func (a *Archiver) write(ctx context.Context, w io.Writer, folder string) error {
	zw := zip.NewWriter(w)
	prefix := filepath.Base(folder)
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return err
		}
		return addFile(zw, path, prefix+"/"+filepath.ToSlash(rel))
	})
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("%w: add files: %w", crawler.ErrPersistence, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: finish archive: %w", crawler.ErrPersistence, err)
	}
	return nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = strings.TrimPrefix(name, "/")
	header.Method = zip.Deflate
	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
