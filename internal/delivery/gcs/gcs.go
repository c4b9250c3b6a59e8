// Package gcs uploads finished archives to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-archiver/internal/delivery"
)

const archiveContentType = "application/zip"

// Config names the destination bucket and object prefix.
type Config struct {
	Bucket string
	Prefix string
}

// Uploader copies archives into GCS.
type Uploader struct {
	client *storage.Client
	cfg    Config
	logger *zap.Logger
}

// New creates an Uploader. A nil client or empty bucket yields an Uploader
// whose Notify reports delivery.ErrSkipped.
func New(client *storage.Client, cfg Config, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.Prefix = strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	return &Uploader{client: client, cfg: cfg, logger: logger}
}

// Name implements delivery.Notifier.
func (u *Uploader) Name() string { return "gcs" }

// ObjectName returns the object key for archivePath.
func (u *Uploader) ObjectName(archivePath string) string {
	return path.Join(u.cfg.Prefix, filepath.Base(archivePath))
}

// Notify uploads archivePath. The recipient is ignored.
func (u *Uploader) Notify(ctx context.Context, archivePath, _ string) error {
	if u.client == nil || u.cfg.Bucket == "" {
		return fmt.Errorf("%w: no gcs bucket configured", delivery.ErrSkipped)
	}
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	uri, err := u.put(ctx, u.ObjectName(archivePath), f)
	if err != nil {
		return err
	}
	u.logger.Info("archive uploaded", zap.String("uri", uri))
	return nil
}

func (u *Uploader) put(ctx context.Context, object string, r io.Reader) (string, error) {
	writer := u.client.Bucket(u.cfg.Bucket).Object(object).NewWriter(ctx)
	writer.ContentType = archiveContentType
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", u.cfg.Bucket, object), nil
}
