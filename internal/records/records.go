// Package records keeps a ledger of produced archives.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecord is returned when a record lacks required fields.
var ErrInvalidRecord = errors.New("invalid archive record")

// ArchiveRecord describes one archive written by a run.
type ArchiveRecord struct {
	RunID       string    `json:"run_id"`
	ProjectName string    `json:"project_name"`
	SeedURL     string    `json:"seed_url"`
	ArchivePath string    `json:"archive_path"`
	SHA256      string    `json:"sha256"`
	SizeBytes   int64     `json:"size_bytes"`
	Scraped     int       `json:"scraped"`
	Failed      int       `json:"failed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the fields every store requires.
func (r ArchiveRecord) Validate() error {
	switch {
	case r.RunID == "":
		return fmt.Errorf("%w: run id is required", ErrInvalidRecord)
	case r.ArchivePath == "":
		return fmt.Errorf("%w: archive path is required", ErrInvalidRecord)
	case r.CreatedAt.IsZero():
		return fmt.Errorf("%w: created at is required", ErrInvalidRecord)
	}
	return nil
}

// Store persists ArchiveRecords. List returns records oldest first.
type Store interface {
	Append(ctx context.Context, rec ArchiveRecord) error
	List(ctx context.Context) ([]ArchiveRecord, error)
}
