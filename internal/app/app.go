// Package app runs the crawl-and-archive pipeline: crawl, report, archive,
// record and deliver.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-archiver/internal/crawler"
	"github.com/JakeFAU/site-archiver/internal/delivery"
	"github.com/JakeFAU/site-archiver/internal/progress"
	"github.com/JakeFAU/site-archiver/internal/records"
)

const (
	sessionTimeLayout  = "20060102_150405"
	maxSessionSuffixes = 1000
)

// Crawler runs one crawl into an existing session folder.
type Crawler interface {
	Run(ctx context.Context, req crawler.RunRequest) (crawler.RunReport, error)
}

// ReportWriter stores the run summary files.
type ReportWriter interface {
	Write(r crawler.RunReport) []string
}

// Archiver packs a session folder.
type Archiver interface {
	Archive(ctx context.Context, folder string) (string, error)
}

// Hasher fingerprints the archive.
type Hasher interface {
	HashFile(path string) (string, int64, error)
}

// Deps are the collaborators of a Runner. Records, Notifier and Emitter are
// optional.
type Deps struct {
	Crawler  Crawler
	Reports  ReportWriter
	Archiver Archiver
	Hasher   Hasher
	Records  records.Store
	Notifier delivery.Notifier
	Emitter  progress.Emitter
	Clock    crawler.Clock
}

// Request is the user-facing input of a run.
type Request struct {
	SeedURL         string
	ElementSelector string
	MaxDepth        crawler.MaxDepth
	Cleaning        crawler.CleaningPolicy
	Export          crawler.ExportConfig
	// OutputRoot receives the session folder and its archive.
	OutputRoot string
	// Recipient is passed to the notifier; empty uses the notifier default.
	Recipient string
}

// Result is the outcome of a run. Archive and delivery failures are reported
// here and never change the crawl accounting in Report.
type Result struct {
	Report      crawler.RunReport
	Archive     *records.ArchiveRecord
	ArchiveErr  error
	DeliveryErr error
	Delivered   bool
}

// Succeeded reports whether the crawl saved at least one page.
func (r Result) Succeeded() bool {
	return r.Report.Succeeded()
}

// Runner executes the pipeline.
type Runner struct {
	deps   Deps
	logger *zap.Logger
}

// NewRunner validates deps and returns a Runner.
func NewRunner(deps Deps, logger *zap.Logger) (*Runner, error) {
	switch {
	case deps.Crawler == nil:
		return nil, errors.New("crawler is required")
	case deps.Reports == nil:
		return nil, errors.New("report writer is required")
	case deps.Archiver == nil:
		return nil, errors.New("archiver is required")
	case deps.Hasher == nil:
		return nil, errors.New("hasher is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{deps: deps, logger: logger}, nil
}

// Run crawls into a fresh session folder, then writes the report, archives
// the folder, records the archive and delivers it. Stopped runs keep their
// folder and report but are not archived. Only invalid input or a failure to
// create the session folder returns an error.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	seed, err := crawler.NormalizeURL(req.SeedURL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: seed url: %w", crawler.ErrConfiguration, err)
	}
	if strings.TrimSpace(req.OutputRoot) == "" {
		return Result{}, fmt.Errorf("%w: output root is required", crawler.ErrConfiguration)
	}
	folder, err := r.createSessionFolder(req.OutputRoot, seed)
	if err != nil {
		return Result{}, err
	}
	r.logger.Info("session folder created", zap.String("folder", folder))

	report, err := r.deps.Crawler.Run(ctx, crawler.RunRequest{
		SeedURL:         seed,
		ElementSelector: req.ElementSelector,
		MaxDepth:        req.MaxDepth,
		Cleaning:        req.Cleaning,
		Export:          req.Export,
		SessionDir:      folder,
	})
	if err != nil {
		return Result{}, err
	}
	res := Result{Report: report}

	written := r.deps.Reports.Write(report)
	r.logger.Debug("run summary written", zap.Strings("files", written))

	if report.Stopped {
		r.logger.Info("run stopped; skipping archive", zap.String("folder", folder))
		return res, nil
	}

	rec, err := r.archive(ctx, report)
	if err != nil {
		res.ArchiveErr = err
		r.logger.Error("archive failed", zap.Error(err))
		return res, nil
	}
	res.Archive = &rec

	res.Delivered, res.DeliveryErr = r.deliver(ctx, report, rec, req.Recipient)
	return res, nil
}

func (r *Runner) archive(ctx context.Context, report crawler.RunReport) (records.ArchiveRecord, error) {
	path, err := r.deps.Archiver.Archive(ctx, report.SessionDir)
	if err != nil {
		return records.ArchiveRecord{}, err
	}
	digest, size, err := r.deps.Hasher.HashFile(path)
	if err != nil {
		return records.ArchiveRecord{}, fmt.Errorf("%w: hash archive: %w", crawler.ErrPersistence, err)
	}
	rec := records.ArchiveRecord{
		RunID:       report.RunID,
		ProjectName: filepath.Base(report.SessionDir),
		SeedURL:     report.SeedURL,
		ArchivePath: path,
		SHA256:      digest,
		SizeBytes:   size,
		Scraped:     len(report.Scraped),
		Failed:      len(report.Failed),
		CreatedAt:   r.deps.Clock.Now(),
	}
	r.logger.Info("archive ready",
		zap.String("path", path),
		zap.Int64("bytes", size),
		zap.String("sha256", digest),
	)
	r.emit(report, progress.StageArchived, path, size, "")

	if r.deps.Records != nil {
		if err := r.deps.Records.Append(ctx, rec); err != nil {
			r.logger.Warn("archive record not stored", zap.Error(err))
		}
	}
	return rec, nil
}

func (r *Runner) deliver(ctx context.Context, report crawler.RunReport, rec records.ArchiveRecord, recipient string) (bool, error) {
	if r.deps.Notifier == nil {
		return false, nil
	}
	err := r.deps.Notifier.Notify(ctx, rec.ArchivePath, recipient)
	switch {
	case err == nil:
		r.emit(report, progress.StageDelivered, rec.ArchivePath, rec.SizeBytes, r.deps.Notifier.Name())
		return true, nil
	case errors.Is(err, delivery.ErrSkipped):
		r.logger.Info("archive not delivered", zap.String("reason", err.Error()))
		return false, nil
	default:
		r.logger.Warn("archive delivery failed", zap.Error(err))
		return false, err
	}
}

func (r *Runner) emit(report crawler.RunReport, stage progress.Stage, path string, size int64, note string) {
	id, err := uuid.Parse(report.RunID)
	if err != nil {
		r.logger.Debug("progress event skipped: run id is not a uuid", zap.String("run_id", report.RunID))
		return
	}
	r.deps.Emitter.Emit(progress.Event{
		RunID: progress.UUIDToBytes(id),
		TS:    r.deps.Clock.Now().UTC(),
		Stage: stage,
		URL:   path,
		Bytes: size,
		Counters: progress.Counters{
			Scraped:    len(report.Scraped),
			Failed:     len(report.Failed),
			Discovered: report.DiscoveredLinks,
		},
		Note: note,
	})
}

// createSessionFolder makes <root>/<domain>_<timestamp>, adding _N when a
// folder with that name already exists.
func (r *Runner) createSessionFolder(root, seed string) (string, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return "", fmt.Errorf("%w: create output root: %w", crawler.ErrPersistence, err)
	}
	base := SessionName(seed, r.deps.Clock.Now())
	candidate := filepath.Join(root, base)
	for i := 1; i <= maxSessionSuffixes; i++ {
		err := os.Mkdir(candidate, 0o750)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: create session folder: %w", crawler.ErrPersistence, err)
		}
		candidate = filepath.Join(root, fmt.Sprintf("%s_%d", base, i))
	}
	return "", fmt.Errorf("%w: no free session folder name for %s", crawler.ErrPersistence, base)
}

// SessionName returns "<domain>_<YYYYmmdd_HHMMSS>" with a leading "www."
// removed from the domain.
func SessionName(seed string, at time.Time) string {
	host := "site"
	if u, err := url.Parse(seed); err == nil && u.Host != "" {
		host = strings.ToLower(u.Host)
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.ReplaceAll(host, ":", "_")
	return host + "_" + at.Format(sessionTimeLayout)
}
