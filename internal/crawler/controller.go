package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-archiver/internal/progress"
)

// Config tunes the controller loop.
type Config struct {
	// PolitenessDelay separates consecutive processed entries. Negative disables it.
	PolitenessDelay time.Duration
}

// Controller runs breadth-first crawls. One Run executes at a time; Stop may be
// called from any goroutine.
type Controller struct {
	cfg       Config
	fetcher   Fetcher
	cleaner   Cleaner
	exporter  Exporter
	extractor LinkExtractor
	emitter   progress.Emitter
	clock     Clock
	ids       RunIDGenerator
	sleep     func(context.Context, time.Duration) bool
	logger    *zap.Logger

	stopRequested atomic.Bool
}

// NewController wires the collaborators of a crawl run.
func NewController(
	cfg Config,
	fetcher Fetcher,
	cleaner Cleaner,
	exporter Exporter,
	extractor LinkExtractor,
	emitter progress.Emitter,
	clock Clock,
	ids RunIDGenerator,
	logger *zap.Logger,
) *Controller {
	if cfg.PolitenessDelay == 0 {
		cfg.PolitenessDelay = DefaultPolitenessDelay
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:       cfg,
		fetcher:   fetcher,
		cleaner:   cleaner,
		exporter:  exporter,
		extractor: extractor,
		emitter:   emitter,
		clock:     clock,
		ids:       ids,
		sleep:     sleepCtx,
		logger:    logger,
	}
}

// Stop asks the current run to finish after the page in flight.
func (c *Controller) Stop() {
	c.stopRequested.Store(true)
}

// run holds the mutable state of one Run call.
type run struct {
	id       [16]byte
	req      RunRequest
	frontier *frontier
	report   RunReport
	logger   *zap.Logger
}

// Run crawls from req.SeedURL until the frontier is exhausted, the context is
// cancelled or Stop is called. Per-page failures are recorded in the report and
// never abort the run; only invalid input returns an error.
func (c *Controller) Run(ctx context.Context, req RunRequest) (RunReport, error) {
	if err := req.Validate(); err != nil {
		return RunReport{}, err
	}
	seed, err := NormalizeURL(req.SeedURL)
	if err != nil {
		return RunReport{}, fmt.Errorf("%w: seed url: %w", ErrConfiguration, err)
	}
	id, err := c.ids.NewRawID()
	if err != nil {
		return RunReport{}, fmt.Errorf("generate run id: %w", err)
	}
	c.stopRequested.Store(false)

	r := &run{
		id:       progress.UUIDToBytes(id),
		req:      req,
		frontier: newFrontier(),
		logger:   c.logger.With(zap.String("run_id", id.String())),
		report: RunReport{
			RunID:           id.String(),
			SeedURL:         seed,
			ElementSelector: req.ElementSelector,
			MaxDepth:        req.MaxDepth,
			Cleaning:        req.Cleaning,
			Export:          req.Export,
			SessionDir:      req.SessionDir,
			StartedAt:       c.clock.Now(),
		},
	}
	r.frontier.Push(FrontierEntry{URL: seed, Depth: 0})
	r.logger.Info("crawl started",
		zap.String("seed", seed),
		zap.String("max_depth", req.MaxDepth.String()),
		zap.String("format", string(req.Export.Format)),
	)
	c.emit(r, progress.Event{Stage: progress.StageRunStart, URL: seed})

	for r.frontier.Len() > 0 {
		if c.shouldStop(ctx) {
			r.report.Stopped = true
			r.logger.Info("crawl stopped", zap.Int("remaining", r.frontier.Len()))
			break
		}
		entry, _ := r.frontier.Pop()
		if !req.MaxDepth.Allows(entry.Depth) {
			r.logger.Debug("depth limit reached", zap.String("url", entry.URL), zap.Int("depth", entry.Depth))
			continue
		}
		if !r.frontier.MarkVisited(entry.URL) {
			continue
		}
		// The popped page runs to completion; the fetch timeout bounds it.
		c.process(context.WithoutCancel(ctx), r, entry)
		if r.frontier.Any(func(e FrontierEntry) bool { return req.MaxDepth.Allows(e.Depth) }) {
			c.sleep(ctx, c.cfg.PolitenessDelay)
		}
	}
	if !r.report.Stopped && c.shouldStop(ctx) {
		r.report.Stopped = true
		r.logger.Info("crawl stopped after the last page")
	}

	r.report.FinishedAt = c.clock.Now()
	r.logger.Info("crawl finished",
		zap.Int("scraped", len(r.report.Scraped)),
		zap.Int("failed", len(r.report.Failed)),
		zap.Int("found_links", r.report.DiscoveredLinks),
		zap.String("success_rate", r.report.SuccessRateString()),
		zap.Bool("stopped", r.report.Stopped),
	)
	c.emit(r, progress.Event{Stage: progress.StageRunDone, URL: seed, Dur: r.report.Elapsed()})
	return r.report, nil
}

func (c *Controller) shouldStop(ctx context.Context) bool {
	if c.stopRequested.Load() {
		return true
	}
	return ctx.Err() != nil
}

func (c *Controller) process(ctx context.Context, r *run, entry FrontierEntry) {
	logger := r.logger.With(zap.String("url", entry.URL), zap.Int("depth", entry.Depth))
	c.emit(r, progress.Event{Stage: progress.StagePageStart, URL: entry.URL, Depth: entry.Depth})
	start := c.clock.Now()

	page, err := c.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		c.fail(r, entry, start, err)
		logger.Warn("fetch failed", zap.Error(err))
		return
	}

	doc := c.cleaner.Clean(page.Body, r.req.Cleaning)
	result := c.exporter.Save(ctx, SaveRequest{
		URL:       entry.URL,
		IsSeed:    entry.Depth == 0,
		Document:  doc,
		Config:    r.req.Export,
		Folder:    r.req.SessionDir,
		FetchedAt: c.clock.Now(),
	})
	for _, out := range result.Outputs {
		if out.Err != nil {
			logger.Warn("export failed", zap.String("format", string(out.Format)), zap.Error(out.Err))
			continue
		}
		logger.Debug("export written", zap.String("format", string(out.Format)), zap.String("path", out.Path))
	}
	if result.OK() {
		r.report.Scraped = append(r.report.Scraped, Outcome{URL: entry.URL, Depth: entry.Depth, Files: result.Files()})
		c.emit(r, progress.Event{
			Stage: progress.StagePageSaved,
			URL:   entry.URL,
			Depth: entry.Depth,
			Bytes: int64(len(page.Body)),
			Dur:   c.clock.Now().Sub(start),
		})
	} else {
		c.fail(r, entry, start, fmt.Errorf("%w: %w", ErrPersistence, result.Err()))
	}

	// Link discovery runs after any successful fetch, even when the save failed.
	if !r.req.MaxDepth.Allows(entry.Depth + 1) {
		return
	}
	selector := ""
	if entry.Depth == 0 {
		selector = r.req.ElementSelector
	}
	links := c.extractor.Extract(page.Body, entry.URL, selector)
	r.report.DiscoveredLinks += len(links)
	added := 0
	for _, link := range links {
		if r.frontier.Push(FrontierEntry{URL: link, Depth: entry.Depth + 1}) {
			added++
		}
	}
	logger.Debug("links discovered", zap.Int("found", len(links)), zap.Int("enqueued", added))
}

func (c *Controller) fail(r *run, entry FrontierEntry, start time.Time, err error) {
	reason := err.Error()
	r.report.Failed = append(r.report.Failed, Outcome{URL: entry.URL, Depth: entry.Depth, Reason: reason})
	evt := progress.Event{
		Stage: progress.StagePageFailed,
		URL:   entry.URL,
		Depth: entry.Depth,
		Dur:   c.clock.Now().Sub(start),
		Note:  reason,
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.Kind == KindHTTPStatus {
		evt.Note = fmt.Sprintf("http status %d", fetchErr.StatusCode)
	}
	c.emit(r, evt)
}

func (c *Controller) emit(r *run, evt progress.Event) {
	evt.RunID = r.id
	evt.TS = c.clock.Now().UTC()
	evt.Counters = progress.Counters{
		Scraped:    len(r.report.Scraped),
		Failed:     len(r.report.Failed),
		Discovered: r.report.DiscoveredLinks,
		Queued:     r.frontier.Len(),
	}
	if evt.Dur < 0 {
		evt.Dur = 0
	}
	c.emitter.Emit(evt)
}
