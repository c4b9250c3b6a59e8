package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/site-archiver/internal/api"
	"github.com/JakeFAU/site-archiver/internal/app"
	"github.com/JakeFAU/site-archiver/internal/archive"
	"github.com/JakeFAU/site-archiver/internal/clean"
	"github.com/JakeFAU/site-archiver/internal/clock/system"
	"github.com/JakeFAU/site-archiver/internal/config"
	"github.com/JakeFAU/site-archiver/internal/crawler"
	"github.com/JakeFAU/site-archiver/internal/delivery"
	"github.com/JakeFAU/site-archiver/internal/delivery/gcs"
	"github.com/JakeFAU/site-archiver/internal/delivery/smtp"
	"github.com/JakeFAU/site-archiver/internal/export"
	"github.com/JakeFAU/site-archiver/internal/export/pdf"
	"github.com/JakeFAU/site-archiver/internal/extract"
	collyfetcher "github.com/JakeFAU/site-archiver/internal/fetcher/colly"
	"github.com/JakeFAU/site-archiver/internal/hash/sha256"
	"github.com/JakeFAU/site-archiver/internal/id/uuid"
	"github.com/JakeFAU/site-archiver/internal/logging"
	"github.com/JakeFAU/site-archiver/internal/progress"
	"github.com/JakeFAU/site-archiver/internal/progress/sinks"
	"github.com/JakeFAU/site-archiver/internal/records"
	"github.com/JakeFAU/site-archiver/internal/records/memory"
	"github.com/JakeFAU/site-archiver/internal/records/postgres"
	"github.com/JakeFAU/site-archiver/internal/report"
	"github.com/JakeFAU/site-archiver/internal/session"
)

const hubCloseTimeout = 5 * time.Second

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a site and archive the saved pages",
		Long: `Starts at --url, saves every page reachable through links inside the
--element container up to --depth levels, writes a run report and zips the
session folder. The archive is then emailed and/or uploaded to GCS.`,
		RunE: runCrawlCommand,
	}

	f := cmd.Flags()
	f.String("url", "", "seed URL")
	f.String("element", "", "id or CSS selector of the content container on the seed page")
	f.String("depth", "2", `maximum depth, or "unlimited"`)
	f.String("format", string(crawler.FormatBoth), "markdown, pdf or both")
	f.String("output", "output", "directory that receives the session folder")
	f.Duration("delay", crawler.DefaultPolitenessDelay, "pause between pages; 0 disables it")
	f.Duration("timeout", 15*time.Second, "per-request timeout")
	f.String("user-agent", "", "User-Agent header")
	f.Bool("keep-header", false, "keep page headers")
	f.Bool("keep-footer", false, "keep page footers")
	f.Bool("keep-sidebar", false, "keep sidebars")
	f.Bool("keep-ads", false, "keep ad blocks")
	f.Bool("keep-social", false, "keep social widgets")
	f.Bool("keep-comments", false, "keep comment sections")
	f.StringSlice("extra-selectors", nil, "additional CSS selectors to remove")
	f.String("page-size", "A4", "PDF page size")
	f.String("orientation", string(crawler.Portrait), "PDF orientation")
	f.Float64("margin", 0.75, "PDF margin in inches")
	f.String("chrome-path", "", "Chrome executable used for PDF rendering")
	f.String("cookies", "", "YAML or JSON file with session cookies")
	f.Bool("email", true, "email the archive using SMTP_* credentials")
	f.String("to", "", "email recipient; defaults to SMTP_TO or SMTP_USER")
	f.String("gcs-bucket", "", "upload the archive to this GCS bucket")
	f.String("status-addr", "", "serve progress and metrics on this address")
	f.Bool("dev", false, "development logging")
	f.String("log-level", "", "log level")

	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := runPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), res)
	if !res.Succeeded() {
		return errors.New("no pages were saved")
	}
	return nil
}

// runPipeline builds every collaborator from cfg and executes one run. The
// status server, when configured, lives for the duration of the run.
func runPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (app.Result, error) {
	reg := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return app.Result{}, fmt.Errorf("init metrics: %w", err)
	}
	snapshot := sinks.NewSnapshotSink()
	hub := progress.NewHub(progress.Config{Logger: logger}, promSink, snapshot, sinks.NewLogSink(logger))
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), hubCloseTimeout)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("progress hub close failed", zap.Error(cerr))
		}
	}()

	renderer, closeRenderer, err := buildRenderer(cfg)
	if err != nil {
		return app.Result{}, err
	}
	defer closeRenderer()

	store, closeStore, err := buildRecords(ctx, cfg)
	if err != nil {
		return app.Result{}, err
	}
	defer closeStore()

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		return app.Result{}, err
	}
	defer closeNotifier()

	clock := system.New()
	controller := crawler.NewController(
		crawler.Config{PolitenessDelay: cfg.PolitenessDelay()},
		collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Crawl.UserAgent,
			Timeout:   cfg.Crawl.Timeout,
		}, buildCookies(cfg), logger),
		clean.New(logger),
		export.New(renderer, logger),
		extract.New(logger),
		hub,
		clock,
		uuid.New(),
		logger,
	)

	runner, err := app.NewRunner(app.Deps{
		Crawler:  controller,
		Reports:  report.NewWriter(logger),
		Archiver: archive.New(logger),
		Hasher:   sha256.New(),
		Records:  store,
		Notifier: notifier,
		Emitter:  hub,
		Clock:    clock,
	}, logger)
	if err != nil {
		return app.Result{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	var res app.Result
	g.Go(func() error {
		defer stopServer()
		var runErr error
		res, runErr = runner.Run(gctx, app.Request{
			SeedURL:         cfg.Crawl.URL,
			ElementSelector: cfg.Crawl.Element,
			MaxDepth:        cfg.MaxDepth(),
			Cleaning:        cfg.Cleaning(),
			Export:          cfg.Export(),
			OutputRoot:      cfg.Crawl.OutputDir,
			Recipient:       cfg.Delivery.Recipient,
		})
		return runErr
	})
	if cfg.Status.Addr != "" {
		srv := api.NewServer(api.Options{
			Snapshots: snapshot,
			Records:   store,
			Stopper:   controller,
			Gatherer:  reg,
			APIKey:    cfg.Status.APIKey,
			Logger:    logger,
		})
		g.Go(func() error {
			return srv.ListenAndServe(serverCtx, cfg.Status.Addr)
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

func buildRenderer(cfg config.Config) (export.PDFRenderer, func(), error) {
	if !cfg.Export().Format.Includes(crawler.FormatPDF) {
		return pdf.Noop{}, func() {}, nil
	}
	r, err := pdf.NewChromedp(pdf.Config{
		MaxParallel:   cfg.PDF.MaxParallel,
		RenderTimeout: cfg.PDF.RenderTimeout,
		ExecPath:      cfg.PDF.ChromePath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init pdf renderer: %w", err)
	}
	return r, r.Close, nil
}

func buildCookies(cfg config.Config) session.Provider {
	if cfg.Session.CookieFile == "" {
		return session.Empty{}
	}
	return session.File{Path: cfg.Session.CookieFile}
}

func buildRecords(ctx context.Context, cfg config.Config) (records.Store, func(), error) {
	if cfg.Records.DSN == "" {
		return memory.NewStore(), func() {}, nil
	}
	store, err := postgres.New(ctx, postgres.Config{DSN: cfg.Records.DSN, Table: cfg.Records.Table})
	if err != nil {
		return nil, nil, fmt.Errorf("init records store: %w", err)
	}
	return store, store.Close, nil
}

func buildNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (delivery.Notifier, func(), error) {
	var notifiers []delivery.Notifier
	closer := func() {}
	if cfg.Delivery.Email {
		smtpCfg, err := smtp.ConfigFromEnv(os.Getenv)
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, smtp.New(smtpCfg, system.New(), logger))
	}
	if cfg.Delivery.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs client: %w", err)
		}
		closer = func() {
			if cerr := client.Close(); cerr != nil {
				logger.Warn("gcs client close failed", zap.Error(cerr))
			}
		}
		notifiers = append(notifiers, gcs.New(client, gcs.Config{
			Bucket: cfg.Delivery.GCSBucket,
			Prefix: cfg.Delivery.GCSPrefix,
		}, logger))
	}
	if len(notifiers) == 0 {
		return nil, closer, nil
	}
	return delivery.NewMulti(logger, notifiers...), closer, nil
}

func printSummary(w io.Writer, res app.Result) {
	r := res.Report
	fmt.Fprintf(w, "Session:      %s\n", r.SessionDir)
	fmt.Fprintf(w, "Scraped:      %d\n", len(r.Scraped))
	fmt.Fprintf(w, "Failed:       %d\n", len(r.Failed))
	fmt.Fprintf(w, "Success rate: %s\n", r.SuccessRateString())
	fmt.Fprintf(w, "Elapsed:      %s\n", r.Elapsed().Round(time.Millisecond))
	switch {
	case r.Stopped:
		fmt.Fprintln(w, "Run stopped; archive skipped.")
	case res.ArchiveErr != nil:
		fmt.Fprintf(w, "Archive failed: %v\n", res.ArchiveErr)
	case res.Archive != nil:
		fmt.Fprintf(w, "Archive:      %s (%d bytes)\n", res.Archive.ArchivePath, res.Archive.SizeBytes)
	}
	if res.DeliveryErr != nil {
		fmt.Fprintf(w, "Delivery failed: %v\n", res.DeliveryErr)
	} else if res.Delivered {
		fmt.Fprintln(w, "Archive delivered.")
	}
}
