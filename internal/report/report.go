// Package report writes the per-run summary files into the session folder.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-archiver/internal/crawler"
)

const (
	// JSONFileName is the machine-readable run summary.
	JSONFileName = "scraping_report.json"
	// IndexFileName is the Markdown table of contents.
	IndexFileName = "README.md"
)

// Document is the JSON layout of scraping_report.json.
type Document struct {
	SessionInfo SessionInfo       `json:"session_info"`
	Statistics  Statistics        `json:"statistics"`
	URLs        URLs              `json:"urls"`
	Failures    map[string]string `json:"failures"`
	Settings    Settings          `json:"settings"`
}

// SessionInfo describes the run.
type SessionInfo struct {
	Timestamp      string  `json:"timestamp"`
	RunID          string  `json:"run_id"`
	MainURL        string  `json:"main_url"`
	ElementID      string  `json:"element_id"`
	ExportFormat   string  `json:"export_format"`
	ScrapingDepth  string  `json:"scraping_depth"`
	SessionFolder  string  `json:"session_folder"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Stopped        bool    `json:"stopped"`
}

// Statistics are the run counters.
type Statistics struct {
	TotalScraped    int    `json:"total_scraped"`
	TotalFailed     int    `json:"total_failed"`
	TotalFoundLinks int    `json:"total_found_links"`
	SuccessRate     string `json:"success_rate"`
}

// URLs lists outcomes in processing order.
type URLs struct {
	ScrapedURLs []string `json:"scraped_urls"`
	FailedURLs  []string `json:"failed_urls"`
}

// Settings snapshots the cleaning and export options.
type Settings struct {
	RemoveHeader   bool     `json:"remove_header"`
	RemoveFooter   bool     `json:"remove_footer"`
	RemoveSidebar  bool     `json:"remove_sidebar"`
	RemoveAds      bool     `json:"remove_ads"`
	RemoveSocial   bool     `json:"remove_social"`
	RemoveComments bool     `json:"remove_comments"`
	ExtraSelectors []string `json:"extra_selectors"`
	PDFPageSize    string   `json:"pdf_page_size,omitempty"`
	PDFOrientation string   `json:"pdf_orientation,omitempty"`
}

// Build maps a RunReport onto the JSON document.
func Build(r crawler.RunReport) Document {
	failures := make(map[string]string, len(r.Failed))
	for _, f := range r.Failed {
		failures[f.URL] = f.Reason
	}
	extra := r.Cleaning.ExtraSelectors
	if extra == nil {
		extra = []string{}
	}
	settings := Settings{
		RemoveHeader:   r.Cleaning.RemoveHeader,
		RemoveFooter:   r.Cleaning.RemoveFooter,
		RemoveSidebar:  r.Cleaning.RemoveSidebar,
		RemoveAds:      r.Cleaning.RemoveAds,
		RemoveSocial:   r.Cleaning.RemoveSocial,
		RemoveComments: r.Cleaning.RemoveComments,
		ExtraSelectors: extra,
	}
	if r.Export.Format.Includes(crawler.FormatPDF) {
		settings.PDFPageSize = r.Export.PDF.PageSize
		settings.PDFOrientation = string(r.Export.PDF.Orientation)
	}
	return Document{
		SessionInfo: SessionInfo{
			Timestamp:      r.StartedAt.Format(time.RFC3339),
			RunID:          r.RunID,
			MainURL:        r.SeedURL,
			ElementID:      r.ElementSelector,
			ExportFormat:   string(r.Export.Format),
			ScrapingDepth:  r.MaxDepth.String(),
			SessionFolder:  r.SessionDir,
			ElapsedSeconds: r.Elapsed().Seconds(),
			Stopped:        r.Stopped,
		},
		Statistics: Statistics{
			TotalScraped:    len(r.Scraped),
			TotalFailed:     len(r.Failed),
			TotalFoundLinks: r.DiscoveredLinks,
			SuccessRate:     r.SuccessRateString(),
		},
		URLs: URLs{
			ScrapedURLs: r.ScrapedURLs(),
			FailedURLs:  r.FailedURLs(),
		},
		Failures: failures,
		Settings: settings,
	}
}

// WriteJSON stores scraping_report.json in folder.
func WriteJSON(folder string, r crawler.RunReport) error {
	payload, err := json.MarshalIndent(Build(r), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	target := filepath.Join(folder, JSONFileName)
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return fmt.Errorf("%w: write report %s: %w", crawler.ErrPersistence, target, err)
	}
	return nil
}

// Writer emits every summary file that applies to a run.
type Writer struct {
	logger *zap.Logger
}

// NewWriter returns a Writer.
func NewWriter(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger}
}

// Write stores the JSON report and, for Markdown exports, the index. Failures
// are logged and never change the run outcome; the written file names are
// returned.
func (w *Writer) Write(r crawler.RunReport) []string {
	var written []string
	if err := WriteJSON(r.SessionDir, r); err != nil {
		w.logger.Warn("run report not written", zap.Error(err))
	} else {
		written = append(written, JSONFileName)
	}
	if !r.Export.Format.Includes(crawler.FormatMarkdown) {
		return written
	}
	if err := WriteIndex(r.SessionDir, r); err != nil {
		w.logger.Warn("index not written", zap.Error(err))
	} else {
		written = append(written, IndexFileName)
	}
	return written
}
