package crawler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FrontierEntry is a URL waiting to be processed together with its distance
// from the seed.
type FrontierEntry struct {
	URL   string
	Depth int
}

// MaxDepth bounds how far from the seed the crawl descends. Entries whose depth
// is greater than or equal to the limit are dropped. The zero value is
// unlimited.
type MaxDepth int

// Unlimited disables depth pruning.
const Unlimited MaxDepth = 0

// Allows reports whether an entry at depth may be processed.
func (m MaxDepth) Allows(depth int) bool {
	if m <= Unlimited {
		return true
	}
	return depth < int(m)
}

func (m MaxDepth) String() string {
	if m <= Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(int(m))
}

// ParseMaxDepth accepts a positive integer or "unlimited" (also "", "0", "-1").
func ParseMaxDepth(raw string) (MaxDepth, error) {
	value := strings.TrimSpace(strings.ToLower(raw))
	switch value {
	case "", "unlimited", "0", "-1":
		return Unlimited, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return Unlimited, fmt.Errorf("%w: max depth %q must be a positive integer or \"unlimited\"", ErrConfiguration, raw)
	}
	return MaxDepth(n), nil
}

// CleaningPolicy selects which page regions are stripped before export.
type CleaningPolicy struct {
	RemoveHeader   bool
	RemoveFooter   bool
	RemoveSidebar  bool
	RemoveAds      bool
	RemoveSocial   bool
	RemoveComments bool
	// ExtraSelectors are CSS selectors removed in addition to the catalog.
	ExtraSelectors []string
}

// DefaultCleaningPolicy removes every boilerplate category.
func DefaultCleaningPolicy() CleaningPolicy {
	return CleaningPolicy{
		RemoveHeader:   true,
		RemoveFooter:   true,
		RemoveSidebar:  true,
		RemoveAds:      true,
		RemoveSocial:   true,
		RemoveComments: true,
	}
}

// ParseSelectorList splits a comma separated selector string, trimming blanks.
func ParseSelectorList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ExportFormat names the artifact types written per page.
type ExportFormat string

const (
	FormatMarkdown ExportFormat = "markdown"
	FormatPDF      ExportFormat = "pdf"
	FormatBoth     ExportFormat = "both"
)

// ParseExportFormat validates a user supplied format name.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatMarkdown, FormatPDF, FormatBoth:
		return f, nil
	case "":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", ErrConfiguration, raw)
	}
}

// Formats expands FormatBoth into its concrete formats.
func (f ExportFormat) Formats() []ExportFormat {
	switch f {
	case FormatBoth:
		return []ExportFormat{FormatMarkdown, FormatPDF}
	case FormatMarkdown, FormatPDF:
		return []ExportFormat{f}
	default:
		return nil
	}
}

// Includes reports whether f writes target artifacts.
func (f ExportFormat) Includes(target ExportFormat) bool {
	for _, candidate := range f.Formats() {
		if candidate == target {
			return true
		}
	}
	return false
}

// Orientation of rendered PDF pages.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// PDFOptions controls PDF page layout.
type PDFOptions struct {
	PageSize    string
	Orientation Orientation
	// MarginInches applies to all four edges.
	MarginInches float64
}

// DefaultPDFOptions returns A4 portrait with 0.75in margins.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{PageSize: "A4", Orientation: Portrait, MarginInches: 0.75}
}

// ExportConfig is the per-run export selection.
type ExportConfig struct {
	Format ExportFormat
	PDF    PDFOptions
}

// Page is the result of a successful fetch.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// CleanedDocument is the boilerplate-free HTML handed to exporters.
type CleanedDocument struct {
	// HTML is the outer HTML of the selected main-content element.
	HTML string
	// Title is the document <title>, if any.
	Title string
	// Root names the selector that matched the main content, "body" when the
	// fallback was used.
	Root string
}

// SaveRequest describes a single page export.
type SaveRequest struct {
	URL       string
	IsSeed    bool
	Document  CleanedDocument
	Config    ExportConfig
	Folder    string
	FetchedAt time.Time
}

// FormatOutput is the outcome of writing one format.
type FormatOutput struct {
	Format ExportFormat
	// Path is relative to the session folder.
	Path string
	Err  error
}

// SaveResult aggregates the per-format outputs of a SaveRequest.
type SaveResult struct {
	Outputs []FormatOutput
}

// OK reports whether at least one requested format was written.
func (r SaveResult) OK() bool {
	for _, out := range r.Outputs {
		if out.Err == nil {
			return true
		}
	}
	return false
}

// Files lists the relative paths written successfully.
func (r SaveResult) Files() []string {
	var files []string
	for _, out := range r.Outputs {
		if out.Err == nil && out.Path != "" {
			files = append(files, out.Path)
		}
	}
	return files
}

// Err joins the per-format failures.
func (r SaveResult) Err() error {
	var errs []error
	for _, out := range r.Outputs {
		if out.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", out.Format, out.Err))
		}
	}
	if len(errs) == 0 && len(r.Outputs) == 0 {
		return fmt.Errorf("%w: no export formats selected", ErrPersistence)
	}
	return errors.Join(errs...)
}

// RunRequest is the input to Controller.Run.
type RunRequest struct {
	SeedURL         string
	ElementSelector string
	MaxDepth        MaxDepth
	Cleaning        CleaningPolicy
	Export          ExportConfig
	// SessionDir must already exist; all artifacts are written below it.
	SessionDir string
}

// Validate checks the request before any network activity.
func (r RunRequest) Validate() error {
	if strings.TrimSpace(r.SeedURL) == "" {
		return fmt.Errorf("%w: seed url is required", ErrConfiguration)
	}
	if strings.TrimSpace(r.ElementSelector) == "" {
		return fmt.Errorf("%w: element selector is required", ErrConfiguration)
	}
	if r.SessionDir == "" {
		return fmt.Errorf("%w: session dir is required", ErrConfiguration)
	}
	if len(r.Export.Format.Formats()) == 0 {
		return fmt.Errorf("%w: unknown export format %q", ErrConfiguration, r.Export.Format)
	}
	return nil
}

// Outcome records what happened to one processed URL.
type Outcome struct {
	URL    string
	Depth  int
	Files  []string
	Reason string
}

// RunReport summarizes a finished run.
type RunReport struct {
	RunID           string
	SeedURL         string
	ElementSelector string
	MaxDepth        MaxDepth
	Cleaning        CleaningPolicy
	Export          ExportConfig
	SessionDir      string
	StartedAt       time.Time
	FinishedAt      time.Time
	// Scraped and Failed are in processing order and never overlap.
	Scraped         []Outcome
	Failed          []Outcome
	DiscoveredLinks int
	Stopped         bool
}

// Elapsed is the wall time of the run.
func (r RunReport) Elapsed() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Processed is the number of URLs that were fetched or attempted.
func (r RunReport) Processed() int {
	return len(r.Scraped) + len(r.Failed)
}

// SuccessRate returns scraped/processed and false when nothing was processed.
func (r RunReport) SuccessRate() (float64, bool) {
	total := r.Processed()
	if total == 0 {
		return 0, false
	}
	return float64(len(r.Scraped)) / float64(total) * 100, true
}

// SuccessRateString renders the rate with one decimal, or "N/A".
func (r RunReport) SuccessRateString() string {
	rate, ok := r.SuccessRate()
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", rate)
}

// Succeeded reports whether the crawl produced at least one page.
func (r RunReport) Succeeded() bool {
	return len(r.Scraped) > 0
}

// ScrapedURLs lists successful URLs in processing order.
func (r RunReport) ScrapedURLs() []string {
	return outcomeURLs(r.Scraped)
}

// FailedURLs lists failed URLs in processing order.
func (r RunReport) FailedURLs() []string {
	return outcomeURLs(r.Failed)
}

func outcomeURLs(outcomes []Outcome) []string {
	urls := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		urls = append(urls, o.URL)
	}
	return urls
}
