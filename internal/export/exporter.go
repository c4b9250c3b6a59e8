// Package export writes cleaned pages to the session folder as Markdown
// and/or PDF.
package export

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-archiver/internal/crawler"
)

// PDFRenderer prints an HTML fragment to PDF bytes.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, body, baseURL, title string, opts crawler.PDFOptions) ([]byte, error)
}

// Exporter implements crawler.Exporter.
type Exporter struct {
	pdf    PDFRenderer
	logger *zap.Logger
}

// New returns an Exporter. pdf may be nil when PDF output is never requested.
func New(pdf PDFRenderer, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{pdf: pdf, logger: logger}
}

// Save writes every format selected by req.Config. Each format succeeds or
// fails independently.
func (e *Exporter) Save(ctx context.Context, req crawler.SaveRequest) crawler.SaveResult {
	base := BaseName(req.URL, req.IsSeed)
	fetchedAt := req.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	var result crawler.SaveResult
	for _, format := range req.Config.Format.Formats() {
		out := crawler.FormatOutput{Format: format}
		if err := ctx.Err(); err != nil {
			out.Err = fmt.Errorf("%w: %w", crawler.ErrPersistence, err)
			result.Outputs = append(result.Outputs, out)
			continue
		}
		switch format {
		case crawler.FormatMarkdown:
			out.Path, out.Err = e.saveMarkdown(req, base, fetchedAt)
		case crawler.FormatPDF:
			out.Path, out.Err = e.savePDF(ctx, req, base)
		}
		if out.Err == nil {
			e.logger.Debug("page exported", zap.String("url", req.URL), zap.String("format", string(format)), zap.String("file", out.Path))
		}
		result.Outputs = append(result.Outputs, out)
	}
	return result
}

func (e *Exporter) saveMarkdown(req crawler.SaveRequest, base string, fetchedAt time.Time) (string, error) {
	md, err := RenderMarkdown(req.Document, req.URL, fetchedAt)
	if err != nil {
		return "", err
	}
	name, err := writeUnique(req.Folder, base, ".md", []byte(md))
	if err != nil {
		return "", fmt.Errorf("%w: %w", crawler.ErrPersistence, err)
	}
	return name, nil
}

func (e *Exporter) savePDF(ctx context.Context, req crawler.SaveRequest, base string) (string, error) {
	if e.pdf == nil {
		return "", fmt.Errorf("%w: pdf renderer not configured", crawler.ErrConfiguration)
	}
	baseURL := ""
	if u, err := url.Parse(req.URL); err == nil {
		baseURL = crawler.Origin(u) + "/"
	}
	title := req.Document.Title
	if title == "" {
		title = TitleFromURL(req.URL)
	}
	data, err := e.pdf.RenderPDF(ctx, req.Document.HTML, baseURL, title, req.Config.PDF)
	if err != nil {
		return "", fmt.Errorf("render pdf: %w", err)
	}
	name, err := writeUnique(req.Folder, base, ".pdf", data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", crawler.ErrPersistence, err)
	}
	return name, nil
}
