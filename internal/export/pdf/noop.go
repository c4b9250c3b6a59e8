package pdf

import (
	"context"
	"errors"

	"github.com/JakeFAU/site-archiver/internal/crawler"
)

// ErrUnavailable is returned when PDF output was requested without a browser.
var ErrUnavailable = errors.New("pdf renderer not configured")

// Noop fails every render.
type Noop struct{}

// RenderPDF always returns ErrUnavailable.
func (Noop) RenderPDF(context.Context, string, string, string, crawler.PDFOptions) ([]byte, error) {
	return nil, ErrUnavailable
}
