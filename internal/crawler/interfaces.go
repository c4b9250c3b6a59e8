package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Fetcher retrieves a URL. Failures are reported as *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Cleaner strips boilerplate and selects the main content of a page.
type Cleaner interface {
	Clean(body []byte, policy CleaningPolicy) CleanedDocument
}

// Exporter writes the configured artifacts for a page.
type Exporter interface {
	Save(ctx context.Context, req SaveRequest) SaveResult
}

// LinkExtractor returns the same-origin links of a page, restricted to the
// element named by selector when it is non-empty.
type LinkExtractor interface {
	Extract(body []byte, baseURL, selector string) []string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// RunIDGenerator produces run identifiers.
type RunIDGenerator interface {
	NewRawID() (uuid.UUID, error)
}
