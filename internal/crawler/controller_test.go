package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/site-archiver/internal/progress"
)

// fakeSite serves bodies and links from maps and records fetch order.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string][]string
	missing map[string]bool
	fetched []string
	onFetch func(url string)
}

func (s *fakeSite) Fetch(ctx context.Context, rawURL string) (Page, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, rawURL)
	hook := s.onFetch
	s.mu.Unlock()
	if hook != nil {
		hook(rawURL)
	}
	if err := ctx.Err(); err != nil {
		return Page{}, &FetchError{URL: rawURL, Kind: KindNetwork, Err: err}
	}
	if _, ok := s.pages[rawURL]; !ok || s.missing[rawURL] {
		return Page{}, &FetchError{URL: rawURL, Kind: KindHTTPStatus, StatusCode: 404}
	}
	return Page{URL: rawURL, StatusCode: 200, Body: []byte("<html>" + rawURL + "</html>")}, nil
}

func (s *fakeSite) Extract(body []byte, baseURL, _ string) []string {
	return append([]string(nil), s.pages[baseURL]...)
}

func (s *fakeSite) Fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

type passthroughCleaner struct{}

func (passthroughCleaner) Clean(body []byte, _ CleaningPolicy) CleanedDocument {
	return CleanedDocument{HTML: string(body), Root: "body"}
}

type fakeExporter struct {
	failing map[string]bool
	saved   []SaveRequest
}

func (e *fakeExporter) Save(ctx context.Context, req SaveRequest) SaveResult {
	e.saved = append(e.saved, req)
	if err := ctx.Err(); err != nil {
		return SaveResult{Outputs: []FormatOutput{{Format: FormatMarkdown, Err: err}}}
	}
	if e.failing[req.URL] {
		return SaveResult{Outputs: []FormatOutput{{Format: FormatMarkdown, Err: errors.New("disk full")}}}
	}
	return SaveResult{Outputs: []FormatOutput{{Format: FormatMarkdown, Path: fmt.Sprintf("page_%d.md", len(e.saved))}}}
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixedIDs struct{ id uuid.UUID }

func (g fixedIDs) NewRawID() (uuid.UUID, error) { return g.id, nil }

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *recordingEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

// MockExtractor is a mock implementation of the LinkExtractor interface.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(body []byte, baseURL, selector string) []string {
	args := m.Called(body, baseURL, selector)
	return args.Get(0).([]string)
}

func newTestController(site *fakeSite, exporter *fakeExporter, extractor LinkExtractor, emitter progress.Emitter) *Controller {
	if extractor == nil {
		extractor = site
	}
	return NewController(
		Config{PolitenessDelay: -1},
		site,
		passthroughCleaner{},
		exporter,
		extractor,
		emitter,
		fixedClock{now: time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)},
		fixedIDs{id: uuid.MustParse("00000000-0000-0000-0000-00000000abcd")},
		nil,
	)
}

func baseRequest(t *testing.T, depth MaxDepth) RunRequest {
	return RunRequest{
		SeedURL:         "https://example.com/",
		ElementSelector: "nav",
		MaxDepth:        depth,
		Cleaning:        DefaultCleaningPolicy(),
		Export:          ExportConfig{Format: FormatMarkdown, PDF: DefaultPDFOptions()},
		SessionDir:      t.TempDir(),
	}
}

func treeSite() *fakeSite {
	return &fakeSite{pages: map[string][]string{
		"https://example.com":        {"https://example.com/a", "https://example.com/b"},
		"https://example.com/a":      {"https://example.com/a/deep"},
		"https://example.com/b":      {"https://example.com/b/deep"},
		"https://example.com/a/deep": nil,
		"https://example.com/b/deep": nil,
	}}
}

func TestControllerDepthLimitVisitsSeedAndChildren(t *testing.T) {
	site := treeSite()
	ctrl := newTestController(site, &fakeExporter{}, nil, nil)

	report, err := ctrl.Run(context.Background(), baseRequest(t, 2))
	require.NoError(t, err)

	require.Equal(t, []string{"https://example.com", "https://example.com/a", "https://example.com/b"}, site.Fetched())
	require.Equal(t, site.Fetched(), report.ScrapedURLs())
	require.Empty(t, report.Failed)
	require.Equal(t, 2, report.DiscoveredLinks, "children at the limit do not extract links")
}

func TestControllerDepthOneFetchesSeedOnly(t *testing.T) {
	site := treeSite()
	ctrl := newTestController(site, &fakeExporter{}, nil, nil)

	report, err := ctrl.Run(context.Background(), baseRequest(t, 1))
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com"}, site.Fetched())
	require.Equal(t, 0, report.DiscoveredLinks)
}

func TestControllerUnlimitedDepthVisitsEverything(t *testing.T) {
	site := treeSite()
	ctrl := newTestController(site, &fakeExporter{}, nil, nil)

	report, err := ctrl.Run(context.Background(), baseRequest(t, Unlimited))
	require.NoError(t, err)
	require.Len(t, site.Fetched(), 5)
	require.Equal(t, 4, report.DiscoveredLinks)
	require.Equal(t, "100.0%", report.SuccessRateString())
}

func TestControllerNeverFetchesAtOrBeyondLimit(t *testing.T) {
	for _, limit := range []MaxDepth{1, 2, 3} {
		t.Run(limit.String(), func(t *testing.T) {
			site := treeSite()
			ctrl := newTestController(site, &fakeExporter{}, nil, nil)
			report, err := ctrl.Run(context.Background(), baseRequest(t, limit))
			require.NoError(t, err)
			for _, outcome := range append(report.Scraped, report.Failed...) {
				assert.Less(t, outcome.Depth, int(limit), outcome.URL)
			}
		})
	}
}

func TestControllerScrapedAndFailedPartitionProcessedURLs(t *testing.T) {
	site := &fakeSite{
		pages: map[string][]string{
			"https://example.com": {
				"https://example.com/ok",
				"https://example.com/missing",
				"https://example.com/unsaveable",
			},
			"https://example.com/ok":         {"https://example.com", "https://example.com/missing"},
			"https://example.com/unsaveable": {"https://example.com/after-save-failure"},
			"https://example.com/after-save-failure": nil,
		},
		missing: map[string]bool{"https://example.com/missing": true},
	}
	exporter := &fakeExporter{failing: map[string]bool{"https://example.com/unsaveable": true}}
	ctrl := newTestController(site, exporter, nil, nil)

	report, err := ctrl.Run(context.Background(), baseRequest(t, Unlimited))
	require.NoError(t, err)

	scraped := report.ScrapedURLs()
	failed := report.FailedURLs()
	for _, u := range scraped {
		require.NotContains(t, failed, u)
	}
	union := append(append([]string(nil), scraped...), failed...)
	fetched := site.Fetched()
	sort.Strings(union)
	sort.Strings(fetched)
	require.Equal(t, fetched, union)

	require.ElementsMatch(t, []string{"https://example.com/missing", "https://example.com/unsaveable"}, failed)
	require.Contains(t, scraped, "https://example.com/after-save-failure", "links are followed even when saving failed")
	require.Equal(t, "60.0%", report.SuccessRateString())

	for _, outcome := range report.Failed {
		require.NotEmpty(t, outcome.Reason)
	}
	require.True(t, report.Succeeded())
}

func TestControllerUsesSelectorOnlyForSeed(t *testing.T) {
	site := &fakeSite{pages: map[string][]string{
		"https://example.com":   nil,
		"https://example.com/a": nil,
	}}
	extractor := &MockExtractor{}
	extractor.On("Extract", mock.Anything, "https://example.com", "nav").Return([]string{"https://example.com/a"}).Once()
	extractor.On("Extract", mock.Anything, "https://example.com/a", "").Return([]string{"https://example.com"}).Once()

	ctrl := newTestController(site, &fakeExporter{}, extractor, nil)
	report, err := ctrl.Run(context.Background(), baseRequest(t, Unlimited))
	require.NoError(t, err)

	extractor.AssertExpectations(t)
	require.Equal(t, []string{"https://example.com", "https://example.com/a"}, site.Fetched())
	require.Equal(t, 2, report.DiscoveredLinks)
}

func TestControllerMarksSeedExports(t *testing.T) {
	site := treeSite()
	exporter := &fakeExporter{}
	ctrl := newTestController(site, exporter, nil, nil)

	_, err := ctrl.Run(context.Background(), baseRequest(t, 2))
	require.NoError(t, err)
	require.Len(t, exporter.saved, 3)
	require.True(t, exporter.saved[0].IsSeed)
	require.False(t, exporter.saved[1].IsSeed)
	require.Equal(t, FormatMarkdown, exporter.saved[1].Config.Format)
}

func TestControllerStopFinishesInFlightPage(t *testing.T) {
	site := treeSite()
	ctrl := newTestController(site, &fakeExporter{}, nil, nil)
	site.onFetch = func(string) { ctrl.Stop() }

	report, err := ctrl.Run(context.Background(), baseRequest(t, Unlimited))
	require.NoError(t, err)
	require.True(t, report.Stopped)
	require.Equal(t, []string{"https://example.com"}, report.ScrapedURLs())
	require.Equal(t, 2, report.DiscoveredLinks)

	site.onFetch = nil
	report, err = ctrl.Run(context.Background(), baseRequest(t, 2))
	require.NoError(t, err)
	require.False(t, report.Stopped, "a new run clears an earlier stop request")
}

func TestControllerCancelledContextStopsBeforeFetching(t *testing.T) {
	site := treeSite()
	ctrl := newTestController(site, &fakeExporter{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := ctrl.Run(ctx, baseRequest(t, Unlimited))
	require.NoError(t, err)
	require.True(t, report.Stopped)
	require.Empty(t, site.Fetched())
	require.Equal(t, "N/A", report.SuccessRateString())
	require.False(t, report.Succeeded())
}

func TestControllerCancelDuringFetchKeepsPageAndMarksStopped(t *testing.T) {
	site := &fakeSite{pages: map[string][]string{"https://example.com": nil}}
	ctrl := newTestController(site, &fakeExporter{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	site.onFetch = func(string) { cancel() }

	report, err := ctrl.Run(ctx, baseRequest(t, Unlimited))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com"}, report.ScrapedURLs())
	assert.Empty(t, report.Failed)
	assert.True(t, report.Stopped, "a cancelled run is stopped even when the frontier drained")
}

func TestControllerSkipsDelayWhenOnlyDroppedEntriesRemain(t *testing.T) {
	site := treeSite()
	ctrl := newTestController(site, &fakeExporter{}, nil, nil)
	ctrl.cfg.PolitenessDelay = time.Millisecond
	var sleeps int
	ctrl.sleep = func(context.Context, time.Duration) bool {
		sleeps++
		return true
	}

	report, err := ctrl.Run(context.Background(), baseRequest(t, 2))
	require.NoError(t, err)
	require.Len(t, report.Scraped, 3)
	assert.Equal(t, 2, sleeps, "no pause after the last admissible page")
}

func TestControllerRejectsInvalidRequests(t *testing.T) {
	cases := map[string]func(*RunRequest){
		"missing seed":     func(r *RunRequest) { r.SeedURL = "" },
		"missing selector": func(r *RunRequest) { r.ElementSelector = " " },
		"missing folder":   func(r *RunRequest) { r.SessionDir = "" },
		"bad format":       func(r *RunRequest) { r.Export.Format = "docx" },
		"bad scheme":       func(r *RunRequest) { r.SeedURL = "ftp://example.com" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			site := treeSite()
			ctrl := newTestController(site, &fakeExporter{}, nil, nil)
			req := baseRequest(t, 2)
			mutate(&req)

			_, err := ctrl.Run(context.Background(), req)
			require.ErrorIs(t, err, ErrConfiguration)
			require.Empty(t, site.Fetched())
		})
	}
}

func TestControllerEmitsLifecycleEvents(t *testing.T) {
	site := treeSite()
	site.missing = map[string]bool{"https://example.com/b": true}
	emitter := &recordingEmitter{}
	ctrl := newTestController(site, &fakeExporter{}, nil, emitter)

	_, err := ctrl.Run(context.Background(), baseRequest(t, 2))
	require.NoError(t, err)

	events := emitter.events
	require.NotEmpty(t, events)
	require.Equal(t, progress.StageRunStart, events[0].Stage)
	last := events[len(events)-1]
	require.Equal(t, progress.StageRunDone, last.Stage)
	require.Equal(t, progress.Counters{Scraped: 2, Failed: 1, Discovered: 2}, last.Counters)

	var failed []progress.Event
	for _, evt := range events {
		require.NoError(t, evt.Validate())
		if evt.Stage == progress.StagePageFailed {
			failed = append(failed, evt)
		}
	}
	require.Len(t, failed, 1)
	require.Equal(t, "http status 404", failed[0].Note)
}
