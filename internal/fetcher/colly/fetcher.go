// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-archiver/internal/crawler"
	"github.com/JakeFAU/site-archiver/internal/session"
)

const (
	// DefaultUserAgent mimics a desktop browser; some sites refuse bare clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 15 * time.Second

	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	acceptLanguageHeader = "en-US,en;q=0.5"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	jar           http.CookieJar
	cookies       session.Provider
	logger        *zap.Logger

	mu          sync.Mutex
	cookieHosts map[string]struct{}
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. A nil provider means unauthenticated fetches.
func New(cfg Config, cookies session.Provider, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cookies == nil {
		cookies = session.Empty{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	// Status codes are classified in OnResponse rather than by colly.
	c.ParseHTTPErrorResponse = true
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	jar, _ := cookiejar.New(nil)
	c.SetCookieJar(jar)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		jar:           jar,
		cookies:       cookies,
		logger:        logger,
		cookieHosts:   make(map[string]struct{}),
	}
}

// Fetch executes a single HTTP GET. Failures are returned as *crawler.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return crawler.Page{}, &crawler.FetchError{URL: rawURL, Kind: crawler.KindNetwork, Err: fmt.Errorf("invalid url: %w", err)}
	}
	f.loadCookies(ctx, u)

	var (
		result   crawler.Page
		fetchErr *crawler.FetchError
	)
	collector := f.buildCollector(rawURL, time.Now(), &result, &fetchErr)
	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return crawler.Page{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	rawURL string,
	start time.Time,
	result *crawler.Page,
	fetchErr **crawler.FetchError,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	f.configureCollectorHooks(collector, rawURL, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	rawURL string,
	start time.Time,
	result *crawler.Page,
	fetchErr **crawler.FetchError,
) {
	hooks.OnRequest(func(r *colly.Request) {
		setBrowserHeaders(r.Headers)
	})

	hooks.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode > 299 {
			*fetchErr = &crawler.FetchError{URL: rawURL, Kind: crawler.KindHTTPStatus, StatusCode: r.StatusCode}
			return
		}
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = crawler.Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		*fetchErr = classify(rawURL, status, err)
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr **crawler.FetchError) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return &crawler.FetchError{URL: rawURL, Kind: crawler.KindNetwork, Err: fmt.Errorf("colly fetch canceled: %w", ctx.Err())}
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return classify(rawURL, 0, fmt.Errorf("colly visit failed: %w", err))
		}
		return nil
	}
}

// loadCookies seeds the jar once per host from the session provider. Provider
// errors degrade to an unauthenticated fetch.
func (f *Fetcher) loadCookies(ctx context.Context, u *url.URL) {
	f.mu.Lock()
	_, done := f.cookieHosts[u.Host]
	f.cookieHosts[u.Host] = struct{}{}
	f.mu.Unlock()
	if done {
		return
	}
	cookies, err := f.cookies.Cookies(ctx, u.Hostname())
	if err != nil {
		f.logger.Warn("session cookies unavailable", zap.String("host", u.Host), zap.Error(err))
		return
	}
	if len(cookies) == 0 {
		return
	}
	f.jar.SetCookies(&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, session.ToHTTP(cookies))
	f.logger.Debug("session cookies loaded", zap.String("host", u.Host), zap.Int("count", len(cookies)))
}

func setBrowserHeaders(h *http.Header) {
	if h == nil {
		return
	}
	h.Set("Accept", acceptHeader)
	h.Set("Accept-Language", acceptLanguageHeader)
	h.Set("Upgrade-Insecure-Requests", "1")
}

func classify(rawURL string, status int, err error) *crawler.FetchError {
	if status != 0 && (status < 200 || status > 299) {
		return &crawler.FetchError{URL: rawURL, Kind: crawler.KindHTTPStatus, StatusCode: status, Err: err}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &crawler.FetchError{URL: rawURL, Kind: crawler.KindTimeout, Err: err}
	}
	return &crawler.FetchError{URL: rawURL, Kind: crawler.KindNetwork, Err: err}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
}
