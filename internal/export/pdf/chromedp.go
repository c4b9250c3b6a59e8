// Package pdf renders cleaned HTML to PDF with headless Chrome.
package pdf

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/site-archiver/internal/crawler"
)

const defaultRenderTimeout = 60 * time.Second

// Config controls the Chrome allocator.
type Config struct {
	// MaxParallel caps concurrent renders; zero means unlimited.
	MaxParallel   int
	RenderTimeout time.Duration
	// ExecPath overrides Chrome discovery.
	ExecPath string
}

// paperSizes holds width x height in inches, portrait.
var paperSizes = map[string][2]float64{
	"A3":     {11.69, 16.54},
	"A4":     {8.27, 11.69},
	"A5":     {5.83, 8.27},
	"LETTER": {8.5, 11},
	"LEGAL":  {8.5, 14},
}

// PaperSize returns the portrait dimensions of a named page size.
func PaperSize(name string) (width, height float64, ok bool) {
	dims, ok := paperSizes[strings.ToUpper(strings.TrimSpace(name))]
	return dims[0], dims[1], ok
}

// Renderer prints documents through a shared Chrome allocator.
type Renderer struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp prepares an allocator. Chrome starts lazily on the first render.
func NewChromedp(cfg Config) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = defaultRenderTimeout
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the browser down.
func (r *Renderer) Close() {
	r.allocCancel()
}

// RenderPDF lays out body (an HTML fragment) and prints it. Relative
// references resolve against baseURL.
func (r *Renderer) RenderPDF(ctx context.Context, body, baseURL, title string, opts crawler.PDFOptions) ([]byte, error) {
	params, err := printParams(opts)
	if err != nil {
		return nil, err
	}
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	defer r.release()

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, r.cfg.RenderTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	document := wrapDocument(body, baseURL, title)
	var out []byte
	actions := []chromedp.Action{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, document).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := params.Do(ctx)
			if err != nil {
				return fmt.Errorf("print to pdf: %w", err)
			}
			out = buf
			return nil
		}),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	return out, nil
}

func printParams(opts crawler.PDFOptions) (*page.PrintToPDFParams, error) {
	size := opts.PageSize
	if size == "" {
		size = "A4"
	}
	width, height, ok := PaperSize(size)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported page size %q", crawler.ErrConfiguration, opts.PageSize)
	}
	margin := opts.MarginInches
	if margin <= 0 {
		margin = crawler.DefaultPDFOptions().MarginInches
	}
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithLandscape(opts.Orientation == crawler.Landscape).
		WithPaperWidth(width).
		WithPaperHeight(height).
		WithMarginTop(margin).
		WithMarginBottom(margin).
		WithMarginLeft(margin).
		WithMarginRight(margin), nil
}

func wrapDocument(body, baseURL, title string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\">")
	if baseURL != "" {
		fmt.Fprintf(&b, "<base href=\"%s\">", html.EscapeString(baseURL))
	}
	if title != "" {
		fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(title))
	}
	b.WriteString("<style>body{font-family:sans-serif;line-height:1.5}img{max-width:100%}pre{white-space:pre-wrap}</style>")
	b.WriteString("</head><body>")
	b.WriteString(body)
	b.WriteString("</body></html>")
	return b.String()
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pdf render slot wait canceled: %w", ctx.Err())
	}
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}
