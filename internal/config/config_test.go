package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/JakeFAU/site-archiver/internal/crawler"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawl:
  url: https://docs.example.com/guide
  element: main-wrapper
  max_depth: unlimited
  format: markdown
  output_dir: /tmp/out
  delay: 500ms
  timeout: 30s
clean:
  sidebar: false
  extra_selectors: [".promo", "#cookie-banner"]
pdf:
  page_size: letter
  orientation: landscape
delivery:
  gcs_bucket: archives
records:
  dsn: postgres://localhost/archiver
status:
  addr: ":9090"
logging:
  development: true
  level: debug
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MaxDepth() != crawler.Unlimited {
		t.Fatalf("expected unlimited depth, got %v", cfg.MaxDepth())
	}
	if cfg.Crawl.Delay != 500*time.Millisecond || cfg.Crawl.Timeout != 30*time.Second {
		t.Fatalf("expected duration overrides, got %+v", cfg.Crawl)
	}
	policy := cfg.Cleaning()
	if policy.RemoveSidebar || !policy.RemoveHeader {
		t.Fatalf("expected sidebar kept and header removed: %+v", policy)
	}
	if len(policy.ExtraSelectors) != 2 || policy.ExtraSelectors[1] != "#cookie-banner" {
		t.Fatalf("expected extra selectors to load: %+v", policy.ExtraSelectors)
	}
	export := cfg.Export()
	if export.Format != crawler.FormatMarkdown || export.PDF.PageSize != "LETTER" || export.PDF.Orientation != crawler.Landscape {
		t.Fatalf("unexpected export config: %+v", export)
	}
	if cfg.Delivery.GCSBucket != "archives" || cfg.Delivery.GCSPrefix != "archives" {
		t.Fatalf("unexpected delivery config: %+v", cfg.Delivery)
	}
	if cfg.Records.Table != "archive_records" || cfg.Status.Addr != ":9090" {
		t.Fatalf("unexpected records/status config: %+v %+v", cfg.Records, cfg.Status)
	}
	if !cfg.Logging.Development || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	flags := newFlags()
	if err := flags.Parse([]string{"--url", "https://example.com", "--element", "content"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxDepth() != 2 {
		t.Fatalf("expected default depth 2, got %v", cfg.MaxDepth())
	}
	if cfg.Export().Format != crawler.FormatBoth {
		t.Fatalf("expected default format both, got %s", cfg.Export().Format)
	}
	if cfg.Export().PDF != crawler.DefaultPDFOptions() {
		t.Fatalf("expected default pdf options, got %+v", cfg.Export().PDF)
	}
	if got := cfg.Cleaning(); !reflect.DeepEqual(got, crawler.DefaultCleaningPolicy()) {
		t.Fatalf("expected default cleaning policy, got %+v", got)
	}
	if cfg.PolitenessDelay() != crawler.DefaultPolitenessDelay {
		t.Fatalf("expected default delay, got %v", cfg.PolitenessDelay())
	}
	if !cfg.Delivery.Email {
		t.Fatal("expected email delivery enabled by default")
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("crawl:\n  url: https://file.example\n  element: a\n  max_depth: 5\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	flags := newFlags()
	err := flags.Parse([]string{
		"--url", "https://flag.example",
		"--depth", "1",
		"--keep-footer",
		"--delay", "0s",
		"--extra-selectors", ".a,.b",
	})
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.URL != "https://flag.example" || cfg.Crawl.Element != "a" {
		t.Fatalf("expected flag url and file element, got %+v", cfg.Crawl)
	}
	if cfg.MaxDepth() != 1 {
		t.Fatalf("expected depth 1, got %v", cfg.MaxDepth())
	}
	if cfg.Cleaning().RemoveFooter {
		t.Fatal("expected --keep-footer to disable footer removal")
	}
	if cfg.PolitenessDelay() >= 0 {
		t.Fatalf("expected zero delay to disable the pause, got %v", cfg.PolitenessDelay())
	}
	if got := cfg.Cleaning().ExtraSelectors; len(got) != 2 || got[0] != ".a" {
		t.Fatalf("expected extra selectors from flag, got %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Crawl: CrawlConfig{
			URL:       "https://example.com",
			Element:   "main",
			MaxDepth:  "2",
			Format:    "both",
			OutputDir: "out",
			Delay:     time.Second,
			Timeout:   time.Second,
		},
		PDF: PDFConfig{PageSize: "A4", Orientation: "portrait", MarginInches: 0.75},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected base config to validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing url", mutate: func(c *Config) { c.Crawl.URL = "" }, want: "crawl.url"},
		{name: "missing element", mutate: func(c *Config) { c.Crawl.Element = " " }, want: "crawl.element"},
		{name: "missing output", mutate: func(c *Config) { c.Crawl.OutputDir = "" }, want: "crawl.output_dir"},
		{name: "bad depth", mutate: func(c *Config) { c.Crawl.MaxDepth = "deep" }, want: "max depth"},
		{name: "bad format", mutate: func(c *Config) { c.Crawl.Format = "docx" }, want: "export format"},
		{name: "negative delay", mutate: func(c *Config) { c.Crawl.Delay = -time.Second }, want: "crawl.delay"},
		{name: "zero timeout", mutate: func(c *Config) { c.Crawl.Timeout = 0 }, want: "crawl.timeout"},
		{name: "page size", mutate: func(c *Config) { c.PDF.PageSize = "B9" }, want: "pdf.page_size"},
		{name: "orientation", mutate: func(c *Config) { c.PDF.Orientation = "diagonal" }, want: "pdf.orientation"},
		{name: "margin", mutate: func(c *Config) { c.PDF.MarginInches = -1 }, want: "pdf.margin_inches"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateSkipsPDFChecksForMarkdown(t *testing.T) {
	t.Parallel()

	cfg := Config{Crawl: CrawlConfig{
		URL: "https://example.com", Element: "main", Format: "markdown",
		OutputDir: "out", Timeout: time.Second,
	}, PDF: PDFConfig{PageSize: "B9"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected markdown config to ignore pdf settings: %v", err)
	}
}

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("url", "", "")
	flags.String("element", "", "")
	flags.String("depth", "", "")
	flags.Duration("delay", 0, "")
	flags.Bool("keep-footer", false, "")
	flags.StringSlice("extra-selectors", nil, "")
	return flags
}
