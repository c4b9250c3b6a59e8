// Package config loads and validates archiver configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/site-archiver/internal/crawler"
	"github.com/JakeFAU/site-archiver/internal/export/pdf"
)

// EnvPrefix namespaces environment overrides, e.g. ARCHIVER_CRAWL_URL.
const EnvPrefix = "ARCHIVER"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Clean    CleanConfig    `mapstructure:"clean"`
	PDF      PDFConfig      `mapstructure:"pdf"`
	Session  SessionConfig  `mapstructure:"session"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Records  RecordsConfig  `mapstructure:"records"`
	Status   StatusConfig   `mapstructure:"status"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlConfig describes one crawl.
type CrawlConfig struct {
	URL       string `mapstructure:"url"`
	Element   string `mapstructure:"element"`
	MaxDepth  string `mapstructure:"max_depth"`
	Format    string `mapstructure:"format"`
	OutputDir string `mapstructure:"output_dir"`
	// Delay is the politeness pause between pages. Zero disables it.
	Delay     time.Duration `mapstructure:"delay"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// CleanConfig toggles boilerplate removal.
type CleanConfig struct {
	Header         bool     `mapstructure:"header"`
	Footer         bool     `mapstructure:"footer"`
	Sidebar        bool     `mapstructure:"sidebar"`
	Ads            bool     `mapstructure:"ads"`
	Social         bool     `mapstructure:"social"`
	Comments       bool     `mapstructure:"comments"`
	ExtraSelectors []string `mapstructure:"extra_selectors"`
}

// PDFConfig sets page layout and the Chrome renderer.
type PDFConfig struct {
	PageSize      string        `mapstructure:"page_size"`
	Orientation   string        `mapstructure:"orientation"`
	MarginInches  float64       `mapstructure:"margin_inches"`
	MaxParallel   int           `mapstructure:"max_parallel"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`
	ChromePath    string        `mapstructure:"chrome_path"`
}

// SessionConfig points at an exported cookie file.
type SessionConfig struct {
	CookieFile string `mapstructure:"cookie_file"`
}

// DeliveryConfig selects where archives go. SMTP credentials come from the
// SMTP_* environment variables.
type DeliveryConfig struct {
	Email     bool   `mapstructure:"email"`
	Recipient string `mapstructure:"recipient"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// RecordsConfig selects the archive ledger backend. An empty DSN keeps records
// in memory.
type RecordsConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// StatusConfig enables the status API when Addr is set.
type StatusConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// FlagKeys maps CLI flag names onto configuration keys.
var FlagKeys = map[string]string{
	"url":             "crawl.url",
	"element":         "crawl.element",
	"depth":           "crawl.max_depth",
	"format":          "crawl.format",
	"output":          "crawl.output_dir",
	"delay":           "crawl.delay",
	"timeout":         "crawl.timeout",
	"user-agent":      "crawl.user_agent",
	"keep-header":     "clean.header",
	"keep-footer":     "clean.footer",
	"keep-sidebar":    "clean.sidebar",
	"keep-ads":        "clean.ads",
	"keep-social":     "clean.social",
	"keep-comments":   "clean.comments",
	"extra-selectors": "clean.extra_selectors",
	"page-size":       "pdf.page_size",
	"orientation":     "pdf.orientation",
	"margin":          "pdf.margin_inches",
	"chrome-path":     "pdf.chrome_path",
	"cookies":         "session.cookie_file",
	"email":           "delivery.email",
	"to":              "delivery.recipient",
	"gcs-bucket":      "delivery.gcs_bucket",
	"status-addr":     "status.addr",
	"dev":             "logging.development",
	"log-level":       "logging.level",
}

// invertedFlags are "keep-*" switches that clear the matching clean.* key.
var invertedFlags = map[string]bool{
	"keep-header":   true,
	"keep-footer":   true,
	"keep-sidebar":  true,
	"keep-ads":      true,
	"keep-social":   true,
	"keep-comments": true,
}

// Load builds a Config from defaults, the optional file at path, the
// environment and any changed flags, in increasing precedence.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read config: %w", crawler.ErrConfiguration, err)
		}
	}
	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: unmarshal config: %w", crawler.ErrConfiguration, err)
	}
	if len(cfg.Clean.ExtraSelectors) == 1 {
		// Environment and flag values arrive as one comma separated string.
		cfg.Clean.ExtraSelectors = crawler.ParseSelectorList(cfg.Clean.ExtraSelectors[0])
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := FlagKeys[f.Name]
		if !ok || !f.Changed || bindErr != nil {
			return
		}
		if invertedFlags[f.Name] {
			keep, err := flags.GetBool(f.Name)
			if err != nil {
				bindErr = fmt.Errorf("%w: flag --%s: %w", crawler.ErrConfiguration, f.Name, err)
				return
			}
			v.Set(key, !keep)
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("%w: bind flag --%s: %w", crawler.ErrConfiguration, f.Name, err)
		}
	})
	return bindErr
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.max_depth", "2")
	v.SetDefault("crawl.format", string(crawler.FormatBoth))
	v.SetDefault("crawl.output_dir", "output")
	v.SetDefault("crawl.delay", crawler.DefaultPolitenessDelay)
	v.SetDefault("crawl.timeout", 15*time.Second)
	v.SetDefault("crawl.user_agent", "")
	clean := crawler.DefaultCleaningPolicy()
	v.SetDefault("clean.header", clean.RemoveHeader)
	v.SetDefault("clean.footer", clean.RemoveFooter)
	v.SetDefault("clean.sidebar", clean.RemoveSidebar)
	v.SetDefault("clean.ads", clean.RemoveAds)
	v.SetDefault("clean.social", clean.RemoveSocial)
	v.SetDefault("clean.comments", clean.RemoveComments)
	v.SetDefault("clean.extra_selectors", []string{})
	v.SetDefault("pdf.page_size", "A4")
	v.SetDefault("pdf.orientation", string(crawler.Portrait))
	v.SetDefault("pdf.margin_inches", 0.75)
	v.SetDefault("pdf.max_parallel", 1)
	v.SetDefault("pdf.render_timeout", 60*time.Second)
	v.SetDefault("delivery.email", true)
	v.SetDefault("delivery.gcs_prefix", "archives")
	v.SetDefault("records.table", "archive_records")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawl.URL) == "" {
		return fmt.Errorf("%w: crawl.url is required", crawler.ErrConfiguration)
	}
	if strings.TrimSpace(c.Crawl.Element) == "" {
		return fmt.Errorf("%w: crawl.element is required", crawler.ErrConfiguration)
	}
	if strings.TrimSpace(c.Crawl.OutputDir) == "" {
		return fmt.Errorf("%w: crawl.output_dir is required", crawler.ErrConfiguration)
	}
	if _, err := crawler.ParseMaxDepth(c.Crawl.MaxDepth); err != nil {
		return err
	}
	format, err := crawler.ParseExportFormat(c.Crawl.Format)
	if err != nil {
		return err
	}
	if c.Crawl.Delay < 0 {
		return fmt.Errorf("%w: crawl.delay must be >= 0", crawler.ErrConfiguration)
	}
	if c.Crawl.Timeout <= 0 {
		return fmt.Errorf("%w: crawl.timeout must be > 0", crawler.ErrConfiguration)
	}
	if format.Includes(crawler.FormatPDF) {
		if _, _, ok := pdf.PaperSize(c.PDF.PageSize); !ok {
			return fmt.Errorf("%w: pdf.page_size %q is not supported", crawler.ErrConfiguration, c.PDF.PageSize)
		}
		if _, err := parseOrientation(c.PDF.Orientation); err != nil {
			return err
		}
		if c.PDF.MarginInches < 0 {
			return fmt.Errorf("%w: pdf.margin_inches must be >= 0", crawler.ErrConfiguration)
		}
		if c.PDF.MaxParallel < 0 {
			return fmt.Errorf("%w: pdf.max_parallel must be >= 0", crawler.ErrConfiguration)
		}
	}
	return nil
}

// MaxDepth returns the parsed depth limit.
func (c Config) MaxDepth() crawler.MaxDepth {
	depth, _ := crawler.ParseMaxDepth(c.Crawl.MaxDepth)
	return depth
}

// Cleaning returns the cleaning policy.
func (c Config) Cleaning() crawler.CleaningPolicy {
	return crawler.CleaningPolicy{
		RemoveHeader:   c.Clean.Header,
		RemoveFooter:   c.Clean.Footer,
		RemoveSidebar:  c.Clean.Sidebar,
		RemoveAds:      c.Clean.Ads,
		RemoveSocial:   c.Clean.Social,
		RemoveComments: c.Clean.Comments,
		ExtraSelectors: append([]string(nil), c.Clean.ExtraSelectors...),
	}
}

// Export returns the export selection.
func (c Config) Export() crawler.ExportConfig {
	format, _ := crawler.ParseExportFormat(c.Crawl.Format)
	orientation, _ := parseOrientation(c.PDF.Orientation)
	return crawler.ExportConfig{
		Format: format,
		PDF: crawler.PDFOptions{
			PageSize:     strings.ToUpper(strings.TrimSpace(c.PDF.PageSize)),
			Orientation:  orientation,
			MarginInches: c.PDF.MarginInches,
		},
	}
}

// PolitenessDelay converts crawl.delay into the controller's convention where
// a negative value disables the pause.
func (c Config) PolitenessDelay() time.Duration {
	if c.Crawl.Delay == 0 {
		return -1
	}
	return c.Crawl.Delay
}

func parseOrientation(raw string) (crawler.Orientation, error) {
	switch o := crawler.Orientation(strings.ToLower(strings.TrimSpace(raw))); o {
	case crawler.Portrait, crawler.Landscape:
		return o, nil
	case "":
		return crawler.Portrait, nil
	default:
		return "", fmt.Errorf("%w: pdf.orientation %q must be portrait or landscape", crawler.ErrConfiguration, raw)
	}
}
