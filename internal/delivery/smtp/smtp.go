// Package smtp mails finished archives as attachments over STARTTLS.
package smtp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-archiver/internal/crawler"
	"github.com/JakeFAU/site-archiver/internal/delivery"
)

const (
	// DefaultHost is used when SMTP_HOST is unset.
	DefaultHost = "smtp.gmail.com"
	// DefaultPort is the STARTTLS submission port.
	DefaultPort = 587
	bytesPerMiB = 1024 * 1024
)

// Config holds the transport credentials.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Recipient is used when Notify receives an empty recipient. Falls back to
	// Username.
	Recipient string
}

// ConfigFromEnv reads SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASS and SMTP_TO.
func ConfigFromEnv(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Config{
		Host:      strings.TrimSpace(getenv("SMTP_HOST")),
		Port:      DefaultPort,
		Username:  strings.TrimSpace(getenv("SMTP_USER")),
		Password:  getenv("SMTP_PASS"),
		Recipient: strings.TrimSpace(getenv("SMTP_TO")),
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if raw := strings.TrimSpace(getenv("SMTP_PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("%w: SMTP_PORT %q is not a valid port", crawler.ErrConfiguration, raw)
		}
		cfg.Port = port
	}
	return cfg, nil
}

// Configured reports whether credentials are present.
func (c Config) Configured() bool {
	return c.Username != "" && c.Password != ""
}

// sender is the part of *mail.Client used to deliver messages.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Notifier mails archives through an SMTP relay.
type Notifier struct {
	cfg    Config
	clock  crawler.Clock
	logger *zap.Logger
	// dial builds the transport lazily so a skipped notifier never touches the network.
	dial func(Config) (sender, error)
}

// New returns an SMTP notifier.
func New(cfg Config, clock crawler.Clock, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{cfg: cfg, clock: clock, logger: logger, dial: newClient}
}

func newClient(cfg Config) (sender, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("build smtp client: %w", err)
	}
	return client, nil
}

// Name implements delivery.Notifier.
func (n *Notifier) Name() string { return "smtp" }

// Notify sends archivePath to recipient. Missing credentials yield
// delivery.ErrSkipped.
func (n *Notifier) Notify(ctx context.Context, archivePath, recipient string) error {
	if !n.cfg.Configured() {
		return fmt.Errorf("%w: SMTP_USER/SMTP_PASS not set", delivery.ErrSkipped)
	}
	if recipient == "" {
		recipient = n.cfg.Recipient
	}
	if recipient == "" {
		recipient = n.cfg.Username
	}
	msg, err := n.buildMessage(archivePath, recipient)
	if err != nil {
		return err
	}
	client, err := n.dial(n.cfg)
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send archive mail: %w", err)
	}
	n.logger.Info("archive mailed", zap.String("to", recipient), zap.String("archive", archivePath))
	return nil
}

func (n *Notifier) buildMessage(archivePath, recipient string) (*mail.Msg, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	fileName := filepath.Base(archivePath)
	project := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.Username); err != nil {
		return nil, fmt.Errorf("%w: sender %q: %w", crawler.ErrConfiguration, n.cfg.Username, err)
	}
	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("%w: recipient %q: %w", crawler.ErrConfiguration, recipient, err)
	}
	msg.Subject("Web scraping results - " + fileName)
	msg.SetBodyString(mail.TypeTextPlain, messageBody(project, fileName, n.now(), info.Size()))
	msg.AttachFile(archivePath, mail.WithFileName(fileName))
	return msg, nil
}

func messageBody(project, fileName string, at time.Time, size int64) string {
	var b strings.Builder
	b.WriteString("The web scraping run has finished.\n\n")
	fmt.Fprintf(&b, "Project: %s\n", project)
	fmt.Fprintf(&b, "File: %s\n", fileName)
	fmt.Fprintf(&b, "Date: %s\n", at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Size: %.2f MiB\n", float64(size)/bytesPerMiB)
	return b.String()
}

func (n *Notifier) now() time.Time {
	if n.clock == nil {
		return time.Now().UTC()
	}
	return n.clock.Now()
}
