package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/JakeFAU/site-archiver/internal/crawler"
)

// WriteIndex stores README.md linking every scraped page's Markdown file.
func WriteIndex(folder string, r crawler.RunReport) error {
	target := filepath.Join(folder, IndexFileName)
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: create index: %w", crawler.ErrPersistence, err)
	}
	if err := renderIndex(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: render index: %w", crawler.ErrPersistence, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close index: %w", crawler.ErrPersistence, err)
	}
	return nil
}

func renderIndex(w io.Writer, r crawler.RunReport) error {
	scraped := append([]crawler.Outcome(nil), r.Scraped...)
	slices.SortFunc(scraped, func(a, b crawler.Outcome) int {
		return strings.Compare(a.URL, b.URL)
	})

	md := markdown.NewMarkdown(w)
	md.H1("Documentation Index")
	md.PlainText("")
	md.PlainTextf("**Source:** %s  ", r.SeedURL)
	md.PlainTextf("**Date:** %s  ", r.StartedAt.Format("2006-01-02 15:04:05"))
	md.PlainTextf("**Pages:** %d", len(r.Scraped))
	md.PlainText("")
	md.H2("Pages")
	md.PlainText("")

	var entries []string
	for _, o := range scraped {
		if file := markdownFile(o.Files); file != "" {
			entries = append(entries, fmt.Sprintf("[%s](./%s)", o.URL, file))
		}
	}
	if len(entries) == 0 {
		md.PlainText("No pages were saved as Markdown.")
	} else {
		md.OrderedList(entries...)
	}
	md.PlainText("")

	if len(r.Failed) > 0 {
		md.H2("Failed Pages")
		md.PlainText("")
		failed := make([]string, 0, len(r.Failed))
		for _, o := range r.Failed {
			failed = append(failed, fmt.Sprintf("%s: %s", o.URL, o.Reason))
		}
		md.BulletList(failed...)
		md.PlainText("")
	}
	return md.Build()
}

func markdownFile(files []string) string {
	for _, f := range files {
		if strings.HasSuffix(f, ".md") {
			return f
		}
	}
	return ""
}
