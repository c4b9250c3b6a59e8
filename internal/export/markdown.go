package export

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/site-archiver/internal/crawler"
)

var (
	blankRuns      = regexp.MustCompile(`\n\s*\n\s*\n`)
	emptyTableCell = regexp.MustCompile(`\|(\s*\|)+`)
	emptyLink      = regexp.MustCompile(`\[([^\]]*)\]\(\)`)
	// rootRelative matches "](/path)" but not protocol-relative "](//host)".
	rootRelative = regexp.MustCompile(`\[([^\]]*)\]\((/(?:[^/)][^)]*)?)\)`)

	titleCaser = cases.Title(language.Und)
)

type frontMatter struct {
	Title     string `yaml:"title"`
	PageTitle string `yaml:"page_title,omitempty"`
	URL       string `yaml:"url"`
	ScrapedAt string `yaml:"scraped_at"`
}

// TitleFromURL builds a readable title from the URL path, or from the host
// when the path is empty.
func TitleFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return titleCaser.String(strings.TrimPrefix(u.Hostname(), "www."))
	}
	title := strings.ReplaceAll(path, "/", " > ")
	title = strings.NewReplacer("-", " ", "_", " ").Replace(title)
	return titleCaser.String(title)
}

// RenderMarkdown converts cleaned HTML to a Markdown document with front matter.
func RenderMarkdown(doc crawler.CleanedDocument, pageURL string, scrapedAt time.Time) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: page url: %w", crawler.ErrParse, err)
	}
	origin := crawler.Origin(u)

	body, err := htmltomarkdown.ConvertString(doc.HTML, converter.WithDomain(origin))
	if err != nil {
		return "", fmt.Errorf("%w: convert html: %w", crawler.ErrParse, err)
	}

	title := TitleFromURL(pageURL)
	fm, err := yaml.Marshal(frontMatter{
		Title:     title,
		PageTitle: doc.Title,
		URL:       pageURL,
		ScrapedAt: scrapedAt.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("marshal front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "> **Source:** [%s](%s)\n", pageURL, pageURL)
	fmt.Fprintf(&b, "> **Scraped:** %s\n\n", scrapedAt.Format("2006-01-02 15:04:05"))
	b.WriteString("---\n\n")
	b.WriteString(tidyMarkdown(body, origin))
	b.WriteString("\n")
	return b.String(), nil
}

func tidyMarkdown(md, origin string) string {
	md = blankRuns.ReplaceAllString(md, "\n\n")
	md = emptyTableCell.ReplaceAllString(md, "|")
	md = emptyLink.ReplaceAllString(md, "$1")
	md = rootRelative.ReplaceAllString(md, "[$1]("+origin+"$2)")
	return strings.TrimSpace(md)
}
