// Package extract discovers same-origin links inside a designated element.
package extract

import (
	"bytes"
	"net/url"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-archiver/internal/crawler"
)

var skippedPrefixes = []string{"#", "javascript:", "mailto:"}

// Extractor implements crawler.LinkExtractor.
type Extractor struct {
	logger *zap.Logger
}

// New returns an Extractor that logs degraded lookups.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns the sorted, de-duplicated, normalized same-origin links
// below the element named by selector, or the whole document when selector is
// empty. The base URL itself is never returned.
func (e *Extractor) Extract(body []byte, baseURL, selector string) []string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		e.logger.Warn("link extraction skipped: bad base url", zap.String("base_url", baseURL), zap.Error(err))
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("link extraction skipped: unparsable html", zap.String("base_url", baseURL), zap.Error(err))
		return nil
	}
	root := FindRoot(doc, selector)
	if root.Length() == 0 {
		e.logger.Warn("link container not found", zap.String("base_url", baseURL), zap.String("selector", selector))
		return nil
	}

	self, _ := crawler.NormalizeURL(baseURL)
	seen := make(map[string]struct{})
	root.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || hasSkippedPrefix(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if !crawler.SameOrigin(abs, base) {
			return
		}
		normalized, err := crawler.NormalizeURL(abs.String())
		if err != nil || normalized == self {
			return
		}
		seen[normalized] = struct{}{}
	})

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	slices.Sort(links)
	return links
}

// FindRoot resolves selector as an element id, then a class name, then a CSS
// query. Invalid CSS yields an empty selection.
func FindRoot(doc *goquery.Document, selector string) *goquery.Selection {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return doc.Selection
	}
	byID := doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("id", "") == selector
	})
	if byID.Length() > 0 {
		return byID.First()
	}
	byClass := doc.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return slices.Contains(strings.Fields(s.AttrOr("class", "")), selector)
	})
	if byClass.Length() > 0 {
		return byClass.First()
	}
	return doc.Find(selector).First()
}

func hasSkippedPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, prefix := range skippedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
