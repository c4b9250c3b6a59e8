// Package clean strips boilerplate from fetched pages and selects the main
// content element.
package clean

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-archiver/internal/crawler"
)

// minMainContentChars is the text length a main-content candidate must exceed.
const minMainContentChars = 100

var (
	alwaysRemoved = []string{
		"script", "style", "noscript", "iframe", "embed", "object",
		"[hidden]", ".sr-only", ".visually-hidden",
	}
	headerSelectors = []string{
		"header", "nav", ".header", ".navigation", ".navbar", ".site-header",
		".main-header", ".top-bar", "#header", ".menu", ".main-menu", ".primary-menu",
	}
	footerSelectors = []string{
		"footer", ".footer", ".site-footer", ".main-footer", "#footer", ".page-footer", ".bottom-bar",
	}
	sidebarSelectors = []string{
		"aside", ".sidebar", ".side-bar", ".widget-area", "#sidebar", ".secondary", ".complementary",
	}
	adSelectors = []string{
		".ad", ".ads", ".advertisement", ".banner", ".promo", ".sponsor", ".google-ads",
		".adsense", `[class*="ad-"]`, `[id*="ad-"]`, ".adsbygoogle",
	}
	socialSelectors = []string{
		".social", ".share", ".sharing", ".social-media", ".share-buttons", ".social-icons", ".follow-us",
	}
	commentSelectors = []string{
		".comments", ".comment", "#comments", ".comment-section", ".disqus", ".fb-comments",
	}
	mainContentSelectors = []string{
		"main", "article", ".content", ".main-content", ".post-content", ".entry-content",
		".article-content", "#content", ".page-content", ".post", ".article", ".entry", `[role="main"]`,
	}
)

// Selectors returns the removal list implied by policy, in application order.
func Selectors(policy crawler.CleaningPolicy) []string {
	out := append([]string(nil), alwaysRemoved...)
	if policy.RemoveHeader {
		out = append(out, headerSelectors...)
	}
	if policy.RemoveFooter {
		out = append(out, footerSelectors...)
	}
	if policy.RemoveSidebar {
		out = append(out, sidebarSelectors...)
	}
	if policy.RemoveAds {
		out = append(out, adSelectors...)
	}
	if policy.RemoveSocial {
		out = append(out, socialSelectors...)
	}
	if policy.RemoveComments {
		out = append(out, commentSelectors...)
	}
	return append(out, policy.ExtraSelectors...)
}

// Cleaner implements crawler.Cleaner.
type Cleaner struct {
	logger *zap.Logger
}

// New returns a Cleaner.
func New(logger *zap.Logger) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{logger: logger}
}

// Clean removes the selected regions and returns the main content. It never
// fails: unparsable markup is returned unchanged.
func (c *Cleaner) Clean(body []byte, policy crawler.CleaningPolicy) crawler.CleanedDocument {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("cleaning skipped: unparsable html", zap.Error(err))
		return crawler.CleanedDocument{HTML: string(body), Root: "document"}
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	for _, sel := range Selectors(policy) {
		if _, err := cascadia.Compile(sel); err != nil {
			c.logger.Warn("skipping invalid selector", zap.String("selector", sel), zap.Error(err))
			continue
		}
		doc.Find(sel).Remove()
	}

	root, name := mainContent(doc)
	if name == "body" || name == "document" {
		c.logger.Debug("no main content candidate; using fallback", zap.String("root", name))
	}
	out, err := goquery.OuterHtml(root)
	if err != nil {
		c.logger.Warn("serialize cleaned html failed", zap.Error(err))
		return crawler.CleanedDocument{HTML: string(body), Title: title, Root: "document"}
	}
	return crawler.CleanedDocument{HTML: out, Title: title, Root: name}
}

func mainContent(doc *goquery.Document) (*goquery.Selection, string) {
	for _, sel := range mainContentSelectors {
		candidate := doc.Find(sel).First()
		if candidate.Length() == 0 {
			continue
		}
		if visibleChars(candidate.Text()) > minMainContentChars {
			return candidate, sel
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body, "body"
	}
	return doc.Selection, "document"
}

// visibleChars counts runes with all whitespace removed, so indentation
// between elements never counts as content.
func visibleChars(text string) int {
	return utf8.RuneCountInString(strings.Join(strings.Fields(text), ""))
}
