package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/site-archiver/internal/crawler"
)

func TestTitleFromURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Docs > Getting Started", TitleFromURL("https://example.com/docs/getting-started/"))
	assert.Equal(t, "Api Reference", TitleFromURL("https://example.com/api_reference"))
	root := TitleFromURL("https://www.example.com/")
	assert.True(t, strings.HasPrefix(root, "Example"), root)
	assert.NotContains(t, strings.ToLower(root), "www")
}

func TestRenderMarkdownHeaderAndBody(t *testing.T) {
	t.Parallel()

	scraped := time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)
	doc := crawler.CleanedDocument{
		Title: "Install | Example",
		HTML: `<main><h2>Install</h2><p>Read the <a href="/docs/setup">setup guide</a> and ` +
			`<a href="">nothing</a>.</p><p>CDN: <a href="//cdn.example.net/x.js">x</a></p></main>`,
	}

	md, err := RenderMarkdown(doc, "https://example.com/docs/install", scraped)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(md, "---\n"))
	parts := strings.SplitN(md, "---\n", 3)
	require.Len(t, parts, 3)
	var fm frontMatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "Docs > Install", fm.Title)
	assert.Equal(t, "Install | Example", fm.PageTitle)
	assert.Equal(t, "https://example.com/docs/install", fm.URL)
	assert.Equal(t, "2025-05-06T07:08:09Z", fm.ScrapedAt)

	assert.Contains(t, md, "# Docs > Install\n")
	assert.Contains(t, md, "> **Source:** [https://example.com/docs/install](https://example.com/docs/install)")
	assert.Contains(t, md, "> **Scraped:** 2025-05-06 07:08:09")
	assert.Contains(t, md, "## Install")
	assert.Contains(t, md, "[setup guide](https://example.com/docs/setup)")
	assert.NotContains(t, md, "]()")
	assert.NotContains(t, md, "https://example.com//cdn")
	assert.NotContains(t, md, "\n\n\n")
}

func TestTidyMarkdown(t *testing.T) {
	t.Parallel()

	in := "a\n\n\n\nb\n| x | | |\n[empty]()\n[rel](/p/q)\n![img](/i.png)\n[abs](https://x.org/y)"
	out := tidyMarkdown(in, "https://example.com")
	assert.Equal(t,
		"a\n\nb\n| x |\nempty\n[rel](https://example.com/p/q)\n![img](https://example.com/i.png)\n[abs](https://x.org/y)",
		out)
}
