package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL produces the key used for visited/queued membership.
// It lowercases the scheme and host, removes default ports and sorts query
// parameters. Fragments and trailing path slashes are dropped so that
// "https://example.com/a/#top" and "https://example.com/a" collapse.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", rawURL)
	}
	u.Host = canonicalHost(u)

	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")

	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	u.ForceQuery = false

	return u.String(), nil
}

// SameOrigin reports whether a and b share scheme and host. Default ports are
// ignored, so "https://example.com:443" matches "https://example.com".
func SameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && canonicalHost(a) == canonicalHost(b)
}

// canonicalHost lowercases u.Host and drops the scheme's default port.
func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Host)
	switch strings.ToLower(u.Scheme) {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}
	return host
}

// Origin returns "scheme://host" for u.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
