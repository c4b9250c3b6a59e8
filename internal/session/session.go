// Package session supplies the cookies attached to every fetch. The browser
// cookie store itself is an external concern; providers here only hand back
// plain name/value/domain/path tuples.
package session

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Cookie is a single session cookie.
type Cookie struct {
	Name     string `yaml:"name" json:"name"`
	Value    string `yaml:"value" json:"value"`
	Domain   string `yaml:"domain" json:"domain"`
	Path     string `yaml:"path" json:"path"`
	Secure   bool   `yaml:"secure" json:"secure"`
	HTTPOnly bool   `yaml:"http_only" json:"http_only"`
}

// Provider returns the cookies applicable to a host.
type Provider interface {
	Cookies(ctx context.Context, host string) ([]Cookie, error)
}

// Empty yields no cookies; fetches run unauthenticated.
type Empty struct{}

// Cookies implements Provider.
func (Empty) Cookies(context.Context, string) ([]Cookie, error) {
	return nil, nil
}

// Static serves a fixed cookie list.
type Static []Cookie

// Cookies implements Provider.
func (s Static) Cookies(_ context.Context, host string) ([]Cookie, error) {
	return Filter(s, host), nil
}

// File reads cookies from a YAML or JSON file on every call. The file holds
// either a bare list or a document with a top-level "cookies" key.
type File struct {
	Path string
}

type cookieFile struct {
	Cookies []Cookie `yaml:"cookies"`
}

// Cookies implements Provider.
func (f File) Cookies(ctx context.Context, host string) ([]Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	cookies, err := parseCookies(data)
	if err != nil {
		return nil, fmt.Errorf("parse cookie file %s: %w", f.Path, err)
	}
	return Static(cookies).Cookies(ctx, host)
}

func parseCookies(data []byte) ([]Cookie, error) {
	var list []Cookie
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc cookieFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Cookies, nil
}

// Filter keeps cookies whose domain matches host. Cookies without a domain
// apply to every host.
func Filter(cookies []Cookie, host string) []Cookie {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	var out []Cookie
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		if MatchesDomain(c.Domain, host) {
			out = append(out, c)
		}
	}
	return out
}

// MatchesDomain reports whether a cookie scoped to domain is sent to host.
func MatchesDomain(domain, host string) bool {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return true
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// ToHTTP converts cookies for use with an http.CookieJar.
func ToHTTP(cookies []Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   strings.TrimPrefix(c.Domain, "."),
			Path:     path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out
}
