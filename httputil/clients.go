package httputil

import (
	"net/http"
	"net/url"
	"time"
)

// Clients holds the two HTTP clients the daemon shares: one for fetching
// retailer pages (optionally proxied, redirects surfaced to the caller) and
// one for first-party APIs (Resend, Supabase, scrape API).
type Clients struct {
	Scraping *http.Client
	API      *http.Client
}

func NewClients(proxyURL string) *Clients {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}

	// Product URLs redirect freely (http to https, canonical slugs), so
	// the scraping client follows them.
	scraping := &http.Client{
		Timeout:   15 * time.Second,
		Transport: transport,
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}
