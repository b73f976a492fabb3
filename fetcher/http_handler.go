package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"pricewatch/config"
	"pricewatch/httputil"
	"pricewatch/models"
)

const maxPageBytes = 2 * 1024 * 1024

// HTTPHandler fetches a product page with a plain GET and extracts the
// snapshot with CSS selectors from the site config. When the direct fetch
// is blocked and a scrape-API key is configured, it retries through the
// scrape API before giving up.
type HTTPHandler struct {
	cfg          *config.SiteConfig
	client       *http.Client
	apiClient    *http.Client
	scrapeAPIKey string
}

func NewHTTPHandler(siteCfg *config.SiteConfig, fcfg *config.FetcherConfig, clients *httputil.Clients) *HTTPHandler {
	return &HTTPHandler{
		cfg:          siteCfg,
		client:       clients.Scraping,
		apiClient:    clients.API,
		scrapeAPIKey: fcfg.ScrapeAPIKey,
	}
}

func (h *HTTPHandler) ID() string {
	return h.cfg.ID
}

func (h *HTTPHandler) Fetch(ctx context.Context, productURL string) (*models.Snapshot, error) {
	body, err := h.fetchDirect(ctx, productURL)
	if err != nil && h.scrapeAPIKey != "" {
		log.Printf("Fetcher %s: direct fetch failed (%v), trying scrape API", h.cfg.ID, err)
		body, err = h.fetchViaScrapeAPI(ctx, productURL)
	}
	if err != nil {
		return nil, err
	}

	return h.parse(body)
}

func (h *HTTPHandler) fetchDirect(ctx context.Context, productURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", productURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

func (h *HTTPHandler) fetchViaScrapeAPI(ctx context.Context, productURL string) ([]byte, error) {
	params := url.Values{}
	params.Set("api_key", h.scrapeAPIKey)
	params.Set("url", productURL)
	params.Set("render_js", "false")

	apiURL := "https://app.scrapingbee.com/api/v1/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.apiClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("scrape api status %d: %s", resp.StatusCode, string(body[:min(200, len(body))]))
	}

	return body, nil
}

func (h *HTTPHandler) parse(body []byte) (*models.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	snap := &models.Snapshot{}
	sel := h.cfg.Selectors

	if sel.Price != "" {
		snap.RawPrice = NormalizePrice(doc.Find(sel.Price).First().Text())
	}
	if snap.RawPrice == "" {
		// Structured data is the most reliable fallback
		snap.RawPrice = extractJSONLDPrice(string(body))
	}

	if sel.Name != "" {
		snap.Name = strings.TrimSpace(doc.Find(sel.Name).First().Text())
	}

	if sel.Image != "" {
		img := doc.Find(sel.Image).First()
		if src, ok := img.Attr("src"); ok {
			snap.ImageURL = src
		} else if content, ok := img.Attr("content"); ok {
			snap.ImageURL = content
		}
	}

	if sel.Currency != "" {
		snap.Currency = strings.TrimSpace(doc.Find(sel.Currency).First().Text())
	}
	if snap.Currency == "" {
		if content, ok := doc.Find(`meta[itemprop="priceCurrency"]`).First().Attr("content"); ok {
			snap.Currency = strings.TrimSpace(content)
		}
	}
	if snap.Currency == "" {
		snap.Currency = extractJSONLDCurrency(string(body))
	}

	return snap, nil
}

// NormalizePrice strips currency symbols, whitespace and thousands
// separators from extracted price text, leaving digits and the decimal
// point. Returns an empty string when no digits survive, which the caller
// treats as a missing price.
func NormalizePrice(text string) string {
	var b strings.Builder
	hasDigit := false
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			hasDigit = true
		case r == '.':
			b.WriteRune(r)
		}
	}
	if !hasDigit {
		return ""
	}
	return b.String()
}

var (
	jsonLDPriceRegex    = regexp.MustCompile(`"price"\s*:\s*"?(\d+(?:\.\d+)?)"?`)
	jsonLDCurrencyRegex = regexp.MustCompile(`"priceCurrency"\s*:\s*"([A-Z]{3})"`)
)

func extractJSONLDPrice(html string) string {
	if matches := jsonLDPriceRegex.FindStringSubmatch(html); len(matches) > 1 {
		return matches[1]
	}
	return ""
}

func extractJSONLDCurrency(html string) string {
	if matches := jsonLDCurrencyRegex.FindStringSubmatch(html); len(matches) > 1 {
		return matches[1]
	}
	return ""
}
