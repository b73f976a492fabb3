package fetcher

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"
	"pricewatch/config"
	"pricewatch/models"
)

// BrowserHandler renders product pages in headless Chromium for retailers
// that hide prices behind client-side rendering or bot checks.
type BrowserHandler struct {
	cfg *config.SiteConfig

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewBrowserHandler(siteCfg *config.SiteConfig) *BrowserHandler {
	return &BrowserHandler{cfg: siteCfg}
}

func (h *BrowserHandler) ID() string {
	return h.cfg.ID
}

// ensureBrowser lazily starts Playwright and launches the browser once; the
// instance is reused across items within a pass and across passes.
func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browser != nil && h.browser.IsConnected() {
		return nil
	}

	var err error
	if h.pw == nil {
		h.pw, err = playwright.Run()
		if err != nil {
			return fmt.Errorf("start playwright: %w", err)
		}
	}

	h.browser, err = h.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	return nil
}

func (h *BrowserHandler) Fetch(ctx context.Context, productURL string) (*models.Snapshot, error) {
	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := h.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(productURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(30000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("goto: %w", err)
	}

	snap := &models.Snapshot{}
	sel := h.cfg.Selectors

	if sel.Price != "" {
		if text, err := page.Locator(sel.Price).First().TextContent(); err == nil {
			snap.RawPrice = NormalizePrice(text)
		}
	}
	if snap.RawPrice == "" {
		if content, err := page.Content(); err == nil {
			snap.RawPrice = extractJSONLDPrice(content)
		}
	}

	if sel.Name != "" {
		if text, err := page.Locator(sel.Name).First().TextContent(); err == nil {
			snap.Name = strings.TrimSpace(text)
		}
	}

	if sel.Image != "" {
		if src, err := page.Locator(sel.Image).First().GetAttribute("src"); err == nil {
			snap.ImageURL = src
		}
	}

	if sel.Currency != "" {
		if text, err := page.Locator(sel.Currency).First().TextContent(); err == nil {
			snap.Currency = strings.TrimSpace(text)
		}
	}
	if snap.Currency == "" {
		if content, err := page.Content(); err == nil {
			snap.Currency = extractJSONLDCurrency(content)
		}
	}

	return snap, nil
}

// Close shuts down the browser and the Playwright driver.
func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browser != nil {
		h.browser.Close()
		h.browser = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
}
