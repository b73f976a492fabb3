package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"pricewatch/config"
	"pricewatch/httputil"
	"pricewatch/models"
)

// Router dispatches a product URL to the handler configured for its host.
type Router struct {
	handlers map[string]Handler
	hosts    map[string]string // normalized host -> site id
}

func NewRouter(cfg *config.Config, clients *httputil.Clients) *Router {
	r := &Router{
		handlers: make(map[string]Handler),
		hosts:    make(map[string]string),
	}

	for id, siteCfg := range cfg.Sites {
		r.handlers[id] = NewHandler(siteCfg, &cfg.Fetcher, clients)
		for _, host := range siteCfg.Hosts {
			r.hosts[normalizeHost(host)] = id
		}
	}

	return r
}

// Fetch routes the URL to its site handler. An unknown host is a fetch
// error for that product, not a batch failure.
func (r *Router) Fetch(ctx context.Context, productURL string) (*models.Snapshot, error) {
	u, err := url.Parse(productURL)
	if err != nil {
		return nil, fmt.Errorf("parse product url: %w", err)
	}

	host := normalizeHost(u.Hostname())
	siteID, ok := r.hosts[host]
	if !ok {
		return nil, fmt.Errorf("no site config for host %q", host)
	}

	return r.handlers[siteID].Fetch(ctx, productURL)
}

// Close releases handler resources, notably browser instances.
func (r *Router) Close() {
	for _, h := range r.handlers {
		if bh, ok := h.(*BrowserHandler); ok {
			bh.Close()
		}
	}
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
