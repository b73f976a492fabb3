package fetcher

import (
	"context"

	"pricewatch/config"
	"pricewatch/httputil"
	"pricewatch/models"
)

// Handler fetches a product page and extracts a price snapshot for one
// configured retailer.
type Handler interface {
	ID() string
	Fetch(ctx context.Context, productURL string) (*models.Snapshot, error)
}

func NewHandler(siteCfg *config.SiteConfig, fcfg *config.FetcherConfig, clients *httputil.Clients) Handler {
	switch siteCfg.Handler {
	case "browser":
		return NewBrowserHandler(siteCfg)
	case "http":
		return NewHTTPHandler(siteCfg, fcfg, clients)
	default:
		return NewHTTPHandler(siteCfg, fcfg, clients)
	}
}
