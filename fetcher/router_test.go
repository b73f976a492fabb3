package fetcher

import (
	"context"
	"testing"

	"pricewatch/config"
	"pricewatch/httputil"
)

func TestRouter_UnknownHost(t *testing.T) {
	cfg := &config.Config{
		Sites: map[string]*config.SiteConfig{
			"demo_shop": {
				ID:    "demo_shop",
				Name:  "Demo Shop",
				Hosts: []string{"demo-shop.test"},
			},
		},
	}

	router := NewRouter(cfg, httputil.NewClients(""))

	_, err := router.Fetch(context.Background(), "https://unknown-store.test/item/1")
	if err == nil {
		t.Fatalf("expected error for unknown host")
	}
}

func TestNormalizeHost(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Demo-Shop.test", "demo-shop.test"},
		{"www.demo-shop.test", "demo-shop.test"},
		{"WWW.DEMO-SHOP.TEST", "demo-shop.test"},
		{"shop.example.com", "shop.example.com"},
	}

	for _, tc := range cases {
		if got := normalizeHost(tc.in); got != tc.want {
			t.Fatalf("normalizeHost(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
