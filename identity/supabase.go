package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"pricewatch/config"
)

// SupabaseDirectory resolves user ids to notification email addresses via
// the Supabase Auth admin API, where the product owners are provisioned.
type SupabaseDirectory struct {
	url        string
	serviceKey string
	client     *http.Client
}

func NewSupabaseDirectory(cfg *config.SupabaseConfig, client *http.Client) *SupabaseDirectory {
	return &SupabaseDirectory{
		url:        cfg.URL,
		serviceKey: cfg.ServiceKey,
		client:     client,
	}
}

// LookupEmail returns the user's email address, or an empty string when no
// such user exists. Transport and API faults come back as errors.
func (d *SupabaseDirectory) LookupEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	endpoint := fmt.Sprintf("%s/auth/v1/admin/users/%s", d.url, userID)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("apikey", d.serviceKey)
	req.Header.Set("Authorization", "Bearer "+d.serviceKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("supabase auth error %d: %s", resp.StatusCode, string(body))
	}

	var user struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode user: %w", err)
	}

	return user.Email, nil
}
