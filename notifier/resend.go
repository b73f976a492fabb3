package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"pricewatch/config"
	"pricewatch/models"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendNotifier delivers price-drop alerts through the Resend email API.
// Every fault is returned as an error; nothing here panics, so the caller's
// per-item state machine is never interrupted by a delivery problem.
type ResendNotifier struct {
	apiKey string
	from   string
	client *http.Client
}

func NewResendNotifier(cfg *config.ResendConfig, client *http.Client) *ResendNotifier {
	return &ResendNotifier{
		apiKey: cfg.APIKey,
		from:   cfg.From,
		client: client,
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendDropAlert emails the owner that a tracked product dropped from
// oldPrice to newPrice.
func (n *ResendNotifier) SendDropAlert(ctx context.Context, email string, product *models.Product, oldPrice, newPrice decimal.Decimal) error {
	payload := resendRequest{
		From:    n.from,
		To:      []string{email},
		Subject: fmt.Sprintf("Price Drop Alert: %s", product.Name),
		HTML:    dropAlertHTML(product, oldPrice, newPrice),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", resendEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend error %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func dropAlertHTML(product *models.Product, oldPrice, newPrice decimal.Decimal) string {
	drop := oldPrice.Sub(newPrice)
	percent := decimal.Zero
	if !oldPrice.IsZero() {
		percent = drop.Div(oldPrice).Mul(decimal.NewFromInt(100)).Round(1)
	}

	currency := product.Currency
	if currency == "" {
		currency = "USD"
	}

	return fmt.Sprintf(`<h2>%s just dropped in price!</h2>
<p>Old price: <s>%s %s</s></p>
<p>New price: <strong>%s %s</strong></p>
<p>You save %s %s (%s%%).</p>
<p><a href="%s">View the product</a></p>`,
		product.Name,
		oldPrice.StringFixed(2), currency,
		newPrice.StringFixed(2), currency,
		drop.StringFixed(2), currency, percent.String(),
		product.URL,
	)
}
