package models

import "encoding/json"

// Snapshot is the ephemeral result of fetching a product page. RawPrice is
// the extracted price text before parsing; an empty string means the fetch
// succeeded but no price was found, which is a distinct failure mode from a
// fetch error. The remaining fields are optional overrides: when empty the
// product's stored values are retained.
type Snapshot struct {
	RawPrice string `json:"currentPrice"`
	Currency string `json:"currencyCode,omitempty"`
	Name     string `json:"productName,omitempty"`
	ImageURL string `json:"productImageUrl,omitempty"`
}

// Dump renders the snapshot for error messages when the price is missing,
// so the partially fetched data is still available for diagnosis.
func (s *Snapshot) Dump() string {
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}
