package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a tracked item owned by a user. The reconciler writes back
// price, currency, name, image_url and updated_at; everything else is
// managed outside the batch path.
type Product struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	URL          string          `json:"url" db:"url"`
	CurrentPrice decimal.Decimal `json:"current_price" db:"current_price"`
	Currency     string          `json:"currency" db:"currency"`
	Name         string          `json:"name" db:"name"`
	ImageURL     string          `json:"image_url" db:"image_url"`
	ImageS3Key   *string         `json:"image_s3_key" db:"image_s3_key"`
	UserID       uuid.UUID       `json:"user_id" db:"user_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// ProductUpdate carries the fields the reconciler writes on a successful
// fetch. Currency, Name and ImageURL are already resolved against the
// stored values, so a blank never overwrites anything.
type ProductUpdate struct {
	Price     decimal.Decimal
	Currency  string
	Name      string
	ImageURL  string
	UpdatedAt time.Time
}

// PriceHistoryEntry is an append-only price record. One row exists per
// price change between two consecutive passes, never for unchanged prices.
type PriceHistoryEntry struct {
	ID        int64           `json:"id" db:"id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Currency  string          `json:"currency" db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
