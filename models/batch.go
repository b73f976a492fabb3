package models

import "github.com/google/uuid"

// ItemState is the terminal (or last reached) state of a single product's
// pass through the reconciliation state machine.
type ItemState string

const (
	ItemFetching  ItemState = "fetching"
	ItemValidated ItemState = "validated"
	ItemWritten   ItemState = "written"
	ItemUpdated   ItemState = "updated"
	ItemFailed    ItemState = "failed"
)

// ItemOutcome is the per-product result of one reconciliation pass. Each
// product yields exactly one outcome; outcomes are folded into a BatchResult
// in a single reduction step, so no counters are shared across items.
type ItemOutcome struct {
	ProductID    uuid.UUID
	State        ItemState
	PriceChanged bool
	DropDetected bool
	AlertSent    bool
	Errors       []string
}

// Fail marks the item failed and records the reason. Once failed the item
// sees no further processing.
func (o *ItemOutcome) Fail(reason string) {
	o.State = ItemFailed
	o.Errors = append(o.Errors, reason)
}

// BatchResult summarizes a full reconciliation pass. Updated and Failed are
// mutually exclusive per item: Updated counts items whose product write
// succeeded, Failed counts items that never got that far. Alert and history
// faults after a successful write land in Errors without flipping the item.
type BatchResult struct {
	Total        int      `json:"total"`
	Updated      int      `json:"updated"`
	Failed       int      `json:"failed"`
	PriceChanges int      `json:"priceChanges"`
	AlertsSent   int      `json:"alertsSent"`
	Errors       []string `json:"errors"`
}

// Aggregate folds one item outcome into the batch summary.
func (r *BatchResult) Aggregate(o *ItemOutcome) {
	if o.State == ItemUpdated {
		r.Updated++
	} else {
		r.Failed++
	}
	if o.PriceChanged {
		r.PriceChanges++
	}
	if o.AlertSent {
		r.AlertsSent++
	}
	r.Errors = append(r.Errors, o.Errors...)
}
