package reconciler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"pricewatch/models"
)

// Store is the slice of the product store the reconciler writes through.
type Store interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpdateProductPrice(ctx context.Context, id uuid.UUID, upd *models.ProductUpdate) error
	InsertPriceHistory(ctx context.Context, e *models.PriceHistoryEntry) error
	CreateBatchRun(ctx context.Context, run *models.BatchRun) error
	UpdateBatchRun(ctx context.Context, run *models.BatchRun) error
}

// Fetcher resolves a product URL to a price snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, productURL string) (*models.Snapshot, error)
}

// Notifier delivers a price-drop alert. Implementations must surface every
// fault as a returned error, never a panic.
type Notifier interface {
	SendDropAlert(ctx context.Context, email string, product *models.Product, oldPrice, newPrice decimal.Decimal) error
}

// Directory resolves a product owner's notification address. A missing user
// is ("", nil); errors are reserved for lookup faults.
type Directory interface {
	LookupEmail(ctx context.Context, userID uuid.UUID) (string, error)
}

// Reconciler runs one batch pass over every tracked product: fetch the
// current price, persist it, append history on change and alert the owner
// on a drop. Items are processed independently; one product's failure never
// touches another's outcome.
type Reconciler struct {
	store     Store
	fetcher   Fetcher
	notifier  Notifier
	directory Directory

	itemTimeout time.Duration
	delay       time.Duration
}

func New(store Store, fetcher Fetcher, notifier Notifier, directory Directory, itemTimeout, delay time.Duration) *Reconciler {
	return &Reconciler{
		store:       store,
		fetcher:     fetcher,
		notifier:    notifier,
		directory:   directory,
		itemTimeout: itemTimeout,
		delay:       delay,
	}
}

// RunBatch executes one reconciliation pass. It fails only when the product
// listing itself cannot be read; every per-item fault is captured in the
// returned BatchResult instead.
func (r *Reconciler) RunBatch(ctx context.Context) (*models.BatchResult, error) {
	products, err := r.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	run := &models.BatchRun{
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
		Total:     len(products),
	}
	if err := r.store.CreateBatchRun(ctx, run); err != nil {
		log.Printf("Warning: failed to create batch run record: %v", err)
	}

	log.Printf("Reconciler: starting pass over %d products", len(products))

	result := &models.BatchResult{
		Total:  len(products),
		Errors: []string{},
	}

	for i := range products {
		outcome := r.processProduct(ctx, &products[i])
		result.Aggregate(outcome)

		if r.delay > 0 && i < len(products)-1 {
			time.Sleep(r.delay)
		}
	}

	now := time.Now()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	run.Updated = result.Updated
	run.Failed = result.Failed
	run.PriceChanges = result.PriceChanges
	run.AlertsSent = result.AlertsSent
	run.ErrorsCount = len(result.Errors)
	if run.ID != 0 {
		if err := r.store.UpdateBatchRun(ctx, run); err != nil {
			log.Printf("Warning: failed to finalize batch run record: %v", err)
		}
	}

	log.Printf("Reconciler: pass complete: %d total, %d updated, %d failed, %d price changes, %d alerts",
		result.Total, result.Updated, result.Failed, result.PriceChanges, result.AlertsSent)

	return result, nil
}

// processProduct walks a single product through the per-item state machine.
// Anything unexpected is recovered at this boundary and converted into a
// failed outcome so the rest of the batch keeps going.
func (r *Reconciler) processProduct(ctx context.Context, p *models.Product) (outcome *models.ItemOutcome) {
	outcome = &models.ItemOutcome{
		ProductID: p.ID,
		State:     models.ItemFetching,
	}

	defer func() {
		if rec := recover(); rec != nil {
			outcome.Fail(fmt.Sprintf("crash on product %s: %v", p.ID, rec))
		}
	}()

	if r.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.itemTimeout)
		defer cancel()
	}

	log.Printf("Reconciler: checking %s", p.URL)

	snap, err := r.fetcher.Fetch(ctx, p.URL)
	if err != nil {
		outcome.Fail(fmt.Sprintf("fetch failed for %s: %v", p.ID, err))
		return outcome
	}
	if snap == nil {
		outcome.Fail(fmt.Sprintf("fetcher returned no snapshot for %s", p.ID))
		return outcome
	}

	raw := strings.TrimSpace(snap.RawPrice)
	if raw == "" {
		outcome.Fail(fmt.Sprintf("price missing for %s, data found: %s", p.ID, snap.Dump()))
		return outcome
	}

	// Parse loudly: anything non-numeric is a missing price, never a
	// silent zero.
	newPrice, err := decimal.NewFromString(raw)
	if err != nil {
		outcome.Fail(fmt.Sprintf("price unparsable for %s (%q), data found: %s", p.ID, raw, snap.Dump()))
		return outcome
	}
	outcome.State = models.ItemValidated

	oldPrice := p.CurrentPrice
	upd := &models.ProductUpdate{
		Price:     newPrice,
		Currency:  fallback(snap.Currency, p.Currency),
		Name:      fallback(snap.Name, p.Name),
		ImageURL:  fallback(snap.ImageURL, p.ImageURL),
		UpdatedAt: time.Now(),
	}

	if err := r.store.UpdateProductPrice(ctx, p.ID, upd); err != nil {
		outcome.Fail(fmt.Sprintf("write failed for %s: %v", p.ID, err))
		return outcome
	}
	outcome.State = models.ItemWritten

	// Exact decimal comparison against the stored value, no tolerance.
	if !newPrice.Equal(oldPrice) {
		outcome.PriceChanged = true

		entry := &models.PriceHistoryEntry{
			ProductID: p.ID,
			Price:     newPrice,
			Currency:  upd.Currency,
		}
		if err := r.store.InsertPriceHistory(ctx, entry); err != nil {
			// The product write already stands, so this is reported
			// without failing the item.
			outcome.Errors = append(outcome.Errors,
				fmt.Sprintf("history insert failed for %s: %v", p.ID, err))
		}

		if newPrice.LessThan(oldPrice) {
			outcome.DropDetected = true
			r.dispatchAlert(ctx, p, oldPrice, newPrice, outcome)
		}
	}

	outcome.State = models.ItemUpdated
	return outcome
}

// dispatchAlert resolves the owner's address and sends the drop alert.
// Every fault here is recorded as an error entry only; the item stays
// updated because the price write already succeeded.
func (r *Reconciler) dispatchAlert(ctx context.Context, p *models.Product, oldPrice, newPrice decimal.Decimal, outcome *models.ItemOutcome) {
	email, err := r.directory.LookupEmail(ctx, p.UserID)
	if err != nil {
		outcome.Errors = append(outcome.Errors,
			fmt.Sprintf("owner lookup failed for user %s: %v", p.UserID, err))
		return
	}
	if email == "" {
		outcome.Errors = append(outcome.Errors,
			fmt.Sprintf("user email not found for user_id: %s", p.UserID))
		return
	}

	if err := r.notifier.SendDropAlert(ctx, email, p, oldPrice, newPrice); err != nil {
		outcome.Errors = append(outcome.Errors,
			fmt.Sprintf("notification failed for %s: %v", p.ID, err))
		return
	}

	outcome.AlertSent = true
}

func fallback(val, prev string) string {
	if val != "" {
		return val
	}
	return prev
}
