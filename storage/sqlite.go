package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"pricewatch/models"
)

// SQLiteStore is a single-file alternative to PostgresStore for local
// development. Prices are stored as TEXT to keep the decimal representation
// exact.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		current_price TEXT NOT NULL DEFAULT '0',
		currency TEXT DEFAULT '',
		name TEXT DEFAULT '',
		image_url TEXT DEFAULT '',
		image_s3_key TEXT,
		user_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY,
		product_id TEXT NOT NULL,
		price TEXT NOT NULL,
		currency TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (product_id) REFERENCES products(id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS batch_runs (
		id INTEGER PRIMARY KEY,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		total INTEGER DEFAULT 0,
		updated INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		price_changes INTEGER DEFAULT 0,
		alerts_sent INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		error_message TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history(product_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	query := `
		SELECT id, url, current_price, currency, name, image_url, image_s3_key,
			user_id, created_at, updated_at
		FROM products
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(
			&p.ID, &p.URL, &p.CurrentPrice, &p.Currency, &p.Name, &p.ImageURL,
			&p.ImageS3Key, &p.UserID, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *SQLiteStore) UpdateProductPrice(ctx context.Context, id uuid.UUID, upd *models.ProductUpdate) error {
	query := `
		UPDATE products SET
			current_price = ?, currency = ?, name = ?, image_url = ?, updated_at = ?
		WHERE id = ?`

	_, err := s.db.ExecContext(ctx, query,
		upd.Price.String(), upd.Currency, upd.Name, upd.ImageURL, upd.UpdatedAt, id.String(),
	)
	return err
}

func (s *SQLiteStore) InsertPriceHistory(ctx context.Context, e *models.PriceHistoryEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO price_history (product_id, price, currency, created_at) VALUES (?, ?, ?, ?)`,
		e.ProductID.String(), e.Price.String(), e.Currency, e.CreatedAt,
	)
	if err != nil {
		return err
	}

	e.ID, _ = res.LastInsertId()
	return nil
}

// LookupEmail resolves a user's email from the local users table. Returns
// an empty string when the user is unknown.
func (s *SQLiteStore) LookupEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx,
		`SELECT email FROM users WHERE id = ?`, userID.String(),
	).Scan(&email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return email, nil
}

func (s *SQLiteStore) CreateBatchRun(ctx context.Context, run *models.BatchRun) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO batch_runs (started_at, status, total, updated, failed, price_changes, alerts_sent, errors_count, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt, string(run.Status), run.Total, run.Updated, run.Failed,
		run.PriceChanges, run.AlertsSent, run.ErrorsCount, run.ErrorMessage,
	)
	if err != nil {
		return err
	}

	run.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) UpdateBatchRun(ctx context.Context, run *models.BatchRun) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE batch_runs SET
			finished_at = ?, status = ?, total = ?, updated = ?, failed = ?,
			price_changes = ?, alerts_sent = ?, errors_count = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, string(run.Status), run.Total, run.Updated, run.Failed,
		run.PriceChanges, run.AlertsSent, run.ErrorsCount, run.ErrorMessage, run.ID,
	)
	return err
}

func (s *SQLiteStore) GetRecentBatchRuns(ctx context.Context, limit int) ([]models.BatchRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, total, updated, failed,
			price_changes, alerts_sent, errors_count, error_message
		FROM batch_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.BatchRun
	for rows.Next() {
		var r models.BatchRun
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Total, &r.Updated,
			&r.Failed, &r.PriceChanges, &r.AlertsSent, &r.ErrorsCount, &r.ErrorMessage,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) ListProductsMissingImages(ctx context.Context, limit int) ([]models.Product, error) {
	query := `
		SELECT id, url, current_price, currency, name, image_url, image_s3_key,
			user_id, created_at, updated_at
		FROM products
		WHERE image_url <> '' AND image_s3_key IS NULL
		ORDER BY updated_at
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(
			&p.ID, &p.URL, &p.CurrentPrice, &p.Currency, &p.Name, &p.ImageURL,
			&p.ImageS3Key, &p.UserID, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *SQLiteStore) SetProductImageKey(ctx context.Context, id uuid.UUID, s3Key string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products SET image_s3_key = ? WHERE id = ?`, s3Key, id.String())
	return err
}
