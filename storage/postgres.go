package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"pricewatch/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Products
// =============================================================================

func (s *PostgresStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	query := `
		SELECT id, url, current_price, currency, name, image_url, image_s3_key,
			user_id, created_at, updated_at
		FROM products
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
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

func (s *PostgresStore) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query := `
		SELECT id, url, current_price, currency, name, image_url, image_s3_key,
			user_id, created_at, updated_at
		FROM products WHERE id = $1`

	var p models.Product
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.URL, &p.CurrentPrice, &p.Currency, &p.Name, &p.ImageURL,
		&p.ImageS3Key, &p.UserID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) UpdateProductPrice(ctx context.Context, id uuid.UUID, upd *models.ProductUpdate) error {
	query := `
		UPDATE products SET
			current_price = $2, currency = $3, name = $4, image_url = $5, updated_at = $6
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		id, upd.Price, upd.Currency, upd.Name, upd.ImageURL, upd.UpdatedAt,
	)
	return err
}

// =============================================================================
// Price History
// =============================================================================

func (s *PostgresStore) InsertPriceHistory(ctx context.Context, e *models.PriceHistoryEntry) error {
	query := `
		INSERT INTO price_history (product_id, price, currency, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return s.pool.QueryRow(ctx, query,
		e.ProductID, e.Price, e.Currency, e.CreatedAt,
	).Scan(&e.ID)
}

func (s *PostgresStore) GetPriceHistory(ctx context.Context, productID uuid.UUID, limit int) ([]models.PriceHistoryEntry, error) {
	query := `
		SELECT id, product_id, price, currency, created_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PriceHistoryEntry
	for rows.Next() {
		var e models.PriceHistoryEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Price, &e.Currency, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// Batch Runs
// =============================================================================

func (s *PostgresStore) CreateBatchRun(ctx context.Context, run *models.BatchRun) error {
	query := `
		INSERT INTO batch_runs (started_at, status, total, updated, failed, price_changes, alerts_sent, errors_count, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		run.StartedAt, run.Status, run.Total, run.Updated, run.Failed,
		run.PriceChanges, run.AlertsSent, run.ErrorsCount, run.ErrorMessage,
	).Scan(&run.ID)
}

func (s *PostgresStore) UpdateBatchRun(ctx context.Context, run *models.BatchRun) error {
	query := `
		UPDATE batch_runs SET
			finished_at = $2, status = $3, total = $4, updated = $5, failed = $6,
			price_changes = $7, alerts_sent = $8, errors_count = $9, error_message = $10
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.Total, run.Updated, run.Failed,
		run.PriceChanges, run.AlertsSent, run.ErrorsCount, run.ErrorMessage,
	)
	return err
}

func (s *PostgresStore) GetRecentBatchRuns(ctx context.Context, limit int) ([]models.BatchRun, error) {
	query := `
		SELECT id, started_at, finished_at, status, total, updated, failed,
			price_changes, alerts_sent, errors_count, error_message
		FROM batch_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
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

// =============================================================================
// Image Mirror Queue
// =============================================================================

func (s *PostgresStore) ListProductsMissingImages(ctx context.Context, limit int) ([]models.Product, error) {
	query := `
		SELECT id, url, current_price, currency, name, image_url, image_s3_key,
			user_id, created_at, updated_at
		FROM products
		WHERE image_url <> '' AND image_s3_key IS NULL
		ORDER BY updated_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
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

func (s *PostgresStore) SetProductImageKey(ctx context.Context, id uuid.UUID, s3Key string) error {
	query := `UPDATE products SET image_s3_key = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, s3Key)
	return err
}
