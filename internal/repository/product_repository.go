package repository

import (
	"context"
	"database/sql"
	"fmt"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Count returns the number of product rows.
func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// DeleteBatch deletes up to limit products by primary key and returns how
// many rows went away. Zero means the table is empty.
func (r *ProductRepository) DeleteBatch(ctx context.Context, limit int) (int64, error) {
	query := `
		DELETE FROM products
		WHERE id IN (SELECT id FROM products ORDER BY id LIMIT $1)
	`

	res, err := r.db.ExecContext(ctx, query, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete product batch: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}
	return deleted, nil
}

// DeleteAll removes every product row-by-row, for small synchronous deletes.
func (r *ProductRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete products: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}
	return deleted, nil
}

// Truncate fast-wipes the table and resets the identity sequence.
func (r *ProductRepository) Truncate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `TRUNCATE TABLE products RESTART IDENTITY`)
	if err != nil {
		return fmt.Errorf("failed to truncate products: %w", err)
	}
	return nil
}
