package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"productimport/internal/csvbatch"
)

// BulkLoader merges batches of canonical records into the products table
// using a transaction-scoped staging table: create temp table, stream the
// batch in with COPY, then run a single insert-or-update merge keyed on
// lower(sku). The whole batch commits or rolls back as one unit.
type BulkLoader struct {
	db *sql.DB
}

func NewBulkLoader(db *sql.DB) *BulkLoader {
	return &BulkLoader{db: db}
}

var stagingColumns = []string{"sku", "sku_lower", "name", "description", "price", "active", "created_at", "updated_at"}

// LoadBatch merges one batch. Records must already be de-duplicated by
// lowercased SKU; the merge statement cannot update the same target row
// twice. Empty batches are a no-op.
func (l *BulkLoader) LoadBatch(ctx context.Context, taskID string, batchIndex int, records []csvbatch.Record) error {
	if len(records) == 0 {
		return nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	tempTable := stagingTableName(taskID, batchIndex)

	err = conn.Raw(func(driverConn interface{}) error {
		stdConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("driver connection is %T, need a pgx stdlib connection for COPY", driverConn)
		}
		pgxConn := stdConn.Conn()
		pgxdecimal.Register(pgxConn.TypeMap())

		tx, err := pgxConn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		createSQL := fmt.Sprintf(`
			CREATE TEMP TABLE %s (
				sku TEXT,
				sku_lower TEXT,
				name TEXT,
				description TEXT,
				price NUMERIC(10, 2),
				active BOOLEAN,
				created_at TIMESTAMPTZ,
				updated_at TIMESTAMPTZ
			) ON COMMIT DROP
		`, tempTable)
		if _, err := tx.Exec(ctx, createSQL); err != nil {
			return fmt.Errorf("failed to create staging table: %w", err)
		}

		_, err = tx.CopyFrom(ctx, pgx.Identifier{tempTable}, stagingColumns,
			pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
				rec := records[i]
				return []interface{}{
					rec.SKU,
					rec.SKULower,
					rec.Name,
					rec.Description,
					rec.Price,
					rec.Active,
					rec.CreatedAt,
					rec.UpdatedAt,
				}, nil
			}))
		if err != nil {
			return fmt.Errorf("failed to copy batch into staging table: %w", err)
		}

		mergeSQL := fmt.Sprintf(`
			INSERT INTO products (sku, name, description, price, active, created_at, updated_at)
			SELECT sku, name, description, price, active, created_at, updated_at
			FROM %s
			ON CONFLICT (lower(sku))
			DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				price = EXCLUDED.price,
				active = EXCLUDED.active,
				updated_at = EXCLUDED.updated_at
		`, tempTable)
		if _, err := tx.Exec(ctx, mergeSQL); err != nil {
			return fmt.Errorf("failed to merge batch into products: %w", err)
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return fmt.Errorf("bulk load of batch %d failed: %w", batchIndex, err)
	}

	return nil
}

// stagingTableName builds a per-batch temp table identifier from the task
// id prefix and batch index, stripped to characters safe in an identifier.
func stagingTableName(taskID string, batchIndex int) string {
	prefix := taskID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	var b strings.Builder
	for _, c := range prefix {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return fmt.Sprintf("tmp_products_import_%s_%d", b.String(), batchIndex)
}
