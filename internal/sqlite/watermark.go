package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/feedsync/internal/domain/watermark"
)

// WatermarkRepository implements watermark.Store for SQLite
type WatermarkRepository struct {
	db *DB
}

// NewWatermarkRepository creates a new WatermarkRepository
func NewWatermarkRepository(db *DB) *WatermarkRepository {
	return &WatermarkRepository{db: db}
}

// Get returns the watermark for kind, or the zero value if it was never set.
func (r *WatermarkRepository) Get(ctx context.Context, kind watermark.Kind) (watermark.Watermark, error) {
	var w watermark.Watermark
	err := r.db.QueryRowContext(ctx,
		`SELECT oldest_ms, newest_ms FROM watermarks WHERE kind = ?`, kind,
	).Scan(&w.Oldest, &w.Newest)
	if errors.Is(err, sql.ErrNoRows) {
		return watermark.Watermark{}, nil
	}
	if err != nil {
		return watermark.Watermark{}, fmt.Errorf("failed to get watermark %s: %w", kind, err)
	}
	return w, nil
}

// Set updates the non-nil bounds for kind, creating the row if needed.
func (r *WatermarkRepository) Set(ctx context.Context, kind watermark.Kind, oldest, newest *int64) error {
	if oldest == nil && newest == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watermarks (kind, oldest_ms, newest_ms, updated_at)
		VALUES (?, COALESCE(?, 0), COALESCE(?, 0), CURRENT_TIMESTAMP)
		ON CONFLICT(kind) DO UPDATE SET
			oldest_ms = COALESCE(?, oldest_ms),
			newest_ms = COALESCE(?, newest_ms),
			updated_at = CURRENT_TIMESTAMP
	`, kind, oldest, newest, oldest, newest)
	if err != nil {
		return fmt.Errorf("failed to set watermark %s: %w", kind, err)
	}
	return nil
}

// All returns every stored watermark keyed by kind.
func (r *WatermarkRepository) All(ctx context.Context) (map[watermark.Kind]watermark.Watermark, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, oldest_ms, newest_ms FROM watermarks`)
	if err != nil {
		return nil, fmt.Errorf("failed to list watermarks: %w", err)
	}
	defer rows.Close()

	out := make(map[watermark.Kind]watermark.Watermark)
	for rows.Next() {
		var kind watermark.Kind
		var w watermark.Watermark
		if err := rows.Scan(&kind, &w.Oldest, &w.Newest); err != nil {
			return nil, fmt.Errorf("failed to scan watermark: %w", err)
		}
		out[kind] = w
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watermarks: %w", err)
	}
	return out, nil
}
