package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rpggio/feedsync/internal/domain/timeline"
)

// TimelineRepository implements timeline.Store for SQLite
type TimelineRepository struct {
	db      *DB
	maxRows int64
}

// NewTimelineRepository creates a new TimelineRepository. maxRows caps the
// number of rows kept by PruneTimeline; zero disables the cap.
func NewTimelineRepository(db *DB, maxRows int64) *TimelineRepository {
	return &TimelineRepository{db: db, maxRows: maxRows}
}

// WriteTimelineBatch inserts all records in a single transaction.
func (r *TimelineRepository) WriteTimelineBatch(ctx context.Context, records []timeline.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin timeline batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO timeline (
			native_id, source, direction, timestamp_ms, title, description,
			local_contact_id, remote_contact_id, remote_user_id,
			contact_name, contact_network,
			activity_id, parent_activity_id, has_children, flags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare timeline insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		result, err := stmt.ExecContext(ctx,
			rec.NativeID,
			rec.Source,
			rec.Direction,
			rec.Timestamp,
			rec.Title,
			rec.Description,
			rec.LocalContactID,
			rec.RemoteContactID,
			rec.RemoteUserID,
			rec.ContactName,
			rec.ContactNetwork,
			nullString(rec.ActivityID),
			nullString(rec.ParentActivityID),
			rec.HasChildren,
			rec.Flags,
		)
		if err != nil {
			return fmt.Errorf("failed to insert timeline record %s/%s: %w", rec.Source, rec.NativeID, err)
		}
		if id, err := result.LastInsertId(); err == nil {
			rec.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit timeline batch: %w", err)
	}
	return nil
}

// ExistingActivityIDs returns remote activity ids stored at or after minTimestamp.
func (r *TimelineRepository) ExistingActivityIDs(ctx context.Context, minTimestamp int64) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT activity_id FROM timeline
		WHERE source = ? AND activity_id IS NOT NULL AND timestamp_ms >= ?
	`, timeline.SourceRemoteStatus, minTimestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan activity id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity ids: %w", err)
	}
	return ids, nil
}

// PruneTimeline removes duplicate rows (same source and native id, keeping the
// earliest insert) and, when a cap is configured, the oldest rows beyond it.
func (r *TimelineRepository) PruneTimeline(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin prune: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM timeline
		WHERE id NOT IN (
			SELECT MIN(id) FROM timeline GROUP BY source, native_id
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune duplicates: %w", err)
	}
	pruned, _ := result.RowsAffected()

	if r.maxRows > 0 {
		result, err = tx.ExecContext(ctx, `
			DELETE FROM timeline
			WHERE id IN (
				SELECT id FROM timeline
				ORDER BY timestamp_ms DESC, id DESC
				LIMIT -1 OFFSET ?
			)
		`, r.maxRows)
		if err != nil {
			return 0, fmt.Errorf("failed to prune beyond cap: %w", err)
		}
		capped, _ := result.RowsAffected()
		pruned += capped
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return pruned, nil
}

// List returns timeline records newest first.
func (r *TimelineRepository) List(ctx context.Context, opts timeline.ListOptions) ([]timeline.Record, error) {
	query := `
		SELECT
			id, native_id, source, direction, timestamp_ms, title, description,
			local_contact_id, remote_contact_id, remote_user_id,
			contact_name, contact_network,
			activity_id, parent_activity_id, has_children, flags
		FROM timeline
	`

	args := []interface{}{}
	conditions := []string{}

	if len(opts.Sources) > 0 {
		placeholders := make([]string, len(opts.Sources))
		for i, src := range opts.Sources {
			placeholders[i] = "?"
			args = append(args, src)
		}
		conditions = append(conditions, "source IN ("+strings.Join(placeholders, ", ")+")")
	}
	if opts.Before > 0 {
		conditions = append(conditions, "timestamp_ms < ?")
		args = append(args, opts.Before)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY timestamp_ms DESC, id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list timeline: %w", err)
	}
	defer rows.Close()

	var records []timeline.Record
	for rows.Next() {
		var rec timeline.Record
		var localID, remoteID, userID sql.NullInt64
		var activityID, parentID sql.NullString
		if err := rows.Scan(
			&rec.ID,
			&rec.NativeID,
			&rec.Source,
			&rec.Direction,
			&rec.Timestamp,
			&rec.Title,
			&rec.Description,
			&localID,
			&remoteID,
			&userID,
			&rec.ContactName,
			&rec.ContactNetwork,
			&activityID,
			&parentID,
			&rec.HasChildren,
			&rec.Flags,
		); err != nil {
			return nil, fmt.Errorf("failed to scan timeline record: %w", err)
		}
		rec.LocalContactID = int64Ptr(localID)
		rec.RemoteContactID = int64Ptr(remoteID)
		rec.RemoteUserID = int64Ptr(userID)
		rec.ActivityID = activityID.String
		rec.ParentActivityID = parentID.String
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timeline rows: %w", err)
	}

	return records, nil
}

// Count returns the number of stored timeline rows.
func (r *TimelineRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM timeline`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count timeline: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
