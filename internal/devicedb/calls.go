package devicedb

import (
	"context"
	"fmt"

	"github.com/rpggio/feedsync/internal/devicelog"
)

const callsSelect = `SELECT _id, COALESCE(number, ''), date, type FROM calls`

// CallLog reads the calls table.
type CallLog struct {
	db *DB
}

// NewCallLog creates a call log source over db.
func NewCallLog(db *DB) *CallLog {
	return &CallLog{db: db}
}

// Open implements devicelog.Source.
func (s *CallLog) Open(_ context.Context, q devicelog.Query) (devicelog.Cursor[devicelog.CallEvent], error) {
	return &cursor[devicelog.CallEvent]{
		q:  q,
		id: func(e devicelog.CallEvent) int64 { return e.ID },
		page: func(ctx context.Context, pos position, limit int) ([]devicelog.CallEvent, error) {
			query, args := pageQuery(callsSelect, "date", q, pos, limit)
			rows, err := s.db.QueryContext(ctx, query, args...)
			if err != nil {
				return nil, fmt.Errorf("failed to query calls: %w", err)
			}
			defer rows.Close()

			var events []devicelog.CallEvent
			for rows.Next() {
				var e devicelog.CallEvent
				if err := rows.Scan(&e.ID, &e.Number, &e.Date, &e.Type); err != nil {
					return nil, fmt.Errorf("failed to scan call: %w", err)
				}
				events = append(events, e)
			}
			if err := rows.Err(); err != nil {
				return nil, fmt.Errorf("error iterating calls: %w", err)
			}
			return events, nil
		},
	}, nil
}
