package devicedb

import (
	"context"
	"fmt"

	"github.com/rpggio/feedsync/internal/devicelog"
)

const smsSelect = `SELECT _id, date, COALESCE(address, ''), COALESCE(subject, ''), COALESCE(body, ''), type, COALESCE(thread_id, 0) FROM sms`

// SMS reads the sms table.
type SMS struct {
	db *DB
}

// NewSMS creates an SMS source over db.
func NewSMS(db *DB) *SMS {
	return &SMS{db: db}
}

// Open implements devicelog.Source.
func (s *SMS) Open(_ context.Context, q devicelog.Query) (devicelog.Cursor[devicelog.SMSEvent], error) {
	return &cursor[devicelog.SMSEvent]{
		q:  q,
		id: func(e devicelog.SMSEvent) int64 { return e.ID },
		page: func(ctx context.Context, pos position, limit int) ([]devicelog.SMSEvent, error) {
			query, args := pageQuery(smsSelect, "date", q, pos, limit)
			rows, err := s.db.QueryContext(ctx, query, args...)
			if err != nil {
				return nil, fmt.Errorf("failed to query sms: %w", err)
			}
			defer rows.Close()

			var events []devicelog.SMSEvent
			for rows.Next() {
				var e devicelog.SMSEvent
				if err := rows.Scan(&e.ID, &e.Date, &e.Address, &e.Subject, &e.Body, &e.Type, &e.ThreadID); err != nil {
					return nil, fmt.Errorf("failed to scan sms: %w", err)
				}
				events = append(events, e)
			}
			if err := rows.Err(); err != nil {
				return nil, fmt.Errorf("error iterating sms: %w", err)
			}
			return events, nil
		},
	}, nil
}
