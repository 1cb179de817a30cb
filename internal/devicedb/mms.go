package devicedb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rpggio/feedsync/internal/devicelog"
)

// pdu.date is stored in seconds.
const (
	pduDate   = "(date * 1000)"
	pduSelect = `SELECT _id, date * 1000, COALESCE(msg_box, 0), COALESCE(sub, ''), COALESCE(sub_cs, 0), COALESCE(thread_id, 0) FROM pdu`

	maxPartFileSize = 64 << 10
)

// MMS reads the pdu table and assembles each message from its addr and
// part rows.
type MMS struct {
	db *DB
	// partsDir resolves relative part file paths.
	partsDir string
}

// NewMMS creates an MMS source over db. Part files with relative paths are
// resolved against the database directory.
func NewMMS(db *DB) *MMS {
	return &MMS{db: db, partsDir: filepath.Dir(db.Path())}
}

// Open implements devicelog.Source.
func (s *MMS) Open(_ context.Context, q devicelog.Query) (devicelog.Cursor[devicelog.MMSEvent], error) {
	return &cursor[devicelog.MMSEvent]{
		q:    q,
		id:   func(e devicelog.MMSEvent) int64 { return e.ID },
		page: func(ctx context.Context, pos position, limit int) ([]devicelog.MMSEvent, error) { return s.page(ctx, q, pos, limit) },
	}, nil
}

func (s *MMS) page(ctx context.Context, q devicelog.Query, pos position, limit int) ([]devicelog.MMSEvent, error) {
	query, args := pageQuery(pduSelect, pduDate, q, pos, limit)
	events, err := s.scanPDUs(ctx, query, args)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].Addresses, err = s.addresses(ctx, events[i].ID); err != nil {
			return nil, err
		}
		if events[i].Parts, err = s.parts(ctx, events[i].ID); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func (s *MMS) scanPDUs(ctx context.Context, query string, args []any) ([]devicelog.MMSEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pdu: %w", err)
	}
	defer rows.Close()

	var events []devicelog.MMSEvent
	for rows.Next() {
		var e devicelog.MMSEvent
		if err := rows.Scan(&e.ID, &e.Date, &e.Box, &e.Subject, &e.SubjectCharset, &e.ThreadID); err != nil {
			return nil, fmt.Errorf("failed to scan pdu: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pdu: %w", err)
	}
	return events, nil
}

func (s *MMS) addresses(ctx context.Context, msgID int64) ([]devicelog.MMSAddress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(address, ''), type, COALESCE(charset, 0) FROM addr WHERE msg_id = ? ORDER BY _id`, msgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query addr: %w", err)
	}
	defer rows.Close()

	var addrs []devicelog.MMSAddress
	for rows.Next() {
		var a devicelog.MMSAddress
		if err := rows.Scan(&a.Address, &a.Type, &a.Charset); err != nil {
			return nil, fmt.Errorf("failed to scan addr: %w", err)
		}
		addrs = append(addrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addr: %w", err)
	}
	return addrs, nil
}

func (s *MMS) parts(ctx context.Context, msgID int64) ([]devicelog.MMSPart, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(ct, ''), COALESCE(chset, 0), COALESCE(text, ''), _data FROM part WHERE mid = ? ORDER BY seq, _id`, msgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query part: %w", err)
	}
	defer rows.Close()

	type partRow struct {
		part devicelog.MMSPart
		file sql.NullString
	}
	var found []partRow
	for rows.Next() {
		var r partRow
		if err := rows.Scan(&r.part.ContentType, &r.part.Charset, &r.part.Text, &r.file); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating part: %w", err)
	}

	parts := make([]devicelog.MMSPart, len(found))
	for i, r := range found {
		parts[i] = r.part
		if r.part.Text == "" && r.file.Valid && r.file.String != "" {
			parts[i].Data = s.readPartFile(r.file.String)
		}
	}
	return parts, nil
}

// readPartFile returns the head of a part body file, or nil if it cannot be read.
func (s *MMS) readPartFile(path string) []byte {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.partsDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxPartFileSize))
	if err != nil {
		return nil
	}
	return data
}
