package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/feedsync/internal/domain/contact"
	"github.com/rpggio/feedsync/internal/repository"
)

// ContactRepository stores contacts and resolves them by address.
type ContactRepository struct {
	db *DB
}

// NewContactRepository creates a new ContactRepository
func NewContactRepository(db *DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Upsert stores c and replaces its address list. Addresses are normalized.
func (r *ContactRepository) Upsert(ctx context.Context, c *contact.Contact) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin contact upsert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contacts (id, local_id, user_id, display_name, network_tag)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			local_id = excluded.local_id,
			user_id = excluded.user_id,
			display_name = excluded.display_name,
			network_tag = excluded.network_tag
	`, c.ID, c.LocalID, c.UserID, c.DisplayName, c.NetworkTag)
	if err != nil {
		return fmt.Errorf("failed to upsert contact: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM contact_addresses WHERE contact_id = ?`, c.ID); err != nil {
		return fmt.Errorf("failed to clear contact addresses: %w", err)
	}
	for _, addr := range c.Addresses {
		normalized := contact.NormalizeAddress(addr)
		if normalized == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO contact_addresses (contact_id, address) VALUES (?, ?)`, c.ID, normalized)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			if isForeignKeyViolation(err) {
				return repository.ErrForeignKeyViolation
			}
			return fmt.Errorf("failed to add contact address: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit contact upsert: %w", err)
	}
	return nil
}

// AddAddress links an extra address to an existing contact.
func (r *ContactRepository) AddAddress(ctx context.Context, contactID int64, address string) error {
	normalized := contact.NormalizeAddress(address)
	if normalized == "" {
		return repository.ErrInvalidInput
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contact_addresses (contact_id, address) VALUES (?, ?)`, contactID, normalized)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to add contact address: %w", err)
	}
	return nil
}

// LookupByAddress implements contact.Resolver. It returns nil when no contact matches.
func (r *ContactRepository) LookupByAddress(ctx context.Context, address string) (*contact.Match, error) {
	normalized := contact.NormalizeAddress(address)
	if normalized == "" {
		return nil, nil
	}

	var m contact.Match
	var id int64
	var localID, userID sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT c.id, c.local_id, c.user_id, c.display_name, c.network_tag
		FROM contacts c
		JOIN contact_addresses a ON a.contact_id = c.id
		WHERE a.address = ?
		ORDER BY c.id
		LIMIT 1
	`, normalized).Scan(&id, &localID, &userID, &m.DisplayName, &m.NetworkTag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up contact: %w", err)
	}
	m.ContactID = &id
	m.LocalID = int64Ptr(localID)
	m.UserID = int64Ptr(userID)
	return &m, nil
}
