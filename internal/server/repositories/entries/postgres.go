// Package entries stores pool entries keyed by their (title, owner) address.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/dbx"
	"github.com/dmitrijs2005/gophpool/internal/pool"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const entryColumns = `owner, title, external_reference, selection_tag, created_at, contribution, epoch`

// Create inserts a new entry. A row already at the same address, or with the
// same (title, owner), yields pool.ErrAlreadyExists; nothing is overwritten.
func (r *PostgresRepository) Create(ctx context.Context, e pool.Entry) error {
	query := `
		INSERT INTO entries (address, ` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		e.Address(), e.Owner, e.Title, e.ExternalReference, int64(e.SelectionTag), e.CreatedAt, int64(e.Contribution), int64(e.Epoch))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("entry %q: %w", e.Title, pool.ErrAlreadyExists)
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("entry %q: %w", e.Title, pool.ErrAlreadyExists)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Exists reports whether an entry occupies the key's address.
func (r *PostgresRepository) Exists(ctx context.Context, key pool.EntryKey) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM entries WHERE address = $1)`, key.Address()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// Get loads the entry at the key's address or returns common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, key pool.EntryKey) (pool.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE address = $1`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, key.Address()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pool.Entry{}, common.ErrorNotFound
		}
		return pool.Entry{}, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// ListSince returns up to limit entries created at or after since, oldest
// first. limit <= 0 means no limit.
func (r *PostgresRepository) ListSince(ctx context.Context, since int64, limit int) ([]pool.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE created_at >= $1
		ORDER BY created_at, address
		LIMIT NULLIF($2, 0)`

	return r.list(ctx, query, since, max(limit, 0))
}

// ListEpoch returns up to limit entries stamped with epoch, oldest first.
// limit <= 0 means no limit.
func (r *PostgresRepository) ListEpoch(ctx context.Context, epoch uint64, limit int) ([]pool.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE epoch = $1
		ORDER BY created_at, address
		LIMIT NULLIF($2, 0)`

	return r.list(ctx, query, int64(epoch), max(limit, 0))
}

// EpochEntryAt returns the index-th entry of epoch in ListEpoch order, or
// common.ErrorNotFound when the epoch has fewer entries.
func (r *PostgresRepository) EpochEntryAt(ctx context.Context, epoch, index uint64) (pool.Entry, error) {
	if index > pool.MaxAmount {
		return pool.Entry{}, common.ErrorNotFound
	}
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE epoch = $1
		ORDER BY created_at, address
		OFFSET $2 LIMIT 1`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, int64(epoch), int64(index)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pool.Entry{}, common.ErrorNotFound
		}
		return pool.Entry{}, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]pool.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []pool.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (pool.Entry, error) {
	var e pool.Entry
	err := s.Scan(&e.Owner, &e.Title, &e.ExternalReference, &e.SelectionTag, &e.CreatedAt, &e.Contribution, &e.Epoch)
	return e, err
}
