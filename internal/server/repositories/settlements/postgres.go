// Package settlements keeps the append-only settlement history.
package settlements

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/dbx"
	"github.com/dmitrijs2005/gophpool/internal/pool"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const settlementColumns = `id, caller, winner_entry, winner_title, winner_payout, winner_share,
	creator_payout, creator_share, total, entries, winner_tag, settled_at, receipt_key`

func (r *PostgresRepository) Create(ctx context.Context, s *pool.Settlement) error {
	query := `INSERT INTO settlements (` + settlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.Caller, s.WinnerEntry, s.WinnerTitle,
		s.WinnerPayout, int64(s.WinnerShare), s.CreatorPayout, int64(s.CreatorShare),
		int64(s.Total), int64(s.Entries), int64(s.WinnerTag), s.SettledAt, s.ReceiptKey)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*pool.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`

	s, err := scanSettlement(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// List returns the most recent settlements first.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*pool.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements ORDER BY settled_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select settlements: %w", err)
	}
	defer rows.Close()

	var result []*pool.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) SetReceiptKey(ctx context.Context, id, key string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE settlements SET receipt_key = $2 WHERE id = $1`, id, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row scanner) (*pool.Settlement, error) {
	s := &pool.Settlement{}
	err := row.Scan(&s.ID, &s.Caller, &s.WinnerEntry, &s.WinnerTitle, &s.WinnerPayout, &s.WinnerShare,
		&s.CreatorPayout, &s.CreatorShare, &s.Total, &s.Entries, &s.WinnerTag, &s.SettledAt, &s.ReceiptKey)
	if err != nil {
		return nil, err
	}
	return s, nil
}
