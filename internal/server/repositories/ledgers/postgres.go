// Package ledgers persists the pool ledger row.
package ledgers

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

// Create inserts the ledger at address. An existing ledger is never reset:
// the insert is skipped and pool.ErrAlreadyExists returned.
func (r *PostgresRepository) Create(ctx context.Context, address pool.Identity, l pool.Ledger) error {
	query := `
		INSERT INTO pool_ledgers (address, creator, total_pool, total_entries, last_winner_tag, last_settlement_time, epoch)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		address, l.Creator, int64(l.TotalPool), int64(l.TotalEntries), int64(l.LastWinnerTag), l.LastSettlementTime, int64(l.Epoch))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return pool.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return pool.ErrAlreadyExists
	}
	return nil
}

const selectLedger = `SELECT creator, total_pool, total_entries, last_winner_tag, last_settlement_time, epoch
		FROM pool_ledgers WHERE address = $1`

// Get reads the ledger without locking it.
func (r *PostgresRepository) Get(ctx context.Context, address pool.Identity) (pool.Ledger, error) {
	return r.get(ctx, selectLedger, address)
}

// GetForUpdate reads the ledger and locks its row until the surrounding
// transaction ends. Every mutating pool operation starts here, which is what
// serializes them.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, address pool.Identity) (pool.Ledger, error) {
	return r.get(ctx, selectLedger+` FOR UPDATE`, address)
}

func (r *PostgresRepository) get(ctx context.Context, query string, address pool.Identity) (pool.Ledger, error) {
	var l pool.Ledger
	err := r.db.QueryRowContext(ctx, query, address).
		Scan(&l.Creator, &l.TotalPool, &l.TotalEntries, &l.LastWinnerTag, &l.LastSettlementTime, &l.Epoch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pool.Ledger{}, common.ErrorNotFound
		}
		return pool.Ledger{}, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

// Save writes the counters of an existing ledger. The creator never changes.
func (r *PostgresRepository) Save(ctx context.Context, address pool.Identity, l pool.Ledger) error {
	if l.TotalPool > pool.MaxAmount {
		return fmt.Errorf("%w: total pool %d", pool.ErrArithmeticOverflow, l.TotalPool)
	}
	query := `
		UPDATE pool_ledgers
		SET total_pool = $2, total_entries = $3, last_winner_tag = $4, last_settlement_time = $5, epoch = $6
		WHERE address = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		address, int64(l.TotalPool), int64(l.TotalEntries), int64(l.LastWinnerTag), l.LastSettlementTime, int64(l.Epoch))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrorNotFound
	}
	return nil
}
