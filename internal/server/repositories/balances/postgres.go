// Package balances keeps per-identity balances, including the one held at
// the pool ledger address.
package balances

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophpool/internal/dbx"
	"github.com/dmitrijs2005/gophpool/internal/pool"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the balance of owner; an unknown owner has 0.
func (r *PostgresRepository) Get(ctx context.Context, owner pool.Identity) (uint64, error) {
	var amount uint64
	err := r.db.QueryRowContext(ctx, `SELECT amount FROM balances WHERE owner = $1`, owner).Scan(&amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return amount, nil
}

// Open creates a zero balance for owner if it has none.
func (r *PostgresRepository) Open(ctx context.Context, owner pool.Identity) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO balances (owner, amount) VALUES ($1, 0) ON CONFLICT (owner) DO NOTHING`, owner)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Credit adds amount to owner's balance and returns the new balance. A
// result above pool.MaxAmount is refused with pool.ErrArithmeticOverflow.
func (r *PostgresRepository) Credit(ctx context.Context, owner pool.Identity, amount uint64) (uint64, error) {
	if amount > pool.MaxAmount {
		return 0, fmt.Errorf("%w: credit %d", pool.ErrArithmeticOverflow, amount)
	}
	query := `
		INSERT INTO balances (owner, amount) VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE
		SET amount = balances.amount + EXCLUDED.amount, updated_at = now()
		WHERE balances.amount <= $3 - EXCLUDED.amount
		RETURNING amount
	`
	var balance uint64
	err := r.db.QueryRowContext(ctx, query, owner, int64(amount), int64(pool.MaxAmount)).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: credit %d to %s", pool.ErrArithmeticOverflow, amount, owner.Short())
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return balance, nil
}

// Debit removes amount from owner's balance and returns what is left. It
// fails with pool.ErrInsufficientFunds, changing nothing, when the balance
// does not cover amount.
func (r *PostgresRepository) Debit(ctx context.Context, owner pool.Identity, amount uint64) (uint64, error) {
	if amount > pool.MaxAmount {
		return 0, fmt.Errorf("%w: debit %d", pool.ErrInsufficientFunds, amount)
	}
	query := `
		UPDATE balances SET amount = amount - $2, updated_at = now()
		WHERE owner = $1 AND amount >= $2
		RETURNING amount
	`
	var balance uint64
	err := r.db.QueryRowContext(ctx, query, owner, int64(amount)).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s can not cover %d", pool.ErrInsufficientFunds, owner.Short(), amount)
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return balance, nil
}

// Transfer moves amount from one balance to another. It must run inside a
// transaction: the debit is not undone here if the credit fails.
func (r *PostgresRepository) Transfer(ctx context.Context, from, to pool.Identity, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if _, err := r.Debit(ctx, from, amount); err != nil {
		return err
	}
	if _, err := r.Credit(ctx, to, amount); err != nil {
		return err
	}
	return nil
}
