package balances

import (
	"context"

	"github.com/dmitrijs2005/gophpool/internal/pool"
)

// Repository is the funds-transfer primitive: addressable balances with an
// atomic, checked move between two of them.
type Repository interface {
	Get(ctx context.Context, owner pool.Identity) (uint64, error)
	Open(ctx context.Context, owner pool.Identity) error
	Credit(ctx context.Context, owner pool.Identity, amount uint64) (uint64, error)
	Debit(ctx context.Context, owner pool.Identity, amount uint64) (uint64, error)
	Transfer(ctx context.Context, from, to pool.Identity, amount uint64) error
}
