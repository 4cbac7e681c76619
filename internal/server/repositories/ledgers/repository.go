package ledgers

import (
	"context"

	"github.com/dmitrijs2005/gophpool/internal/pool"
)

type Repository interface {
	Create(ctx context.Context, address pool.Identity, ledger pool.Ledger) error
	Get(ctx context.Context, address pool.Identity) (pool.Ledger, error)
	GetForUpdate(ctx context.Context, address pool.Identity) (pool.Ledger, error)
	Save(ctx context.Context, address pool.Identity, ledger pool.Ledger) error
}
