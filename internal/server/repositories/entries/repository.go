package entries

import (
	"context"

	"github.com/dmitrijs2005/gophpool/internal/pool"
)

type Repository interface {
	Create(ctx context.Context, entry pool.Entry) error
	Exists(ctx context.Context, key pool.EntryKey) (bool, error)
	Get(ctx context.Context, key pool.EntryKey) (pool.Entry, error)
	ListSince(ctx context.Context, since int64, limit int) ([]pool.Entry, error)
	ListEpoch(ctx context.Context, epoch uint64, limit int) ([]pool.Entry, error)
	EpochEntryAt(ctx context.Context, epoch, index uint64) (pool.Entry, error)
}
