package settlements

import (
	"context"

	"github.com/dmitrijs2005/gophpool/internal/pool"
)

type Repository interface {
	Create(ctx context.Context, s *pool.Settlement) error
	Get(ctx context.Context, id string) (*pool.Settlement, error)
	List(ctx context.Context, limit int) ([]*pool.Settlement, error)
	SetReceiptKey(ctx context.Context, id, key string) error
}
