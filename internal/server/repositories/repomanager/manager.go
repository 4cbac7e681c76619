package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophpool/internal/dbx"
	"github.com/dmitrijs2005/gophpool/internal/server/repositories/balances"
	"github.com/dmitrijs2005/gophpool/internal/server/repositories/entries"
	"github.com/dmitrijs2005/gophpool/internal/server/repositories/ledgers"
	"github.com/dmitrijs2005/gophpool/internal/server/repositories/settlements"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Ledgers(db dbx.DBTX) ledgers.Repository
	Entries(db dbx.DBTX) entries.Repository
	Balances(db dbx.DBTX) balances.Repository
	Settlements(db dbx.DBTX) settlements.Repository
}
