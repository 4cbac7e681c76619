package settlements

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var (
	alice   = pool.DeriveAddress([]byte("alice"))
	creator = pool.DeriveAddress([]byte("creator"))
	entry   = pool.EntryKey{Title: "t1", Owner: alice}.Address()
)

func sample() *pool.Settlement {
	return &pool.Settlement{
		ID:          "0b7f3c1e-6a55-4a43-9f57-5b8f3d1f2a10",
		Caller:      creator,
		WinnerEntry: entry,
		WinnerTitle: "t1",
		Payout: pool.Payout{
			WinnerPayout:  alice,
			WinnerShare:   135,
			CreatorPayout: creator,
			CreatorShare:  15,
			Total:         150,
			Entries:       2,
			WinnerTag:     12345,
		},
		SettledAt: 2_000,
	}
}

func settlementRow(s *pool.Settlement) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "caller", "winner_entry", "winner_title", "winner_payout", "winner_share",
		"creator_payout", "creator_share", "total", "entries", "winner_tag", "settled_at", "receipt_key"}).
		AddRow(s.ID, s.Caller.String(), s.WinnerEntry.String(), s.WinnerTitle, s.WinnerPayout.String(), int64(s.WinnerShare),
			s.CreatorPayout.String(), int64(s.CreatorShare), int64(s.Total), int64(s.Entries), int64(s.WinnerTag), s.SettledAt, s.ReceiptKey)
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	s := sample()

	mock.ExpectExec(`INSERT INTO settlements`).
		WithArgs(s.ID, creator.String(), entry.String(), "t1", alice.String(), int64(135),
			creator.String(), int64(15), int64(150), int64(2), int64(12345), int64(2_000), "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), s))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	s := sample()
	s.ReceiptKey = "receipts/2026/10/15/x.json"

	mock.ExpectQuery(`FROM settlements WHERE id = \$1`).
		WithArgs(s.ID).
		WillReturnRows(settlementRow(s))

	got, err := repo.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	mock.ExpectQuery(`FROM settlements WHERE id`).WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestList(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM settlements ORDER BY settled_at DESC LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(settlementRow(sample()))

	got, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, got[0].WinnerShare+got[0].CreatorShare, got[0].Total)
}

func TestSetReceiptKey(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE settlements SET receipt_key = \$2 WHERE id = \$1`).
		WithArgs("id-1", "receipts/k.json").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetReceiptKey(context.Background(), "id-1", "receipts/k.json"))

	mock.ExpectExec(`UPDATE settlements`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetReceiptKey(context.Background(), "id-2", "k"), common.ErrorNotFound)
}
