package entries

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/jackc/pgx/v5/pgconn"
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

func owner(b byte) pool.Identity {
	var id pool.Identity
	id[0] = b
	return id
}

func sampleEntry() pool.Entry {
	return pool.Entry{
		Owner:             owner(0xA),
		Title:             "t1",
		ExternalReference: "ipfs://a",
		SelectionTag:      12345,
		CreatedAt:         1_000,
		Contribution:      100,
		Epoch:             2,
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	e := sampleEntry()

	mock.ExpectExec(`INSERT INTO entries .* ON CONFLICT DO NOTHING`).
		WithArgs(e.Address().String(), e.Owner.String(), "t1", "ipfs://a", int64(12345), int64(1_000), int64(100), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateAddress(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO entries`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Create(context.Background(), sampleEntry())
	assert.ErrorIs(t, err, pool.ErrAlreadyExists)
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO entries`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "entries_title_owner_key"})

	err := repo.Create(context.Background(), sampleEntry())
	assert.ErrorIs(t, err, pool.ErrAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO entries`).WillReturnError(errors.New("db is down"))

	err := repo.Create(context.Background(), sampleEntry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db is down")
	assert.NotErrorIs(t, err, pool.ErrAlreadyExists)
}

func TestExists(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	key := sampleEntry().Key()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM entries WHERE address = \$1\)`).
		WithArgs(key.Address().String()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.Exists(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func entryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"owner", "title", "external_reference", "selection_tag", "created_at", "contribution", "epoch"})
}

func TestGet_FoundAndNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	e := sampleEntry()

	mock.ExpectQuery(`SELECT owner, title, .* FROM entries WHERE address = \$1`).
		WithArgs(e.Address().String()).
		WillReturnRows(entryRows().AddRow(e.Owner.String(), e.Title, e.ExternalReference, int64(12345), int64(1_000), int64(100), int64(2)))

	got, err := repo.Get(context.Background(), e.Key())
	require.NoError(t, err)
	assert.Equal(t, e, got)

	mock.ExpectQuery(`FROM entries WHERE address`).WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), pool.EntryKey{Title: "missing", Owner: e.Owner})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListSince(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM entries\s+WHERE created_at >= \$1\s+ORDER BY created_at, address`).
		WithArgs(int64(500), 0).
		WillReturnRows(entryRows().
			AddRow(owner(1).String(), "a", "", int64(10000), int64(500), int64(1), int64(0)).
			AddRow(owner(2).String(), "b", "r", int64(99999), int64(501), int64(2), int64(1)))

	got, err := repo.ListSince(context.Background(), 500, -1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, owner(2), got[1].Owner)
	assert.Equal(t, uint32(99999), got[1].SelectionTag)
	assert.Equal(t, uint64(2), got[1].Contribution)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSince_ScanError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM entries`).
		WillReturnRows(entryRows().AddRow("not-hex", "a", "", int64(10000), int64(500), int64(1), int64(0)))

	_, err := repo.ListSince(context.Background(), 0, 10)
	assert.Error(t, err)
}

func TestListEpoch(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM entries\s+WHERE epoch = \$1\s+ORDER BY created_at, address`).
		WithArgs(int64(3), 10).
		WillReturnRows(entryRows().
			AddRow(owner(1).String(), "a", "", int64(10000), int64(500), int64(1), int64(3)))

	got, err := repo.ListEpoch(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(3), got[0].Epoch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEpochEntryAt(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM entries\s+WHERE epoch = \$1\s+ORDER BY created_at, address\s+OFFSET \$2 LIMIT 1`).
		WithArgs(int64(3), int64(1_500)).
		WillReturnRows(entryRows().
			AddRow(owner(2).String(), "b", "", int64(20000), int64(700), int64(5), int64(3)))

	got, err := repo.EpochEntryAt(context.Background(), 3, 1_500)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Title)
	assert.Equal(t, owner(2), got.Owner)

	mock.ExpectQuery(`OFFSET \$2 LIMIT 1`).WillReturnError(sql.ErrNoRows)
	_, err = repo.EpochEntryAt(context.Background(), 3, 2)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectQuery(`OFFSET \$2 LIMIT 1`).WillReturnError(errors.New("conn reset"))
	_, err = repo.EpochEntryAt(context.Background(), 3, 0)
	assert.ErrorContains(t, err, "conn reset")

	require.NoError(t, mock.ExpectationsWereMet())
}
