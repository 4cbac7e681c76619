package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/dbx"
	"github.com/dmitrijs2005/gophpool/internal/logging"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/dmitrijs2005/gophpool/internal/server/repositories/balances"
	"github.com/dmitrijs2005/gophpool/internal/server/repositories/entries"
	"github.com/dmitrijs2005/gophpool/internal/server/repositories/ledgers"
	"github.com/dmitrijs2005/gophpool/internal/server/repositories/settlements"
	"github.com/stretchr/testify/require"
)

// memStore backs the fake repositories. Transactions are only observed via
// sqlmock; the store itself applies writes immediately.
type memStore struct {
	mu          sync.Mutex
	ledger      *pool.Ledger
	balances    map[pool.Identity]uint64
	entries     map[pool.Identity]pool.Entry
	settlements []*pool.Settlement
	receiptErr  error
}

func newMemStore() *memStore {
	return &memStore{
		balances: map[pool.Identity]uint64{},
		entries:  map[pool.Identity]pool.Entry{},
	}
}

func (m *memStore) totalFunds() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum uint64
	for _, v := range m.balances {
		sum += v
	}
	return sum
}

func (m *memStore) balance(id pool.Identity) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id]
}

type fakeLedgers struct{ s *memStore }

func (f fakeLedgers) Create(_ context.Context, _ pool.Identity, l pool.Ledger) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.ledger != nil {
		return pool.ErrAlreadyExists
	}
	f.s.ledger = &l
	return nil
}

func (f fakeLedgers) Get(_ context.Context, _ pool.Identity) (pool.Ledger, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.ledger == nil {
		return pool.Ledger{}, common.ErrorNotFound
	}
	return *f.s.ledger, nil
}

func (f fakeLedgers) GetForUpdate(ctx context.Context, addr pool.Identity) (pool.Ledger, error) {
	return f.Get(ctx, addr)
}

func (f fakeLedgers) Save(_ context.Context, _ pool.Identity, l pool.Ledger) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.ledger == nil {
		return common.ErrorNotFound
	}
	f.s.ledger = &l
	return nil
}

type fakeBalances struct{ s *memStore }

func (f fakeBalances) Get(_ context.Context, owner pool.Identity) (uint64, error) {
	return f.s.balance(owner), nil
}

func (f fakeBalances) Open(_ context.Context, owner pool.Identity) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.balances[owner]; !ok {
		f.s.balances[owner] = 0
	}
	return nil
}

func (f fakeBalances) Credit(_ context.Context, owner pool.Identity, amount uint64) (uint64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	next, err := pool.AddAmounts(f.s.balances[owner], amount)
	if err != nil {
		return 0, err
	}
	f.s.balances[owner] = next
	return next, nil
}

func (f fakeBalances) Debit(_ context.Context, owner pool.Identity, amount uint64) (uint64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.balances[owner] < amount {
		return 0, pool.ErrInsufficientFunds
	}
	f.s.balances[owner] -= amount
	return f.s.balances[owner], nil
}

func (f fakeBalances) Transfer(ctx context.Context, from, to pool.Identity, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if _, err := f.Debit(ctx, from, amount); err != nil {
		return err
	}
	_, err := f.Credit(ctx, to, amount)
	return err
}

type fakeEntries struct{ s *memStore }

func (f fakeEntries) Create(_ context.Context, e pool.Entry) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.entries[e.Address()]; ok {
		return pool.ErrAlreadyExists
	}
	f.s.entries[e.Address()] = e
	return nil
}

func (f fakeEntries) Exists(_ context.Context, key pool.EntryKey) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	_, ok := f.s.entries[key.Address()]
	return ok, nil
}

func (f fakeEntries) Get(_ context.Context, key pool.EntryKey) (pool.Entry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e, ok := f.s.entries[key.Address()]
	if !ok {
		return pool.Entry{}, common.ErrorNotFound
	}
	return e, nil
}

func (f fakeEntries) list(keep func(pool.Entry) bool, limit int) []pool.Entry {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []pool.Entry
	for _, e := range f.s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Title < out[j].Title
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f fakeEntries) ListSince(_ context.Context, since int64, limit int) ([]pool.Entry, error) {
	return f.list(func(e pool.Entry) bool { return e.CreatedAt >= since }, limit), nil
}

func (f fakeEntries) ListEpoch(_ context.Context, epoch uint64, limit int) ([]pool.Entry, error) {
	return f.list(func(e pool.Entry) bool { return e.Epoch == epoch }, limit), nil
}

func (f fakeEntries) EpochEntryAt(_ context.Context, epoch, index uint64) (pool.Entry, error) {
	all := f.list(func(e pool.Entry) bool { return e.Epoch == epoch }, 0)
	if index >= uint64(len(all)) {
		return pool.Entry{}, common.ErrorNotFound
	}
	return all[index], nil
}

type fakeSettlements struct{ s *memStore }

func (f fakeSettlements) Create(_ context.Context, rec *pool.Settlement) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	cp := *rec
	f.s.settlements = append(f.s.settlements, &cp)
	return nil
}

func (f fakeSettlements) Get(_ context.Context, id string) (*pool.Settlement, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, rec := range f.s.settlements {
		if rec.ID == id {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeSettlements) List(_ context.Context, limit int) ([]*pool.Settlement, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*pool.Settlement
	for i := len(f.s.settlements) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *f.s.settlements[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (f fakeSettlements) SetReceiptKey(_ context.Context, id, key string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.receiptErr != nil {
		return f.s.receiptErr
	}
	for _, rec := range f.s.settlements {
		if rec.ID == id {
			rec.ReceiptKey = key
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeRepoManager struct{ s *memStore }

func (f fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f fakeRepoManager) Ledgers(dbx.DBTX) ledgers.Repository          { return fakeLedgers{f.s} }
func (f fakeRepoManager) Entries(dbx.DBTX) entries.Repository          { return fakeEntries{f.s} }
func (f fakeRepoManager) Balances(dbx.DBTX) balances.Repository        { return fakeBalances{f.s} }
func (f fakeRepoManager) Settlements(dbx.DBTX) settlements.Repository  { return fakeSettlements{f.s} }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixedSelection uint32

func (s fixedSelection) Next() uint32 { return uint32(s) }

type fakeArchive struct {
	mu      sync.Mutex
	putErr  error
	puts    int
	objects map[string]string
}

func (a *fakeArchive) PutReceipt(_ context.Context, rec *pool.Settlement) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.puts++
	if a.putErr != nil {
		return "", a.putErr
	}
	if a.objects == nil {
		a.objects = map[string]string{}
	}
	key := "receipts/" + rec.ID + ".json"
	a.objects[key] = rec.ID
	return key, nil
}

func (a *fakeArchive) PresignReceipt(_ context.Context, key string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.objects[key]; !ok {
		return "", errors.New("no such key")
	}
	return "https://s3.local/" + key + "?sig=x", nil
}

type countingRecorder struct {
	mu       sync.Mutex
	entries  int
	settled  []pool.Payout
	airdrops int
	rejected map[string]int
}

func (r *countingRecorder) EntryCreated(uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries++
}

func (r *countingRecorder) Settled(p pool.Payout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, p)
}

func (r *countingRecorder) Airdropped(uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.airdrops++
}

func (r *countingRecorder) Rejected(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejected == nil {
		r.rejected = map[string]int{}
	}
	r.rejected[pool.KindOf(err)]++
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

// expectTx registers one committed transaction.
func expectTx(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectCommit()
}

// expectRollback registers one rolled back transaction.
func expectRollback(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}
