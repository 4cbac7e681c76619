package draw

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/logging"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/dmitrijs2005/gophpool/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	creator  = pool.DeriveAddress([]byte("creator"))
	operator = pool.DeriveAddress([]byte("operator"))
	alice    = pool.DeriveAddress([]byte("alice"))
	bob      = pool.DeriveAddress([]byte("bob"))
)

type fakeSettler struct {
	mu      sync.Mutex
	view    services.PoolView
	entries []pool.Entry
	epochs  []uint64
	err     error
	calls   []services.SettleRequest
	callers []pool.Identity
	settled chan struct{}
}

func (f *fakeSettler) GetPool(context.Context) (*services.PoolView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.view
	return &v, nil
}

func (f *fakeSettler) EpochEntryAt(_ context.Context, epoch, index uint64) (pool.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epochs = append(f.epochs, epoch)
	if index >= uint64(len(f.entries)) {
		return pool.Entry{}, common.ErrorNotFound
	}
	return f.entries[index], nil
}

func (f *fakeSettler) Settle(_ context.Context, caller pool.Identity, req services.SettleRequest) (*pool.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, req)
	f.callers = append(f.callers, caller)
	if f.settled != nil {
		select {
		case f.settled <- struct{}{}:
		default:
		}
	}
	return &pool.Settlement{ID: "s1", Caller: caller}, nil
}

type fakeLocker struct {
	err      error
	released int
}

type fakeLock struct{ l *fakeLocker }

func (f fakeLock) Release(context.Context) error {
	f.l.released++
	return nil
}

func (l *fakeLocker) Obtain(context.Context, string, time.Duration) (Lock, error) {
	if l.err != nil {
		return nil, l.err
	}
	return fakeLock{l}, nil
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestScheduler(settler Settler, locker Locker, op pool.Identity) *Scheduler {
	s := NewScheduler(settler, locker, "@weekly", op, time.Minute, testLogger())
	s.clock = fixedClock(time.Unix(2_000_000, 0))
	return s
}

func stubPick(t *testing.T, i uint64) {
	t.Helper()
	orig := pickIndex
	t.Cleanup(func() { pickIndex = orig })
	pickIndex = func(n uint64) (uint64, error) { return i, nil }
}

func readyPool() *fakeSettler {
	return &fakeSettler{
		view: services.PoolView{
			Ledger: pool.Ledger{Creator: creator, TotalPool: 150, TotalEntries: 2, LastSettlementTime: 1_000, Epoch: 4},
			// Cooldown passed.
			NextSettlementAt: 1_500_000,
		},
		entries: []pool.Entry{
			{Owner: alice, Title: "t1", Contribution: 100},
			{Owner: bob, Title: "t2", Contribution: 50},
		},
	}
}

func TestRunOnce_SettlesPickedEntry(t *testing.T) {
	stubPick(t, 1)
	settler := readyPool()
	locker := &fakeLocker{}
	s := newTestScheduler(settler, locker, pool.Identity{})

	rec, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.Len(t, settler.calls, 1)
	assert.Equal(t, services.SettleRequest{
		Winner:        pool.EntryKey{Title: "t2", Owner: bob},
		WinnerPayout:  bob,
		CreatorPayout: creator,
	}, settler.calls[0])
	assert.Equal(t, creator, settler.callers[0])
	assert.Equal(t, []uint64{4}, settler.epochs)
	assert.Equal(t, 1, locker.released)
}

func TestRunOnce_DrawsBeyondFirstPage(t *testing.T) {
	const total = 2_500
	settler := readyPool()
	settler.entries = make([]pool.Entry, total)
	for i := range settler.entries {
		settler.entries[i] = pool.Entry{Owner: alice, Title: fmt.Sprintf("t%d", i)}
	}
	settler.view.Ledger.TotalEntries = total

	var bound uint64
	orig := pickIndex
	t.Cleanup(func() { pickIndex = orig })
	pickIndex = func(n uint64) (uint64, error) {
		bound = n
		return n - 1, nil
	}

	_, err := newTestScheduler(settler, nil, pool.Identity{}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(total), bound)
	require.Len(t, settler.calls, 1)
	assert.Equal(t, "t2499", settler.calls[0].Winner.Title)
}

func TestRunOnce_UsesOperatorIdentity(t *testing.T) {
	stubPick(t, 0)
	settler := readyPool()
	s := newTestScheduler(settler, nil, operator)

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, operator, settler.callers[0])
}

func TestRunOnce_Skips(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeSettler, *fakeLocker)
	}{
		{"no entries", func(f *fakeSettler, _ *fakeLocker) {
			f.view.Ledger.TotalEntries = 0
		}},
		{"cooldown", func(f *fakeSettler, _ *fakeLocker) {
			f.view.NextSettlementAt = 2_000_001
		}},
		{"lock held elsewhere", func(_ *fakeSettler, l *fakeLocker) {
			l.err = ErrLockNotObtained
		}},
		{"epoch listing empty", func(f *fakeSettler, _ *fakeLocker) {
			f.entries = nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settler := readyPool()
			locker := &fakeLocker{}
			tt.mutate(settler, locker)

			rec, err := newTestScheduler(settler, locker, pool.Identity{}).RunOnce(context.Background())
			require.NoError(t, err)
			assert.Nil(t, rec)
			assert.Empty(t, settler.calls)
		})
	}
}

func TestRunOnce_Errors(t *testing.T) {
	settler := readyPool()
	_, err := newTestScheduler(settler, &fakeLocker{err: errors.New("redis down")}, pool.Identity{}).RunOnce(context.Background())
	assert.ErrorContains(t, err, "redis down")

	settler.err = pool.ErrCooldownActive
	_, err = newTestScheduler(settler, nil, pool.Identity{}).RunOnce(context.Background())
	assert.ErrorIs(t, err, pool.ErrCooldownActive)

	orig := pickIndex
	t.Cleanup(func() { pickIndex = orig })
	pickIndex = func(uint64) (uint64, error) { return 0, errors.New("entropy") }
	_, err = newTestScheduler(readyPool(), nil, pool.Identity{}).RunOnce(context.Background())
	assert.ErrorContains(t, err, "entropy")
}

func TestPickIndex_InRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		v, err := pickIndex(3)
		require.NoError(t, err)
		assert.Less(t, v, uint64(3))
	}
}

func TestStart_RunsOnScheduleAndStops(t *testing.T) {
	settler := readyPool()
	settler.settled = make(chan struct{}, 1)
	s := NewScheduler(settler, nil, "@every 1s", pool.Identity{}, time.Minute, testLogger())
	s.clock = fixedClock(time.Unix(2_000_000, 0))

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	select {
	case <-settler.settled:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled draw did not run")
	}
	s.Stop()
	s.Stop()
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := NewScheduler(readyPool(), nil, "not a schedule", pool.Identity{}, time.Minute, testLogger())
	assert.Error(t, s.Start(context.Background()))
	s.Stop()
}

func TestNopLocker(t *testing.T) {
	l, err := NopLocker{}.Obtain(context.Background(), "k", time.Second)
	require.NoError(t, err)
	assert.NoError(t, l.Release(context.Background()))
}
