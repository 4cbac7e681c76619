// Package draw settles the pool on a schedule: it picks a random entry of the
// running epoch and pays the pool out to its owner.
package draw

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/logging"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/dmitrijs2005/gophpool/internal/server/services"
	"github.com/robfig/cron/v3"
)

const lockKey = "gophpool:draw"

// pickIndex returns a uniformly random index in [0, n).
var pickIndex = func(n uint64) (uint64, error) {
	v, err := rand.Int(rand.Reader, new(big.Int).SetUint64(n))
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// Settler is the part of the pool service the scheduler drives.
type Settler interface {
	GetPool(ctx context.Context) (*services.PoolView, error)
	EpochEntryAt(ctx context.Context, epoch, index uint64) (pool.Entry, error)
	Settle(ctx context.Context, caller pool.Identity, req services.SettleRequest) (*pool.Settlement, error)
}

type Scheduler struct {
	settler  Settler
	locker   Locker
	logger   logging.Logger
	clock    pool.Clock
	schedule string
	lockTTL  time.Duration
	// operator settles on behalf of the scheduler; zero means the creator.
	operator pool.Identity

	mu   sync.Mutex
	cron *cron.Cron
}

func NewScheduler(settler Settler, locker Locker, schedule string, operator pool.Identity, lockTTL time.Duration, logger logging.Logger) *Scheduler {
	if locker == nil {
		locker = NopLocker{}
	}
	return &Scheduler{
		settler:  settler,
		locker:   locker,
		logger:   logger.With("module", "draw"),
		clock:    pool.SystemClock{},
		schedule: schedule,
		lockTTL:  lockTTL,
		operator: operator,
	}
}

// RunOnce performs a single draw. It returns a nil settlement when there is
// nothing to do: no entries, an active cooldown or another instance drawing.
func (s *Scheduler) RunOnce(ctx context.Context) (*pool.Settlement, error) {
	lock, err := s.locker.Obtain(ctx, lockKey, s.lockTTL)
	if errors.Is(err, ErrLockNotObtained) {
		s.logger.Info(ctx, "draw skipped, lock held elsewhere")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("obtain draw lock: %w", err)
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	v, err := s.settler.GetPool(ctx)
	if err != nil {
		return nil, err
	}
	if v.Ledger.TotalEntries == 0 {
		s.logger.Info(ctx, "draw skipped, no entries")
		return nil, nil
	}
	if now := s.clock.Now().Unix(); v.NextSettlementAt > now {
		s.logger.Info(ctx, "draw skipped, cooldown active", "next_settlement_at", v.NextSettlementAt)
		return nil, nil
	}

	// Every contribution of the epoch is counted in TotalEntries, so the
	// index covers all candidates.
	i, err := pickIndex(v.Ledger.TotalEntries)
	if err != nil {
		return nil, fmt.Errorf("pick winner: %w", err)
	}
	winner, err := s.settler.EpochEntryAt(ctx, v.Ledger.Epoch, i)
	if errors.Is(err, common.ErrorNotFound) {
		s.logger.Warn(ctx, "draw skipped, ledger counts entries but none found for the epoch",
			"epoch", v.Ledger.Epoch, "index", i, "total_entries", v.Ledger.TotalEntries)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	caller := s.operator
	if caller.IsZero() {
		caller = v.Ledger.Creator
	}

	rec, err := s.settler.Settle(ctx, caller, services.SettleRequest{
		Winner:        winner.Key(),
		WinnerPayout:  winner.Owner,
		CreatorPayout: v.Ledger.Creator,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "draw settled", "settlement", rec.ID, "winner", winner.Owner.String(),
		"title", winner.Title, "epoch", v.Ledger.Epoch, "candidates", v.Ledger.TotalEntries)
	return rec, nil
}

// Start runs RunOnce on the schedule until Stop is called. Each run is bound
// to ctx and the lock TTL.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("draw scheduler already started")
	}

	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.lockTTL)
		defer cancel()
		if _, err := s.RunOnce(runCtx); err != nil {
			s.logger.Error(runCtx, "draw failed", "error", err, "reason", pool.KindOf(err))
		}
	})
	if err != nil {
		return fmt.Errorf("draw schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info(ctx, "draw scheduler started", "schedule", s.schedule)
	return nil
}

// Stop stops the schedule and waits for a running draw to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
