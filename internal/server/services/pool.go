// Package services contains the server-side business logic. PoolService
// applies the pure pool operations against storage, one transaction per
// operation, with the ledger row locked for its whole duration.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/dbx"
	"github.com/dmitrijs2005/gophpool/internal/logging"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/dmitrijs2005/gophpool/internal/server/config"
	"github.com/dmitrijs2005/gophpool/internal/server/repositories/ledgers"
	"github.com/dmitrijs2005/gophpool/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ReceiptArchive stores settlement receipts outside the database.
type ReceiptArchive interface {
	PutReceipt(ctx context.Context, s *pool.Settlement) (string, error)
	PresignReceipt(ctx context.Context, key string) (string, error)
}

// Recorder observes pool operations, e.g. for metrics.
type Recorder interface {
	EntryCreated(contribution uint64)
	Settled(p pool.Payout)
	Airdropped(amount uint64)
	Rejected(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) EntryCreated(uint64)    {}
func (nopRecorder) Settled(pool.Payout)    {}
func (nopRecorder) Airdropped(uint64)      {}
func (nopRecorder) Rejected(string, error) {}

// SettleRequest names the claimed winning entry and the two payout
// identities.
type SettleRequest struct {
	Winner        pool.EntryKey
	WinnerPayout  pool.Identity
	CreatorPayout pool.Identity
}

// PoolView is the ledger together with the balance held at its address.
type PoolView struct {
	Address          pool.Identity `json:"address"`
	Ledger           pool.Ledger   `json:"ledger"`
	Balance          uint64        `json:"balance"`
	NextSettlementAt int64         `json:"next_settlement_at"`
}

type PoolService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	logger       logging.Logger
	clock        pool.Clock
	selection    pool.SelectionSource
	cooldown     time.Duration
	authority    map[pool.Identity]struct{}
	airdropLimit uint64
	archive      ReceiptArchive
	recorder     Recorder
}

type Option func(*PoolService)

// WithClock replaces the wall clock and the clock-derived selection source.
func WithClock(c pool.Clock) Option {
	return func(s *PoolService) {
		s.clock = c
		s.selection = pool.TimeSelection{Clock: c}
	}
}

func WithSelection(sel pool.SelectionSource) Option {
	return func(s *PoolService) { s.selection = sel }
}

func WithArchive(a ReceiptArchive) Option {
	return func(s *PoolService) { s.archive = a }
}

func WithRecorder(r Recorder) Option {
	return func(s *PoolService) { s.recorder = r }
}

// NewPoolService builds the service from configuration. Invalid settle
// authority identities are reported here rather than at settlement time.
func NewPoolService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger, opts ...Option) (*PoolService, error) {
	authority := make(map[pool.Identity]struct{}, len(cfg.SettleAuthority))
	for _, h := range cfg.SettleAuthority {
		id, err := pool.ParseIdentity(h)
		if err != nil {
			return nil, fmt.Errorf("settle authority %q: %w", h, err)
		}
		authority[id] = struct{}{}
	}

	s := &PoolService{
		db:           db,
		repomanager:  m,
		logger:       logger.With("module", "pool_service"),
		clock:        pool.SystemClock{},
		selection:    pool.TimeSelection{Clock: pool.SystemClock{}},
		cooldown:     cfg.Cooldown,
		authority:    authority,
		airdropLimit: cfg.AirdropLimit,
		recorder:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *PoolService) now() int64 {
	return s.clock.Now().Unix()
}

// lockLedger loads and locks the ledger row.
func lockLedger(ctx context.Context, repo ledgers.Repository) (pool.Ledger, error) {
	l, err := repo.GetForUpdate(ctx, pool.LedgerAddress())
	if errors.Is(err, common.ErrorNotFound) {
		return pool.Ledger{}, pool.ErrNotInitialized
	}
	return l, err
}

func (s *PoolService) reject(ctx context.Context, op string, err error) error {
	s.recorder.Rejected(op, err)
	if pool.KindOf(err) == "" {
		s.logger.Error(ctx, op+" failed", "error", err)
	} else {
		s.logger.Info(ctx, op+" rejected", "reason", pool.KindOf(err), "error", err)
	}
	return err
}

// CanSettle reports whether caller may settle under the configured
// authority. An empty authority lets anyone settle.
func (s *PoolService) CanSettle(caller pool.Identity) bool {
	if len(s.authority) == 0 {
		return true
	}
	_, ok := s.authority[caller]
	return ok
}

// InitializePool creates the singleton ledger owned by creator. It fails
// with pool.ErrAlreadyExists if the ledger exists and never resets it.
func (s *PoolService) InitializePool(ctx context.Context, creator pool.Identity) (pool.Ledger, error) {
	l := pool.Initialize(creator)
	addr := pool.LedgerAddress()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Ledgers(tx).Create(ctx, addr, l); err != nil {
			return err
		}
		return s.repomanager.Balances(tx).Open(ctx, addr)
	})
	if err != nil {
		return pool.Ledger{}, s.reject(ctx, "initialize", err)
	}

	s.logger.Info(ctx, "pool initialized", "creator", creator.String(), "address", addr.String())
	return l, nil
}

// CreateEntry records an entry for owner and moves contribution from the
// owner's balance into the pool. Either all of it happens or none.
func (s *PoolService) CreateEntry(ctx context.Context, owner pool.Identity, title, externalReference string, contribution uint64) (pool.Entry, error) {
	if err := pool.ValidateEntryFields(title, externalReference); err != nil {
		return pool.Entry{}, s.reject(ctx, "create_entry", err)
	}

	addr := pool.LedgerAddress()
	var entry pool.Entry

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ledgerRepo := s.repomanager.Ledgers(tx)
		entryRepo := s.repomanager.Entries(tx)

		l, err := lockLedger(ctx, ledgerRepo)
		if err != nil {
			return err
		}

		key := pool.EntryKey{Title: title, Owner: owner}
		exists, err := entryRepo.Exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("entry %q of %s: %w", title, owner.Short(), pool.ErrAlreadyExists)
		}

		next, err := l.Contribute(contribution)
		if err != nil {
			return err
		}

		entry, err = pool.NewEntry(owner, title, externalReference, contribution, s.selection.Next(), s.now())
		if err != nil {
			return err
		}
		entry.Epoch = l.Epoch

		if err := s.repomanager.Balances(tx).Transfer(ctx, owner, addr, contribution); err != nil {
			return err
		}
		if err := entryRepo.Create(ctx, entry); err != nil {
			return err
		}
		return ledgerRepo.Save(ctx, addr, next)
	})
	if err != nil {
		return pool.Entry{}, s.reject(ctx, "create_entry", err)
	}

	s.recorder.EntryCreated(contribution)
	s.logger.Info(ctx, "entry created",
		"owner", owner.String(), "title", title, "contribution", contribution, "tag", entry.SelectionTag)
	return entry, nil
}

// Settle pays out the pool to the winner and the creator and starts a new
// epoch. The winner entry is trusted as long as the payout goes to its
// owner; nothing here proves it was the entry drawn for the epoch.
func (s *PoolService) Settle(ctx context.Context, caller pool.Identity, req SettleRequest) (*pool.Settlement, error) {
	if !s.CanSettle(caller) {
		return nil, s.reject(ctx, "settle", fmt.Errorf("%w: %s may not settle", pool.ErrNotAuthorized, caller.Short()))
	}

	addr := pool.LedgerAddress()
	var rec *pool.Settlement

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ledgerRepo := s.repomanager.Ledgers(tx)
		balanceRepo := s.repomanager.Balances(tx)

		l, err := lockLedger(ctx, ledgerRepo)
		if err != nil {
			return err
		}

		var winner *pool.Entry
		e, err := s.repomanager.Entries(tx).Get(ctx, req.Winner)
		switch {
		case err == nil:
			winner = &e
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		now := s.now()
		p, err := l.Settle(pool.SettleInput{
			Winner:        winner,
			WinnerPayout:  req.WinnerPayout,
			CreatorPayout: req.CreatorPayout,
		}, now, s.cooldown)
		if err != nil {
			return err
		}

		if err := balanceRepo.Transfer(ctx, addr, p.WinnerPayout, p.WinnerShare); err != nil {
			return fmt.Errorf("winner transfer: %w", err)
		}
		if err := balanceRepo.Transfer(ctx, addr, p.CreatorPayout, p.CreatorShare); err != nil {
			return fmt.Errorf("creator transfer: %w", err)
		}
		if err := ledgerRepo.Save(ctx, addr, p.Next); err != nil {
			return err
		}

		rec = &pool.Settlement{
			ID:          uuid.NewString(),
			Caller:      caller,
			WinnerEntry: req.Winner.Address(),
			WinnerTitle: req.Winner.Title,
			Payout:      p,
			SettledAt:   now,
		}
		return s.repomanager.Settlements(tx).Create(ctx, rec)
	})
	if err != nil {
		return nil, s.reject(ctx, "settle", err)
	}

	s.recorder.Settled(rec.Payout)
	s.logger.Info(ctx, "pool settled",
		"settlement", rec.ID, "winner", rec.WinnerPayout.String(), "winner_share", rec.WinnerShare,
		"creator_share", rec.CreatorShare, "entries", rec.Entries, "tag", rec.WinnerTag)

	s.archiveReceipt(ctx, rec)
	return rec, nil
}

// archiveReceipt uploads the receipt and records its key. Failures are only
// logged: the settlement is already committed.
func (s *PoolService) archiveReceipt(ctx context.Context, rec *pool.Settlement) {
	if s.archive == nil {
		return
	}
	key, err := s.archive.PutReceipt(ctx, rec)
	if err != nil {
		s.logger.Warn(ctx, "receipt archive failed", "settlement", rec.ID, "error", err)
		return
	}
	if err := s.repomanager.Settlements(s.db).SetReceiptKey(ctx, rec.ID, key); err != nil {
		s.logger.Warn(ctx, "receipt key not recorded", "settlement", rec.ID, "key", key, "error", err)
		return
	}
	rec.ReceiptKey = key
}

// GetPool returns the ledger, or pool.ErrNotInitialized.
func (s *PoolService) GetPool(ctx context.Context) (*PoolView, error) {
	addr := pool.LedgerAddress()
	l, err := s.repomanager.Ledgers(s.db).Get(ctx, addr)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, pool.ErrNotInitialized
		}
		return nil, err
	}
	balance, err := s.repomanager.Balances(s.db).Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &PoolView{
		Address:          addr,
		Ledger:           l,
		Balance:          balance,
		NextSettlementAt: l.NextSettlementAt(s.cooldown),
	}, nil
}

func (s *PoolService) GetEntry(ctx context.Context, key pool.EntryKey) (pool.Entry, error) {
	return s.repomanager.Entries(s.db).Get(ctx, key)
}

// ListEntries returns entries created at or after since.
func (s *PoolService) ListEntries(ctx context.Context, since int64, limit int) ([]pool.Entry, error) {
	return s.repomanager.Entries(s.db).ListSince(ctx, since, clampLimit(limit))
}

// EpochEntries returns the entries of the running epoch, i.e. those created
// since the last settlement.
func (s *PoolService) EpochEntries(ctx context.Context, limit int) ([]pool.Entry, error) {
	l, err := s.repomanager.Ledgers(s.db).Get(ctx, pool.LedgerAddress())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, pool.ErrNotInitialized
		}
		return nil, err
	}
	return s.repomanager.Entries(s.db).ListEpoch(ctx, l.Epoch, clampLimit(limit))
}

// EpochEntryAt returns the index-th entry of epoch, oldest first. Index
// ranges over [0, TotalEntries) of the ledger at that epoch.
func (s *PoolService) EpochEntryAt(ctx context.Context, epoch, index uint64) (pool.Entry, error) {
	return s.repomanager.Entries(s.db).EpochEntryAt(ctx, epoch, index)
}

func (s *PoolService) GetBalance(ctx context.Context, id pool.Identity) (uint64, error) {
	return s.repomanager.Balances(s.db).Get(ctx, id)
}

// Airdrop credits test funds. It is disabled when the configured limit is 0
// and never credits the pool's own balance.
func (s *PoolService) Airdrop(ctx context.Context, id pool.Identity, amount uint64) (uint64, error) {
	switch {
	case s.airdropLimit == 0:
		return 0, s.reject(ctx, "airdrop", fmt.Errorf("%w: airdrops are disabled", pool.ErrNotAuthorized))
	case amount == 0 || amount > s.airdropLimit:
		return 0, s.reject(ctx, "airdrop", fmt.Errorf("%w: airdrop must be between 1 and %d", pool.ErrInvalidArgument, s.airdropLimit))
	case id == pool.LedgerAddress():
		return 0, s.reject(ctx, "airdrop", fmt.Errorf("%w: can not airdrop to the pool", pool.ErrInvalidArgument))
	}

	var balance uint64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		balance, err = s.repomanager.Balances(tx).Credit(ctx, id, amount)
		return err
	})
	if err != nil {
		return 0, s.reject(ctx, "airdrop", err)
	}

	s.recorder.Airdropped(amount)
	s.logger.Info(ctx, "airdrop", "identity", id.String(), "amount", amount, "balance", balance)
	return balance, nil
}

func (s *PoolService) ListSettlements(ctx context.Context, limit int) ([]*pool.Settlement, error) {
	return s.repomanager.Settlements(s.db).List(ctx, clampLimit(limit))
}

func (s *PoolService) GetSettlement(ctx context.Context, id string) (*pool.Settlement, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: settlement id: %v", pool.ErrInvalidArgument, err)
	}
	return s.repomanager.Settlements(s.db).Get(ctx, id)
}

// GetReceiptURL returns a presigned URL of the settlement's receipt. A
// settlement whose upload failed earlier is archived again first.
func (s *PoolService) GetReceiptURL(ctx context.Context, id string) (string, error) {
	if s.archive == nil {
		return "", fmt.Errorf("receipt archive disabled: %w", common.ErrorNotFound)
	}
	rec, err := s.GetSettlement(ctx, id)
	if err != nil {
		return "", err
	}
	if rec.ReceiptKey == "" {
		s.archiveReceipt(ctx, rec)
		if rec.ReceiptKey == "" {
			return "", fmt.Errorf("receipt of %s not archived: %w", id, common.ErrorInternal)
		}
	}
	return s.archive.PresignReceipt(ctx, rec.ReceiptKey)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
