package pool

import (
	"fmt"
	"math"
	"math/bits"
	"time"
)

// MaxAmount is the largest balance or pool total that can be represented.
// Storage keeps amounts in signed 64-bit columns, so the bound is MaxInt64.
const MaxAmount = math.MaxInt64

const (
	// WinnerPercent of the pool goes to the winner, the remainder to the creator.
	WinnerPercent = 90

	// DefaultCooldown is the minimum time between two settlements.
	DefaultCooldown = 7 * 24 * time.Hour
)

// Ledger is the pool aggregate: undistributed funds and epoch counters.
// Epoch counts settlements; entries are stamped with the epoch they were
// created in.
type Ledger struct {
	Creator            Identity `json:"creator"`
	TotalPool          uint64   `json:"total_pool"`
	TotalEntries       uint64   `json:"total_entries"`
	LastWinnerTag      uint32   `json:"last_winner_tag"`
	LastSettlementTime int64    `json:"last_settlement_time"`
	Epoch              uint64   `json:"epoch"`
}

// Initialize returns a zeroed ledger owned by creator.
func Initialize(creator Identity) Ledger {
	return Ledger{Creator: creator}
}

// AddAmounts returns a+b, failing when the sum exceeds MaxAmount.
func AddAmounts(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 || sum > MaxAmount {
		return 0, fmt.Errorf("%w: %d + %d", ErrArithmeticOverflow, a, b)
	}
	return sum, nil
}

// SubAmounts returns a-b, failing when b is larger than a.
func SubAmounts(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", ErrArithmeticOverflow, a, b)
	}
	return diff, nil
}

// Contribute returns the ledger after accepting one entry worth amount.
func (l Ledger) Contribute(amount uint64) (Ledger, error) {
	pool, err := AddAmounts(l.TotalPool, amount)
	if err != nil {
		return l, err
	}
	entries, carry := bits.Add64(l.TotalEntries, 1, 0)
	if carry != 0 {
		return l, fmt.Errorf("%w: entry counter", ErrArithmeticOverflow)
	}
	l.TotalPool = pool
	l.TotalEntries = entries
	return l, nil
}

// Split divides total between winner and creator. The creator receives the
// remainder so that winner+creator == total for every total.
func Split(total uint64) (winner, creator uint64) {
	hi, lo := bits.Mul64(total, WinnerPercent)
	winner, _ = bits.Div64(hi, lo, 100)
	return winner, total - winner
}

// CooldownActive reports whether a settlement at now would be too early.
func (l Ledger) CooldownActive(now int64, cooldown time.Duration) bool {
	if l.LastSettlementTime == 0 {
		return false
	}
	return now-l.LastSettlementTime < int64(cooldown/time.Second)
}

// NextSettlementAt is the earliest unix time a settlement is allowed, or 0
// when no settlement happened yet.
func (l Ledger) NextSettlementAt(cooldown time.Duration) int64 {
	if l.LastSettlementTime == 0 {
		return 0
	}
	return l.LastSettlementTime + int64(cooldown/time.Second)
}

// SettleInput names the claimed winner and both payout identities.
// Winner is nil when the referenced entry does not exist.
type SettleInput struct {
	Winner        *Entry
	WinnerPayout  Identity
	CreatorPayout Identity
}

// Payout is a planned settlement: two transfers out of the pool and the
// ledger state after them.
type Payout struct {
	WinnerPayout  Identity `json:"winner_payout"`
	WinnerShare   uint64   `json:"winner_share"`
	CreatorPayout Identity `json:"creator_payout"`
	CreatorShare  uint64   `json:"creator_share"`
	Total         uint64   `json:"total"`
	Entries       uint64   `json:"entries"`
	WinnerTag     uint32   `json:"winner_tag"`
	Next          Ledger   `json:"-"`
}

// Settle checks the settlement preconditions and plans the payout. It does
// not verify that the winner entry is the one drawn for this epoch, only that
// the payout goes to that entry's owner.
func (l Ledger) Settle(in SettleInput, now int64, cooldown time.Duration) (Payout, error) {
	if l.TotalEntries == 0 {
		return Payout{}, ErrNoEntries
	}
	if l.CooldownActive(now, cooldown) {
		return Payout{}, fmt.Errorf("%w: next settlement at %d", ErrCooldownActive, l.NextSettlementAt(cooldown))
	}
	if in.Winner == nil {
		return Payout{}, ErrInvalidWinner
	}
	if in.WinnerPayout != in.Winner.Owner {
		return Payout{}, ErrWinnerMismatch
	}
	if in.CreatorPayout != l.Creator {
		return Payout{}, ErrCreatorMismatch
	}

	epoch, carry := bits.Add64(l.Epoch, 1, 0)
	if carry != 0 || epoch > MaxAmount {
		return Payout{}, fmt.Errorf("%w: epoch counter", ErrArithmeticOverflow)
	}

	winnerShare, creatorShare := Split(l.TotalPool)

	next := l
	next.TotalPool = 0
	next.TotalEntries = 0
	next.LastWinnerTag = in.Winner.SelectionTag
	next.LastSettlementTime = now
	next.Epoch = epoch

	return Payout{
		WinnerPayout:  in.WinnerPayout,
		WinnerShare:   winnerShare,
		CreatorPayout: in.CreatorPayout,
		CreatorShare:  creatorShare,
		Total:         l.TotalPool,
		Entries:       l.TotalEntries,
		WinnerTag:     in.Winner.SelectionTag,
		Next:          next,
	}, nil
}
