package pool

import "errors"

var (
	// Storage-shaped conditions.
	ErrAlreadyExists  = errors.New("already exists")
	ErrNotInitialized = errors.New("pool is not initialized")

	// Funds.
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// Settlement preconditions, in the order they are checked.
	ErrNoEntries       = errors.New("no entries found in the pool")
	ErrCooldownActive  = errors.New("settlement cooldown is active")
	ErrInvalidWinner   = errors.New("chosen winner does not match any entry")
	ErrWinnerMismatch  = errors.New("winner payout identity does not match entry owner")
	ErrCreatorMismatch = errors.New("creator payout identity does not match pool creator")

	// Input validation.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")
	ErrInvalidArgument   = errors.New("invalid argument")

	ErrNotAuthorized = errors.New("caller is not authorized")
)

var kinds = []struct {
	kind string
	err  error
}{
	{"ALREADY_EXISTS", ErrAlreadyExists},
	{"NOT_INITIALIZED", ErrNotInitialized},
	{"INSUFFICIENT_FUNDS", ErrInsufficientFunds},
	{"ARITHMETIC_OVERFLOW", ErrArithmeticOverflow},
	{"NO_ENTRIES", ErrNoEntries},
	{"COOLDOWN_ACTIVE", ErrCooldownActive},
	{"INVALID_WINNER", ErrInvalidWinner},
	{"WINNER_MISMATCH", ErrWinnerMismatch},
	{"CREATOR_MISMATCH", ErrCreatorMismatch},
	{"SIZE_LIMIT_EXCEEDED", ErrSizeLimitExceeded},
	{"INVALID_ARGUMENT", ErrInvalidArgument},
	{"NOT_AUTHORIZED", ErrNotAuthorized},
}

// KindOf returns the stable reason code of a domain error, or "" when err
// is not one of the pool errors.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// FromKind returns the sentinel for a reason code produced by KindOf.
func FromKind(kind string) (error, bool) {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err, true
		}
	}
	return nil, false
}
