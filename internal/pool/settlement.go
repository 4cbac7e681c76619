package pool

// Settlement is the history row written by every successful settlement.
// Server and client share it through the API messages.
type Settlement struct {
	ID          string   `json:"id"`
	Caller      Identity `json:"caller"`
	WinnerEntry Identity `json:"winner_entry"`
	WinnerTitle string   `json:"winner_title"`
	Payout
	SettledAt int64 `json:"settled_at"`

	// ReceiptKey is the object key of the archived receipt, empty until the
	// archive upload succeeds.
	ReceiptKey string `json:"receipt_key,omitempty"`
}
