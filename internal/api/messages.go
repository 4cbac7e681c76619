package api

import "github.com/dmitrijs2005/gophpool/internal/pool"

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// LoginRequest proves control of Identity: Signature is the identity key's
// signature over the login message for Timestamp.
type LoginRequest struct {
	Identity  pool.Identity `json:"identity"`
	Timestamp int64         `json:"timestamp"`
	Signature []byte        `json:"signature"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// InitializePoolRequest makes the caller the pool creator.
type InitializePoolRequest struct{}

type InitializePoolResponse struct {
	Address pool.Identity `json:"address"`
	Ledger  pool.Ledger   `json:"ledger"`
}

type CreateEntryRequest struct {
	Title             string `json:"title"`
	ExternalReference string `json:"external_reference"`
	Contribution      uint64 `json:"contribution"`
}

type CreateEntryResponse struct {
	Address pool.Identity `json:"address"`
	Entry   pool.Entry    `json:"entry"`
}

type SettleRequest struct {
	WinnerTitle   string        `json:"winner_title"`
	WinnerOwner   pool.Identity `json:"winner_owner"`
	WinnerPayout  pool.Identity `json:"winner_payout"`
	CreatorPayout pool.Identity `json:"creator_payout"`
}

type SettleResponse struct {
	Settlement *pool.Settlement `json:"settlement"`
}

type GetPoolRequest struct{}

type GetPoolResponse struct {
	Address          pool.Identity `json:"address"`
	Ledger           pool.Ledger   `json:"ledger"`
	Balance          uint64        `json:"balance"`
	NextSettlementAt int64         `json:"next_settlement_at"`
}

type GetEntryRequest struct {
	Title string        `json:"title"`
	Owner pool.Identity `json:"owner"`
}

type GetEntryResponse struct {
	Address pool.Identity `json:"address"`
	Entry   pool.Entry    `json:"entry"`
}

// ListEntriesRequest lists entries created at or after Since. With Epoch set,
// Since is ignored and the running epoch is listed.
type ListEntriesRequest struct {
	Since int64 `json:"since"`
	Epoch bool  `json:"epoch"`
	Limit int   `json:"limit"`
}

type ListEntriesResponse struct {
	Entries []pool.Entry `json:"entries"`
}

type GetBalanceRequest struct {
	Identity pool.Identity `json:"identity"`
}

type GetBalanceResponse struct {
	Identity pool.Identity `json:"identity"`
	Balance  uint64        `json:"balance"`
}

// AirdropRequest credits the caller.
type AirdropRequest struct {
	Amount uint64 `json:"amount"`
}

type AirdropResponse struct {
	Balance uint64 `json:"balance"`
}

type ListSettlementsRequest struct {
	Limit int `json:"limit"`
}

type ListSettlementsResponse struct {
	Settlements []*pool.Settlement `json:"settlements"`
}

type GetReceiptURLRequest struct {
	SettlementID string `json:"settlement_id"`
}

type GetReceiptURLResponse struct {
	URL string `json:"url"`
}
