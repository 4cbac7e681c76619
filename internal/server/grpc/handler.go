package grpc

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophpool/internal/api"
	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/dmitrijs2005/gophpool/internal/server/services"
)

// handler implements api.PoolServer on top of GRPCServer.
type handler struct {
	s *GRPCServer
}

func caller(ctx context.Context) (pool.Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return pool.Identity{}, fmt.Errorf("%w: no caller identity", common.ErrorUnauthorized)
	}
	return id, nil
}

func (h *handler) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

func (h *handler) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	token, exp, err := h.s.auth.Login(ctx, req.Identity, req.Timestamp, req.Signature)
	if err != nil {
		return nil, err
	}
	return &api.LoginResponse{AccessToken: token, ExpiresAt: exp.Unix()}, nil
}

func (h *handler) InitializePool(ctx context.Context, req *api.InitializePoolRequest) (*api.InitializePoolResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	l, err := h.s.pool.InitializePool(ctx, id)
	if err != nil {
		return nil, err
	}
	return &api.InitializePoolResponse{Address: pool.LedgerAddress(), Ledger: l}, nil
}

func (h *handler) CreateEntry(ctx context.Context, req *api.CreateEntryRequest) (*api.CreateEntryResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	e, err := h.s.pool.CreateEntry(ctx, id, req.Title, req.ExternalReference, req.Contribution)
	if err != nil {
		return nil, err
	}
	return &api.CreateEntryResponse{Address: e.Address(), Entry: e}, nil
}

func (h *handler) Settle(ctx context.Context, req *api.SettleRequest) (*api.SettleResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := h.s.pool.Settle(ctx, id, services.SettleRequest{
		Winner:        pool.EntryKey{Title: req.WinnerTitle, Owner: req.WinnerOwner},
		WinnerPayout:  req.WinnerPayout,
		CreatorPayout: req.CreatorPayout,
	})
	if err != nil {
		return nil, err
	}
	return &api.SettleResponse{Settlement: rec}, nil
}

func (h *handler) GetPool(ctx context.Context, req *api.GetPoolRequest) (*api.GetPoolResponse, error) {
	v, err := h.s.pool.GetPool(ctx)
	if err != nil {
		return nil, err
	}
	return &api.GetPoolResponse{
		Address:          v.Address,
		Ledger:           v.Ledger,
		Balance:          v.Balance,
		NextSettlementAt: v.NextSettlementAt,
	}, nil
}

func (h *handler) GetEntry(ctx context.Context, req *api.GetEntryRequest) (*api.GetEntryResponse, error) {
	e, err := h.s.pool.GetEntry(ctx, pool.EntryKey{Title: req.Title, Owner: req.Owner})
	if err != nil {
		return nil, err
	}
	return &api.GetEntryResponse{Address: e.Address(), Entry: e}, nil
}

func (h *handler) ListEntries(ctx context.Context, req *api.ListEntriesRequest) (*api.ListEntriesResponse, error) {
	var (
		list []pool.Entry
		err  error
	)
	if req.Epoch {
		list, err = h.s.pool.EpochEntries(ctx, req.Limit)
	} else {
		list, err = h.s.pool.ListEntries(ctx, req.Since, req.Limit)
	}
	if err != nil {
		return nil, err
	}
	return &api.ListEntriesResponse{Entries: list}, nil
}

func (h *handler) GetBalance(ctx context.Context, req *api.GetBalanceRequest) (*api.GetBalanceResponse, error) {
	b, err := h.s.pool.GetBalance(ctx, req.Identity)
	if err != nil {
		return nil, err
	}
	return &api.GetBalanceResponse{Identity: req.Identity, Balance: b}, nil
}

func (h *handler) Airdrop(ctx context.Context, req *api.AirdropRequest) (*api.AirdropResponse, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	b, err := h.s.pool.Airdrop(ctx, id, req.Amount)
	if err != nil {
		return nil, err
	}
	return &api.AirdropResponse{Balance: b}, nil
}

func (h *handler) ListSettlements(ctx context.Context, req *api.ListSettlementsRequest) (*api.ListSettlementsResponse, error) {
	list, err := h.s.pool.ListSettlements(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	return &api.ListSettlementsResponse{Settlements: list}, nil
}

func (h *handler) GetReceiptURL(ctx context.Context, req *api.GetReceiptURLRequest) (*api.GetReceiptURLResponse, error) {
	url, err := h.s.pool.GetReceiptURL(ctx, req.SettlementID)
	if err != nil {
		return nil, err
	}
	return &api.GetReceiptURLResponse{URL: url}, nil
}
