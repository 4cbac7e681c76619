// Package grpc serves the pool over gRPC with the JSON codec from
// internal/api.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/api"
	"github.com/dmitrijs2005/gophpool/internal/logging"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/dmitrijs2005/gophpool/internal/server/services"
	"google.golang.org/grpc"
)

// PoolService is the business logic behind the handlers.
type PoolService interface {
	InitializePool(ctx context.Context, creator pool.Identity) (pool.Ledger, error)
	CreateEntry(ctx context.Context, owner pool.Identity, title, externalReference string, contribution uint64) (pool.Entry, error)
	Settle(ctx context.Context, caller pool.Identity, req services.SettleRequest) (*pool.Settlement, error)
	GetPool(ctx context.Context) (*services.PoolView, error)
	GetEntry(ctx context.Context, key pool.EntryKey) (pool.Entry, error)
	ListEntries(ctx context.Context, since int64, limit int) ([]pool.Entry, error)
	EpochEntries(ctx context.Context, limit int) ([]pool.Entry, error)
	GetBalance(ctx context.Context, id pool.Identity) (uint64, error)
	Airdrop(ctx context.Context, id pool.Identity, amount uint64) (uint64, error)
	ListSettlements(ctx context.Context, limit int) ([]*pool.Settlement, error)
	GetReceiptURL(ctx context.Context, settlementID string) (string, error)
}

type Authenticator interface {
	Login(ctx context.Context, id pool.Identity, ts int64, sig []byte) (string, time.Time, error)
	Authenticate(token string) (pool.Identity, error)
}

type GRPCServer struct {
	address      string
	pool         PoolService
	auth         Authenticator
	logger       logging.Logger
	limiter      *rateLimiter
	interceptors []grpc.UnaryServerInterceptor
}

type ServerOption func(*GRPCServer)

// WithRateLimit limits mutating calls per identity; rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *GRPCServer) { s.limiter = newRateLimiter(rps, burst) }
}

// WithUnaryInterceptor adds an interceptor that runs before the built-in ones.
func WithUnaryInterceptor(i grpc.UnaryServerInterceptor) ServerOption {
	return func(s *GRPCServer) { s.interceptors = append(s.interceptors, i) }
}

func NewGRPCServer(address string, l logging.Logger, ps PoolService, as Authenticator, opts ...ServerOption) *GRPCServer {
	s := &GRPCServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		pool:    ps,
		auth:    as,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GRPCServer) newServer() *grpc.Server {
	chain := append([]grpc.UnaryServerInterceptor{}, s.interceptors...)
	chain = append(chain, s.errorInterceptor, s.accessTokenInterceptor, s.rateLimitInterceptor)

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))
	api.RegisterPoolServer(srv, &handler{s})
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
