package grpc

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophpool/internal/api"
	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const identityKey ctxKey = "identity"

// protectedMethods need an access token and are rate limited.
var protectedMethods = map[string]bool{
	api.FullMethod("InitializePool"): true,
	api.FullMethod("CreateEntry"):    true,
	api.FullMethod("Settle"):         true,
	api.FullMethod("Airdrop"):        true,
}

// IdentityFromContext returns the caller identity set by the access token
// interceptor.
func IdentityFromContext(ctx context.Context) (pool.Identity, bool) {
	id, ok := ctx.Value(identityKey).(pool.Identity)
	return id, ok
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, fmt.Errorf("%w: missing token", common.ErrorUnauthorized)
	}

	id, err := s.auth.Authenticate(accessToken)
	if err != nil {
		return nil, err
	}

	return handler(context.WithValue(ctx, identityKey, id), req)
}

func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if id, ok := IdentityFromContext(ctx); ok && !s.limiter.Allow(id) {
		return nil, fmt.Errorf("%w: %s", common.ErrorRateLimited, id.Short())
	}
	return handler(ctx, req)
}

// errorInterceptor turns service errors into gRPC statuses. Only errors that
// end up as Internal are logged at error level.
func (s *GRPCServer) errorInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}

	serr := api.ToStatus(err)
	if status.Code(serr) == codes.Internal {
		s.logger.Error(ctx, "request failed", "method", info.FullMethod, "error", err)
	} else {
		s.logger.Debug(ctx, "request rejected", "method", info.FullMethod, "error", err)
	}
	return nil, serr
}
