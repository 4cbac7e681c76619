// Package client is the gRPC client of the pool service used by poolctl.
//
// GRPCClient signs in with the caller's ed25519 key on demand, attaches the
// access token to every call, signs in again when the server reports an
// expired token and decodes server errors back into the sentinels of
// internal/pool and internal/common, so errors.Is works across the wire.
package client
