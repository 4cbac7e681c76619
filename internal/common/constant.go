// Package common contains shared constants and sentinel errors used across
// gophpool components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// ErrorDomain is the errdetails domain attached to errors returned by the
// pool service.
const ErrorDomain = "gophpool"
