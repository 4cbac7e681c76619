package api

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Reasons of infrastructure errors. Domain errors use pool.KindOf.
const (
	ReasonNotFound         = "NOT_FOUND"
	ReasonUnauthenticated  = "UNAUTHENTICATED"
	ReasonTokenExpired     = "TOKEN_EXPIRED"
	ReasonInvalidToken     = "INVALID_TOKEN"
	ReasonInvalidSignature = "INVALID_SIGNATURE"
	ReasonLoginExpired     = "LOGIN_EXPIRED"
	ReasonRateLimited      = "RATE_LIMITED"
)

var infraReasons = []struct {
	reason string
	code   codes.Code
	err    error
}{
	{ReasonNotFound, codes.NotFound, common.ErrorNotFound},
	{ReasonTokenExpired, codes.Unauthenticated, common.ErrTokenExpired},
	{ReasonInvalidToken, codes.Unauthenticated, common.ErrInvalidToken},
	{ReasonInvalidSignature, codes.Unauthenticated, common.ErrInvalidSignature},
	{ReasonLoginExpired, codes.Unauthenticated, common.ErrLoginExpired},
	{ReasonUnauthenticated, codes.Unauthenticated, common.ErrorUnauthorized},
	{ReasonRateLimited, codes.ResourceExhausted, common.ErrorRateLimited},
}

func domainCode(err error) codes.Code {
	switch {
	case errors.Is(err, pool.ErrAlreadyExists):
		return codes.AlreadyExists
	case errors.Is(err, pool.ErrNotInitialized),
		errors.Is(err, pool.ErrInsufficientFunds),
		errors.Is(err, pool.ErrNoEntries),
		errors.Is(err, pool.ErrCooldownActive):
		return codes.FailedPrecondition
	case errors.Is(err, pool.ErrArithmeticOverflow):
		return codes.OutOfRange
	case errors.Is(err, pool.ErrNotAuthorized):
		return codes.PermissionDenied
	default:
		return codes.InvalidArgument
	}
}

// ToStatus converts a service error into a gRPC status error carrying an
// ErrorInfo with a stable reason. Unknown errors become a bare Internal so
// that nothing about storage leaks to callers.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	if kind := pool.KindOf(err); kind != "" {
		return withReason(domainCode(err), err.Error(), kind)
	}
	for _, r := range infraReasons {
		if errors.Is(err, r.err) {
			return withReason(r.code, err.Error(), r.reason)
		}
	}
	return status.Error(codes.Internal, common.ErrorInternal.Error())
}

func withReason(code codes.Code, msg, reason string) error {
	st, err := status.New(code, msg).WithDetails(&errdetails.ErrorInfo{
		Reason: reason,
		Domain: common.ErrorDomain,
	})
	if err != nil {
		return status.Error(code, msg)
	}
	return st.Err()
}

// Error is a decoded server error. It unwraps to the sentinel named by its
// reason, so callers match it with errors.Is as if the call were local.
type Error struct {
	Code    codes.Code
	Reason  string
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// GRPCStatus lets status.FromError see through the decoded error.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

// FromStatus decodes an error returned by a PoolClient call. Errors without
// a known reason are returned unchanged.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	reason := Reason(st)
	if reason == "" {
		return err
	}

	cause, ok := pool.FromKind(reason)
	if !ok {
		for _, r := range infraReasons {
			if r.reason == reason {
				cause, ok = r.err, true
				break
			}
		}
	}
	if !ok {
		return err
	}
	return &Error{Code: st.Code(), Reason: reason, Message: st.Message(), cause: cause}
}

// Reason returns the ErrorInfo reason of st within the gophpool domain.
func Reason(st *status.Status) string {
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == common.ErrorDomain {
			return info.GetReason()
		}
	}
	return ""
}
