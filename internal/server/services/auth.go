package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/logging"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/dmitrijs2005/gophpool/internal/server/auth"
	"github.com/dmitrijs2005/gophpool/internal/server/config"
)

// AuthService exchanges signed login proofs for access tokens. Identities are
// not registered anywhere: holding the key is the account.
type AuthService struct {
	secretKey     []byte
	tokenValidity time.Duration
	loginSkew     time.Duration
	clock         pool.Clock
	logger        logging.Logger
}

func NewAuthService(cfg *config.Config, logger logging.Logger) *AuthService {
	return &AuthService{
		secretKey:     []byte(cfg.SecretKey),
		tokenValidity: cfg.AccessTokenValidityDuration,
		loginSkew:     cfg.LoginSkew,
		clock:         pool.SystemClock{},
		logger:        logger.With("module", "auth_service"),
	}
}

// Login verifies that sig is id's signature over the login message for ts
// and returns an access token with its expiry.
func (s *AuthService) Login(ctx context.Context, id pool.Identity, ts int64, sig []byte) (string, time.Time, error) {
	now := s.clock.Now()
	if err := auth.VerifyLogin(id, ts, sig, now, s.loginSkew); err != nil {
		s.logger.Info(ctx, "login rejected", "identity", id.Short(), "error", err)
		return "", time.Time{}, err
	}

	token, err := auth.GenerateToken(id, s.secretKey, s.tokenValidity)
	if err != nil {
		s.logger.Error(ctx, "token generation failed", "error", err)
		return "", time.Time{}, err
	}

	s.logger.Debug(ctx, "login", "identity", id.Short())
	return token, now.Add(s.tokenValidity), nil
}

// Authenticate resolves an access token to the identity it was issued to.
func (s *AuthService) Authenticate(token string) (pool.Identity, error) {
	return auth.GetIdentityFromToken(token, s.secretKey)
}
