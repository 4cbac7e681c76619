// Package auth issues and checks the access tokens of the pool service and
// verifies the signed login proofs they are exchanged for.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/cryptox"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the caller identity in hex next to the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Identity string `json:"identity"`
}

func GenerateToken(id pool.Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	jti, err := common.MakeRandHexString(16)
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Identity: id.String(),
	})
	return token.SignedString(secretKey)
}

// GetIdentityFromToken validates tokenString and returns its identity. An
// expired token yields common.ErrTokenExpired, anything else invalid
// common.ErrInvalidToken.
func GetIdentityFromToken(tokenString string, secretKey []byte) (pool.Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return pool.Identity{}, common.ErrTokenExpired
		}
		return pool.Identity{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return pool.Identity{}, common.ErrInvalidToken
	}

	id, err := pool.ParseIdentity(claims.Identity)
	if err != nil {
		return pool.Identity{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	return id, nil
}

// VerifyLogin checks a login proof: the timestamp must be within skew of now
// and the signature must be made by the identity's key.
func VerifyLogin(id pool.Identity, ts int64, sig []byte, now time.Time, skew time.Duration) error {
	d := now.Sub(time.Unix(ts, 0))
	if d < 0 {
		d = -d
	}
	if d > skew {
		return common.ErrLoginExpired
	}
	if !cryptox.VerifyLogin(id, ts, sig) {
		return common.ErrInvalidSignature
	}
	return nil
}
