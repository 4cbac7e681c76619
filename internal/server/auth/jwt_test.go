package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/cryptox"
	"github.com/dmitrijs2005/gophpool/internal/pool"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = pool.DeriveAddress([]byte("alice"))

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(alice, []byte("super-secret"), time.Hour)
	require.NoError(t, err)

	got, err := GetIdentityFromToken(tok, []byte("super-secret"))
	require.NoError(t, err)
	assert.Equal(t, alice, got)
}

func TestGenerateToken_UniqueIDs(t *testing.T) {
	t.Parallel()

	a, err := GenerateToken(alice, []byte("k"), time.Hour)
	require.NoError(t, err)
	b, err := GenerateToken(alice, []byte("k"), time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(a, claims)
	require.NoError(t, err)
	assert.Len(t, claims.ID, 32)
}

func TestGetIdentityFromToken_Expired(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(alice, []byte("secret"), -time.Second)
	require.NoError(t, err)

	_, err = GetIdentityFromToken(tok, []byte("secret"))
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestGetIdentityFromToken_Invalid(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(alice, []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	_, err = GetIdentityFromToken(tok, []byte("wrong-secret"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = GetIdentityFromToken("not.a.jwt", []byte("right-secret"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Identity:         "zz",
	})
	s, err := bad.SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = GetIdentityFromToken(s, []byte("k"))
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerifyLogin(t *testing.T) {
	t.Parallel()

	k, err := cryptox.GenerateKey()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	skew := 5 * time.Minute

	ts := now.Add(-time.Minute).Unix()
	require.NoError(t, VerifyLogin(k.Identity(), ts, k.SignLogin(ts), now, skew))

	old := now.Add(-6 * time.Minute).Unix()
	assert.ErrorIs(t, VerifyLogin(k.Identity(), old, k.SignLogin(old), now, skew), common.ErrLoginExpired)

	future := now.Add(6 * time.Minute).Unix()
	assert.ErrorIs(t, VerifyLogin(k.Identity(), future, k.SignLogin(future), now, skew), common.ErrLoginExpired)

	assert.ErrorIs(t, VerifyLogin(alice, ts, k.SignLogin(ts), now, skew), common.ErrInvalidSignature)
}
