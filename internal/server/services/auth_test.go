package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Login(t *testing.T) {
	cfg := testConfig()
	svc := NewAuthService(cfg, testLogger())
	now := time.Unix(1_700_000_000, 0)
	svc.clock = &testClock{now: now}

	key, err := cryptox.GenerateKey()
	require.NoError(t, err)

	ts := now.Unix()
	token, exp, err := svc.Login(context.Background(), key.Identity(), ts, key.SignLogin(ts))
	require.NoError(t, err)
	assert.Equal(t, now.Add(cfg.AccessTokenValidityDuration), exp)

	id, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, key.Identity(), id)

	other, err := cryptox.GenerateKey()
	require.NoError(t, err)
	_, _, err = svc.Login(context.Background(), other.Identity(), ts, key.SignLogin(ts))
	assert.ErrorIs(t, err, common.ErrInvalidSignature)

	stale := ts - int64(cfg.LoginSkew/time.Second) - 1
	_, _, err = svc.Login(context.Background(), key.Identity(), stale, key.SignLogin(stale))
	assert.ErrorIs(t, err, common.ErrLoginExpired)

	_, err = svc.Authenticate("garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
