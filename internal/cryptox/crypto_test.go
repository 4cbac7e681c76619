package cryptox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveMasterKey(t *testing.T) {
	key1 := DeriveMasterKey([]byte("secret-password"), []byte("fixed-salt"))
	key2 := DeriveMasterKey([]byte("secret-password"), []byte("fixed-salt"))
	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 32)

	other := DeriveMasterKey([]byte("secret-password"), []byte("salt-2"))
	assert.NotEqual(t, key1, other)
	assert.NotEqual(t, key1, DeriveMasterKey([]byte("secret-passworD"), []byte("fixed-salt")))
}

func TestEncryptDecryptEntry(t *testing.T) {
	key := DeriveMasterKey([]byte("pw"), []byte("salt"))

	ct, nonce, err := EncryptEntry(map[string]int{"a": 1}, key)
	require.NoError(t, err)
	assert.Len(t, nonce, 12)

	var got map[string]int
	require.NoError(t, DecryptEntry(ct, nonce, key, &got))
	assert.Equal(t, 1, got["a"])

	wrong := DeriveMasterKey([]byte("pw2"), []byte("salt"))
	assert.Error(t, DecryptEntry(ct, nonce, wrong, &got))

	_, _, err = EncryptEntry(1, []byte("short"))
	assert.Error(t, err)
}

func TestLoginProof(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	id := k.Identity()

	sig := k.SignLogin(1_700_000_000)
	assert.True(t, VerifyLogin(id, 1_700_000_000, sig))
	assert.False(t, VerifyLogin(id, 1_700_000_001, sig), "timestamp is part of the proof")
	assert.False(t, VerifyLogin(id, 1_700_000_000, sig[:10]))

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.False(t, VerifyLogin(other.Identity(), 1_700_000_000, sig))

	assert.Equal(t, "gophpool-login:"+id.String()+":42", string(LoginMessage(id, 42)))
}

func TestKeyFile_PlainRoundTrip(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)

	f, err := SealKey(k, nil)
	require.NoError(t, err)
	assert.False(t, f.Encrypted())

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, WriteKeyFile(path, f))
	assert.Error(t, WriteKeyFile(path, f), "existing key file must not be overwritten")

	read, err := ReadKeyFile(path)
	require.NoError(t, err)
	opened, err := read.Open(nil)
	require.NoError(t, err)
	assert.Equal(t, k.Identity(), opened.Identity())
}

func TestKeyFile_EncryptedRoundTrip(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)

	f, err := SealKey(k, []byte("correct horse"))
	require.NoError(t, err)
	require.True(t, f.Encrypted())
	assert.Empty(t, f.Seed)

	_, err = f.Open(nil)
	assert.ErrorIs(t, err, ErrPassphraseRequired)

	_, err = f.Open([]byte("wrong"))
	assert.Error(t, err)

	opened, err := f.Open([]byte("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, k.Identity(), opened.Identity())

	opened.Wipe()
	assert.Equal(t, make([]byte, len(opened.Private)), []byte(opened.Private))
}

func TestKeyFile_IdentityMismatch(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)
	f, err := SealKey(k, nil)
	require.NoError(t, err)

	other, err := GenerateKey()
	require.NoError(t, err)
	f.Identity = other.Identity()

	_, err = f.Open(nil)
	assert.ErrorContains(t, err, "does not match")
}
