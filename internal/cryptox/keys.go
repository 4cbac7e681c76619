package cryptox

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dmitrijs2005/gophpool/internal/common"
	"github.com/dmitrijs2005/gophpool/internal/pool"
)

// ErrPassphraseRequired is returned when an encrypted key file is opened
// without a passphrase.
var ErrPassphraseRequired = errors.New("key file is encrypted, passphrase required")

// LoginPrefix starts every login proof, so a signature over it can not be
// replayed as any other signed message.
const LoginPrefix = "gophpool-login"

// Key is a participant's signing key. Its public half is the identity.
type Key struct {
	Private ed25519.PrivateKey
}

// GenerateKey creates a new random key.
func GenerateKey() (*Key, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Key{Private: priv}, nil
}

// Identity returns the public key as a pool identity.
func (k *Key) Identity() pool.Identity {
	var id pool.Identity
	copy(id[:], k.Private.Public().(ed25519.PublicKey))
	return id
}

// SignLogin signs the login proof for timestamp ts (unix seconds).
func (k *Key) SignLogin(ts int64) []byte {
	return ed25519.Sign(k.Private, LoginMessage(k.Identity(), ts))
}

// Wipe zeroes the private key.
func (k *Key) Wipe() {
	common.WipeByteArray(k.Private)
}

// LoginMessage is the exact byte string signed to log in as id at ts.
func LoginMessage(id pool.Identity, ts int64) []byte {
	return []byte(LoginPrefix + ":" + id.String() + ":" + strconv.FormatInt(ts, 10))
}

// VerifyLogin checks sig against the login proof of id at ts.
func VerifyLogin(id pool.Identity, ts int64, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(id[:]), LoginMessage(id, ts), sig)
}

// KeyFile is the on-disk JSON form of a key. Exactly one of Seed or the
// encrypted triple (Salt, Nonce, Ciphertext) is set.
type KeyFile struct {
	Identity   pool.Identity `json:"identity"`
	Seed       []byte        `json:"seed,omitempty"`
	Salt       []byte        `json:"salt,omitempty"`
	Nonce      []byte        `json:"nonce,omitempty"`
	Ciphertext []byte        `json:"ciphertext,omitempty"`
}

// Encrypted reports whether the key file needs a passphrase.
func (f *KeyFile) Encrypted() bool {
	return len(f.Ciphertext) > 0
}

// SealKey builds the key file for k, encrypting the seed when passphrase is
// not empty.
func SealKey(k *Key, passphrase []byte) (*KeyFile, error) {
	f := &KeyFile{Identity: k.Identity()}
	seed := k.Private.Seed()
	if len(passphrase) == 0 {
		f.Seed = seed
		return f, nil
	}

	f.Salt = common.GenerateRandByteArray(16)
	master := DeriveMasterKey(passphrase, f.Salt)
	defer common.WipeByteArray(master)

	ct, nonce, err := EncryptEntry(seed, master)
	common.WipeByteArray(seed)
	if err != nil {
		return nil, err
	}
	f.Ciphertext, f.Nonce = ct, nonce
	return f, nil
}

// Open recovers the key from the file. The recovered public key must match
// the recorded identity.
func (f *KeyFile) Open(passphrase []byte) (*Key, error) {
	seed := f.Seed
	if f.Encrypted() {
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		master := DeriveMasterKey(passphrase, f.Salt)
		defer common.WipeByteArray(master)
		if err := DecryptEntry(f.Ciphertext, f.Nonce, master, &seed); err != nil {
			return nil, fmt.Errorf("decrypt key: %w", err)
		}
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	k := &Key{Private: ed25519.NewKeyFromSeed(seed)}
	if k.Identity() != f.Identity {
		k.Wipe()
		return nil, fmt.Errorf("key file identity %s does not match its key", f.Identity.Short())
	}
	return k, nil
}

// WriteKeyFile stores f at path with owner-only permissions. An existing
// file is never overwritten.
func WriteKeyFile(path string, f *KeyFile) error {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := out.Write(b); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// ReadKeyFile loads a key file from path.
func ReadKeyFile(path string) (*KeyFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := &KeyFile{}
	if err := json.Unmarshal(b, f); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	return f, nil
}
