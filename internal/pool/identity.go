// Package pool implements the weekly pool domain: entry records, the pool
// ledger and the pure contribution/settlement arithmetic. Nothing in this
// package touches storage; callers pass the ledger in and get the updated
// value back, and are responsible for applying it atomically.
package pool

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// IdentitySize is the size of an identity in bytes.
const IdentitySize = 32

// LedgerLabel is the fixed seed the singleton ledger address is derived from.
const LedgerLabel = "weekly_pool_data"

// Identity is a fixed-size participant or account identifier. For signing
// participants it is their ed25519 public key.
type Identity [IdentitySize]byte

// ParseIdentity decodes a hex encoded identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: identity is not hex: %v", ErrInvalidArgument, err)
	}
	if len(b) != IdentitySize {
		return id, fmt.Errorf("%w: identity must be %d bytes, got %d", ErrInvalidArgument, IdentitySize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// IdentityFromBytes copies b into an Identity.
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentitySize {
		return id, fmt.Errorf("%w: identity must be %d bytes, got %d", ErrInvalidArgument, IdentitySize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hex characters, for logs and CLI output.
func (id Identity) Short() string {
	return id.String()[:8]
}

// IsZero reports whether id is the all-zero identity.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value stores identities as hex text.
func (id Identity) Value() (driver.Value, error) {
	return id.String(), nil
}

// Scan reads a hex text column.
func (id *Identity) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return id.UnmarshalText([]byte(v))
	case []byte:
		return id.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Identity", src)
	}
}

// DeriveAddress hashes the length-prefixed seeds with BLAKE2b-256. Records
// addressed by the same seeds always land on the same address, which is what
// makes creation collide instead of overwrite.
func DeriveAddress(seeds ...[]byte) Identity {
	h, _ := blake2b.New256(nil)
	var n [4]byte
	for _, s := range seeds {
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		h.Write(n[:])
		h.Write(s)
	}
	var id Identity
	copy(id[:], h.Sum(nil))
	return id
}

// LedgerAddress is the address of the singleton pool ledger and of the
// balance that holds its undistributed funds.
func LedgerAddress() Identity {
	return DeriveAddress([]byte(LedgerLabel))
}
