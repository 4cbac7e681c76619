package pool

import (
	"fmt"
	"strings"
)

const (
	// MaxTitleLen and MaxReferenceLen bound the text fields in bytes.
	MaxTitleLen     = 50
	MaxReferenceLen = 100
)

// EntryKey addresses an entry. Two entries with the same key can not coexist.
type EntryKey struct {
	Title string
	Owner Identity
}

// Address derives the entry's storage address from (title, owner).
func (k EntryKey) Address() Identity {
	return DeriveAddress([]byte(k.Title), k.Owner[:])
}

// Entry is one participant's submission for the current epoch.
// It is written once by a contribution and never mutated by settlement.
type Entry struct {
	Owner             Identity `json:"owner"`
	Title             string   `json:"title"`
	ExternalReference string   `json:"external_reference"`
	SelectionTag      uint32   `json:"selection_tag"`
	CreatedAt         int64    `json:"created_at"`
	Contribution      uint64   `json:"contribution"`
	Epoch             uint64   `json:"epoch"`
}

// Key returns the entry's composite key.
func (e Entry) Key() EntryKey {
	return EntryKey{Title: e.Title, Owner: e.Owner}
}

// Address returns the entry's storage address.
func (e Entry) Address() Identity {
	return e.Key().Address()
}

// ValidateEntryFields checks the text bounds of a new entry.
func ValidateEntryFields(title, externalReference string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is empty", ErrInvalidArgument)
	}
	if len(title) > MaxTitleLen {
		return fmt.Errorf("%w: title is %d bytes, max %d", ErrSizeLimitExceeded, len(title), MaxTitleLen)
	}
	if len(externalReference) > MaxReferenceLen {
		return fmt.Errorf("%w: external reference is %d bytes, max %d", ErrSizeLimitExceeded, len(externalReference), MaxReferenceLen)
	}
	return nil
}

// NewEntry validates the inputs and builds an entry created at now with the
// given selection tag.
func NewEntry(owner Identity, title, externalReference string, contribution uint64, tag uint32, now int64) (Entry, error) {
	if err := ValidateEntryFields(title, externalReference); err != nil {
		return Entry{}, err
	}
	if contribution > MaxAmount {
		return Entry{}, fmt.Errorf("%w: contribution %d exceeds %d", ErrArithmeticOverflow, contribution, uint64(MaxAmount))
	}
	return Entry{
		Owner:             owner,
		Title:             title,
		ExternalReference: externalReference,
		SelectionTag:      tag,
		CreatedAt:         now,
		Contribution:      contribution,
	}, nil
}
