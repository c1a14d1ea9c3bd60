// Package types holds the ledger data model: fixed-length identifiers,
// addresses, outputs, transaction payloads and blocks, together with their
// canonical binary encoding.
package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HexPrefix is the canonical prefix of identifier text.
const HexPrefix = "0x"

// IDKind names an identifier family and fixes its byte length.
type IDKind interface {
	Name() string
	Length() int
}

// ID is an immutable fixed-length identifier. The all-zero value is the
// null identifier and is stored as the empty string, so the zero ID, a
// parsed all-zero ID and NullID are interchangeable under ==.
type ID[K IDKind] struct {
	b string
}

func kindOf[K IDKind]() K {
	var k K
	return k
}

// NewID wraps b, which must be exactly the kind's length.
func NewID[K IDKind](b []byte) (ID[K], error) {
	k := kindOf[K]()
	if len(b) != k.Length() {
		return ID[K]{}, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidLength, k.Name(), k.Length(), len(b))
	}
	for _, c := range b {
		if c != 0 {
			return ID[K]{b: string(b)}, nil
		}
	}
	return ID[K]{}, nil
}

// MustID is NewID for lengths known to be correct.
func MustID[K IDKind](b []byte) ID[K] {
	id, err := NewID[K](b)
	if err != nil {
		panic(err)
	}
	return id
}

// NullID returns the all-zero identifier of kind K.
func NullID[K IDKind]() ID[K] {
	return ID[K]{}
}

// IsNull reports whether id is the all-zero identifier.
func (id ID[K]) IsNull() bool {
	return id.b == ""
}

// Len returns the kind's byte length.
func (id ID[K]) Len() int {
	return kindOf[K]().Length()
}

// Bytes returns a copy of the identifier bytes.
func (id ID[K]) Bytes() []byte {
	if id.b == "" {
		return make([]byte, id.Len())
	}
	return []byte(id.b)
}

// Compare orders identifiers byte-wise.
func (id ID[K]) Compare(other ID[K]) int {
	return bytes.Compare(id.Bytes(), other.Bytes())
}

// String returns the canonical 0x-prefixed lower-case hex form.
func (id ID[K]) String() string {
	return HexPrefix + hex.EncodeToString(id.Bytes())
}

// ParseID decodes the canonical text form of a K identifier.
func ParseID[K IDKind](s string) (ID[K], error) {
	k := kindOf[K]()
	if !strings.HasPrefix(s, HexPrefix) {
		return ID[K]{}, fmt.Errorf("%w: %s: missing %q prefix", ErrDecode, k.Name(), HexPrefix)
	}
	raw, err := hex.DecodeString(s[len(HexPrefix):])
	if err != nil {
		return ID[K]{}, fmt.Errorf("%w: %s: %w", ErrDecode, k.Name(), err)
	}
	if len(raw) != k.Length() {
		return ID[K]{}, fmt.Errorf("%w: %s: want %d bytes, got %d", ErrDecode, k.Name(), k.Length(), len(raw))
	}
	return NewID[K](raw)
}

func (id ID[K]) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID[K]) UnmarshalText(text []byte) error {
	parsed, err := ParseID[K](string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// OrFromOutputID assigns the identifier derived from the output that
// created the entity. A non-null id is returned unchanged, as is any kind
// whose length is not a blake2b-256 digest.
func (id ID[K]) OrFromOutputID(out OutputID) ID[K] {
	if !id.IsNull() {
		return id
	}
	digest := blake2b.Sum256(out.Bytes())
	derived, err := NewID[K](digest[:])
	if err != nil {
		return id
	}
	return derived
}
