package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// AddressLength is the serialized size of an address: kind byte + 32-byte hash.
const AddressLength = 1 + HashLength

// AddressKind discriminates the entity an address points at.
type AddressKind byte

const (
	// AddressKey is owned by a key pair (hash of the public key).
	AddressKey AddressKind = 0
	// AddressAlias is controlled by whoever controls the alias output.
	AddressAlias AddressKind = 8
	// AddressNft is controlled by whoever owns the NFT output.
	AddressNft AddressKind = 16
)

func (k AddressKind) String() string {
	switch k {
	case AddressKey:
		return "key"
	case AddressAlias:
		return "alias"
	case AddressNft:
		return "nft"
	default:
		return fmt.Sprintf("address kind(%d)", byte(k))
	}
}

// Address is a ledger address. It is comparable and usable as a map key.
type Address struct {
	Kind AddressKind
	Hash [HashLength]byte
}

// KeyAddress returns the address of a public-key hash.
func KeyAddress(hash [HashLength]byte) Address {
	return Address{Kind: AddressKey, Hash: hash}
}

// AliasAddress returns the address controlled by an alias.
func AliasAddress(id AliasID) Address {
	a := Address{Kind: AddressAlias}
	copy(a.Hash[:], id.Bytes())
	return a
}

// NftAddress returns the address controlled by an NFT.
func NftAddress(id NftID) Address {
	a := Address{Kind: AddressNft}
	copy(a.Hash[:], id.Bytes())
	return a
}

// IsNull reports whether a is the zero address.
func (a Address) IsNull() bool {
	return a == Address{}
}

// Bytes returns kind || hash.
func (a Address) Bytes() []byte {
	b := make([]byte, 0, AddressLength)
	b = append(b, byte(a.Kind))
	return append(b, a.Hash[:]...)
}

// AliasID returns the alias behind an alias address.
func (a Address) AliasID() (AliasID, bool) {
	if a.Kind != AddressAlias {
		return AliasID{}, false
	}
	return MustID[aliasKind](a.Hash[:]), true
}

// NftID returns the NFT behind an NFT address.
func (a Address) NftID() (NftID, bool) {
	if a.Kind != AddressNft {
		return NftID{}, false
	}
	return MustID[nftKind](a.Hash[:]), true
}

// AddressFromBytes decodes kind || hash.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidAddress, AddressLength, len(b))
	}
	a := Address{Kind: AddressKind(b[0])}
	switch a.Kind {
	case AddressKey, AddressAlias, AddressNft:
	default:
		return Address{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidAddress, b[0])
	}
	copy(a.Hash[:], b[1:])
	return a, nil
}

// Bech32 encodes the address for the network identified by hrp. An invalid
// hrp yields the empty string.
func (a Address) Bech32(hrp string) string {
	s, err := bech32.EncodeFromBase256(hrp, a.Bytes())
	if err != nil {
		return ""
	}
	return s
}

// String returns the hex form; use Bech32 for user-facing output.
func (a Address) String() string {
	return HexPrefix + hex.EncodeToString(a.Bytes())
}

// ParseBech32 decodes a bech32 address and returns its human-readable part.
func ParseBech32(s string) (string, Address, error) {
	hrp, data, err := bech32.DecodeToBase256(s)
	if err != nil {
		return "", Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	addr, err := AddressFromBytes(data)
	if err != nil {
		return "", Address{}, err
	}
	return hrp, addr, nil
}

// ParseBech32ForNetwork decodes s and requires its prefix to equal hrp.
func ParseBech32ForNetwork(s, hrp string) (Address, error) {
	got, addr, err := ParseBech32(s)
	if err != nil {
		return Address{}, err
	}
	if got != strings.ToLower(hrp) {
		return Address{}, fmt.Errorf("%w: expected %q, got %q", ErrNetworkMismatch, hrp, got)
	}
	return addr, nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	s := string(text)
	if !strings.HasPrefix(s, HexPrefix) {
		return fmt.Errorf("%w: missing %q prefix", ErrDecode, HexPrefix)
	}
	raw, err := hex.DecodeString(s[len(HexPrefix):])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	parsed, err := AddressFromBytes(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
