package secret

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
	"golang.org/x/crypto/blake2b"

	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/types"
)

const (
	// PurposeBIP44 is the first path element.
	PurposeBIP44 = 44

	// Chain indices.
	ExternalChain = 0 // Public addresses
	InternalChain = 1 // Remainder addresses

	// MaxIndex is the largest non-hardened child index.
	MaxIndex = 1<<31 - 1

	// Hardened is the BIP32 hardened offset.
	Hardened = 0x80000000
)

// KeyPair holds a derived public/private key pair.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Path       string         `json:"path"`
}

// Address returns the key address of the pair.
func (kp *KeyPair) Address() types.Address {
	return KeyAddress(kp.PublicKey)
}

// KeyAddress is blake2b-256 of the compressed public key.
func KeyAddress(pub *ec.PublicKey) types.Address {
	return types.KeyAddress(blake2b.Sum256(pub.Compressed()))
}

// Keychain derives account keys from a BIP39 seed.
type Keychain struct {
	master   *bip32.ExtendedKey
	coinType uint32
}

// NewKeychain creates a keychain for coinType from a BIP39 seed.
func NewKeychain(seed []byte, coinType uint32) (*Keychain, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if coinType > MaxIndex {
		return nil, fmt.Errorf("%w: coin type %d", ErrIndexOutOfRange, coinType)
	}
	// Chain params only affect extended key serialization, never derivation.
	master, err := bip32.NewMaster(seed, &chaincfg.MainNet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Keychain{master: master, coinType: coinType}, nil
}

// CoinType returns the BIP44 coin type of the keychain.
func (k *Keychain) CoinType() uint32 {
	return k.coinType
}

// deriveAccount derives the account-level key: m/44'/coin'/account'
func (k *Keychain) deriveAccount(account uint32) (*bip32.ExtendedKey, error) {
	purpose, err := k.master.Child(PurposeBIP44 + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: purpose derivation: %w", ErrDerivationFailed, err)
	}
	coin, err := purpose.Child(k.coinType + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: coin type derivation: %w", ErrDerivationFailed, err)
	}
	accountKey, err := coin.Child(account + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: account derivation: %w", ErrDerivationFailed, err)
	}
	return accountKey, nil
}

// Derive returns the key pair at m/44'/coin'/account'/chain/index.
func (k *Keychain) Derive(c tx.Chain) (*KeyPair, error) {
	if c.Account > MaxIndex || c.Index > MaxIndex {
		return nil, fmt.Errorf("%w: %s", ErrIndexOutOfRange, c)
	}
	accountKey, err := k.deriveAccount(c.Account)
	if err != nil {
		return nil, err
	}

	chain := uint32(ExternalChain)
	if c.Internal {
		chain = InternalChain
	}
	chainKey, err := accountKey.Child(chain)
	if err != nil {
		return nil, fmt.Errorf("%w: chain derivation: %w", ErrDerivationFailed, err)
	}
	childKey, err := chainKey.Child(c.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: index derivation: %w", ErrDerivationFailed, err)
	}

	return extKeyToKeyPair(childKey, fmt.Sprintf("m/44'/%d'/%d'/%d/%d", k.coinType, c.Account, chain, c.Index))
}

// extKeyToKeyPair converts a BIP32 extended key to a KeyPair.
func extKeyToKeyPair(extKey *bip32.ExtendedKey, path string) (*KeyPair, error) {
	privKey, err := extKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}

	pubKey := privKey.PubKey()
	if pubKey == nil {
		return nil, fmt.Errorf("%w: failed to derive public key", ErrDerivationFailed)
	}

	return &KeyPair{
		PrivateKey: privKey,
		PublicKey:  pubKey,
		Path:       path,
	}, nil
}
