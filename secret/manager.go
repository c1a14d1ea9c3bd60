package secret

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfsorg/libwallet-go/tx"
	"github.com/bitfsorg/libwallet-go/types"
)

// Manager derives addresses and signs transactions. Implementations may be
// interactive and slow; both calls honour ctx.
type Manager interface {
	GenerateAddress(ctx context.Context, account, index uint32, internal bool) (types.Address, error)
	SignTransaction(ctx context.Context, p *tx.Prepared) ([]types.Unlock, error)
}

// ConfirmationMode is what a manager shows the user before signing.
type ConfirmationMode uint8

const (
	ConfirmNone ConfirmationMode = iota
	ConfirmEssenceHash
	ConfirmFullTransaction
)

// Confirmer is implemented by managers that ask the user to approve a
// transaction before signing it.
type Confirmer interface {
	ConfirmationMode() ConfirmationMode
}

// Compile-time interface checks.
var (
	_ Manager   = (*MnemonicManager)(nil)
	_ Manager   = (*ConfirmingManager)(nil)
	_ Confirmer = (*ConfirmingManager)(nil)
)

// MnemonicManager keeps a BIP39 seed in memory and signs with secp256k1
// ECDSA over the essence hash.
type MnemonicManager struct {
	seed []byte
	keys *Keychain
}

// NewMnemonicManager derives the seed of mnemonic and passphrase.
func NewMnemonicManager(mnemonic, passphrase string, coinType uint32) (*MnemonicManager, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return NewSeedManager(seed, coinType)
}

// NewSeedManager uses a raw BIP39 seed.
func NewSeedManager(seed []byte, coinType uint32) (*MnemonicManager, error) {
	keys, err := NewKeychain(seed, coinType)
	if err != nil {
		return nil, err
	}
	return &MnemonicManager{seed: append([]byte(nil), seed...), keys: keys}, nil
}

// RestoreManager decrypts a snapshot written by Snapshot.
func RestoreManager(snapshot []byte, password string, coinType uint32) (*MnemonicManager, error) {
	seed, err := DecryptSeed(snapshot, password)
	if err != nil {
		return nil, err
	}
	return NewSeedManager(seed, coinType)
}

// Snapshot encrypts the seed under password for persistence.
func (m *MnemonicManager) Snapshot(password string) ([]byte, error) {
	return EncryptSeed(m.seed, password)
}

// Keychain exposes the underlying key derivation.
func (m *MnemonicManager) Keychain() *Keychain {
	return m.keys
}

func (m *MnemonicManager) GenerateAddress(ctx context.Context, account, index uint32, internal bool) (types.Address, error) {
	if err := ctx.Err(); err != nil {
		return types.Address{}, err
	}
	kp, err := m.keys.Derive(tx.Chain{Account: account, Internal: internal, Index: index})
	if err != nil {
		return types.Address{}, err
	}
	return kp.Address(), nil
}

// SignTransaction returns one unlock per input, in essence order.
//
// The first input owned by a key address gets a signature unlock; later
// inputs of the same address reference it. Inputs owned by an alias or NFT
// address reference the earlier input that holds that alias or NFT.
func (m *MnemonicManager) SignTransaction(ctx context.Context, p *tx.Prepared) ([]types.Unlock, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: prepared transaction", tx.ErrNilParam)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := p.Essence.Hash()
	now := p.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}

	unlocks := make([]types.Unlock, len(p.Inputs))
	unlockedBy := make(map[types.Address]uint16, len(p.Inputs))
	for i, in := range p.Inputs {
		owner, ok := in.Output.OwnerAt(uint32(now.Unix()))
		if !ok {
			return nil, fmt.Errorf("%w: input %d %s is timelocked", ErrUnknownInputAddress, i, in.OutputID)
		}

		if ref, seen := unlockedBy[owner]; seen {
			unlocks[i] = types.Unlock{Kind: referenceKind(owner.Kind), Reference: ref}
		} else {
			if owner.Kind != types.AddressKey || in.Chain == nil {
				return nil, fmt.Errorf("%w: input %d owned by %s", ErrUnknownInputAddress, i, owner)
			}
			kp, err := m.keys.Derive(*in.Chain)
			if err != nil {
				return nil, err
			}
			if kp.Address() != owner {
				return nil, fmt.Errorf("%w: input %d chain %s does not derive %s", ErrUnknownInputAddress, i, in.Chain, owner)
			}
			sig, err := kp.PrivateKey.Sign(hash[:])
			if err != nil {
				return nil, fmt.Errorf("%w: sign input %d: %w", ErrDerivationFailed, i, err)
			}
			unlocks[i] = types.Unlock{
				Kind:      types.UnlockSignature,
				PublicKey: kp.PublicKey.Compressed(),
				Signature: sig.Serialize(),
			}
			unlockedBy[owner] = uint16(i)
		}

		// Outputs owned by this alias or NFT can now be unlocked by reference.
		switch in.Output.Kind {
		case types.OutputAlias:
			unlockedBy[types.AliasAddress(in.Output.AliasID.OrFromOutputID(in.OutputID))] = uint16(i)
		case types.OutputNft:
			unlockedBy[types.NftAddress(in.Output.NftID.OrFromOutputID(in.OutputID))] = uint16(i)
		}
	}
	return unlocks, nil
}

func referenceKind(k types.AddressKind) types.UnlockKind {
	switch k {
	case types.AddressAlias:
		return types.UnlockAliasRef
	case types.AddressNft:
		return types.UnlockNftRef
	default:
		return types.UnlockReference
	}
}

// ConfirmRequest is what a confirmation callback is shown.
type ConfirmRequest struct {
	Mode        ConfirmationMode
	EssenceHash string
	Prepared    *tx.Prepared
}

// ConfirmFunc approves or declines a signing request.
type ConfirmFunc func(ctx context.Context, req ConfirmRequest) (bool, error)

// ConfirmingManager asks for approval before delegating to Manager, the
// way a hardware device displays a transaction before signing it.
type ConfirmingManager struct {
	Manager
	Mode    ConfirmationMode
	Confirm ConfirmFunc
}

func (c *ConfirmingManager) ConfirmationMode() ConfirmationMode {
	return c.Mode
}

// SignTransaction returns ErrSigningDeclined when the callback refuses.
func (c *ConfirmingManager) SignTransaction(ctx context.Context, p *tx.Prepared) ([]types.Unlock, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: prepared transaction", tx.ErrNilParam)
	}
	if c.Confirm != nil && c.Mode != ConfirmNone {
		req := ConfirmRequest{Mode: c.Mode, EssenceHash: p.Essence.HashHex()}
		if c.Mode == ConfirmFullTransaction {
			req.Prepared = p
		}
		ok, err := c.Confirm(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("secret: confirmation failed: %w", err)
		}
		if !ok {
			return nil, ErrSigningDeclined
		}
	}
	return c.Manager.SignTransaction(ctx, p)
}
