package types

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Essence is the signed part of a transaction.
type Essence struct {
	NetworkID uint64     `json:"networkId"`
	Inputs    []OutputID `json:"inputs"`
	// InputsCommitment is blake2b-256 over the concatenated hashes of the
	// consumed outputs, binding the signature to their content.
	InputsCommitment [HashLength]byte `json:"inputsCommitment"`
	Outputs          []*Output        `json:"outputs"`
	// Payload is an optional tagged-data payload.
	Payload *TaggedData `json:"payload,omitempty"`
}

// TaggedData is arbitrary data attached to an essence.
type TaggedData struct {
	Tag  []byte `json:"tag"`
	Data []byte `json:"data"`
}

// InputsCommitment computes the commitment for the given consumed outputs,
// in input order.
func InputsCommitment(consumed []*Output) [HashLength]byte {
	h, _ := blake2b.New256(nil)
	for _, out := range consumed {
		sum := out.Hash()
		h.Write(sum[:])
	}
	var c [HashLength]byte
	copy(c[:], h.Sum(nil))
	return c
}

// Serialize returns the canonical encoding of the essence.
func (e *Essence) Serialize() []byte {
	var w writer
	w.u8(1) // regular essence
	w.u64(e.NetworkID)
	w.u16(uint16(len(e.Inputs)))
	for _, in := range e.Inputs {
		w.u8(0) // UTXO input
		w.raw(in.Bytes())
	}
	w.raw(e.InputsCommitment[:])
	w.u16(uint16(len(e.Outputs)))
	for _, out := range e.Outputs {
		w.raw(out.Serialize())
	}
	if e.Payload == nil {
		w.u32(0)
	} else {
		var p writer
		p.u32(5) // tagged data payload
		p.bytes16(e.Payload.Tag)
		p.bytes16(e.Payload.Data)
		w.u32(uint32(len(p.bytes())))
		w.raw(p.bytes())
	}
	return w.bytes()
}

// Hash returns blake2b-256 of the serialized essence; this is what gets signed.
func (e *Essence) Hash() [HashLength]byte {
	return blake2b.Sum256(e.Serialize())
}

// HashHex is the essence hash in prefixed hex, as shown to signing devices.
func (e *Essence) HashHex() string {
	h := e.Hash()
	return HexPrefix + hex.EncodeToString(h[:])
}

// UnlockKind discriminates unlocks.
type UnlockKind uint8

const (
	UnlockSignature UnlockKind = 0
	UnlockReference UnlockKind = 1
	UnlockAliasRef  UnlockKind = 2
	UnlockNftRef    UnlockKind = 3
)

// Unlock proves the right to consume one input. Signature unlocks carry a
// public key and signature; the reference kinds point at the index of an
// earlier unlock that already proved ownership.
type Unlock struct {
	Kind      UnlockKind `json:"type"`
	PublicKey []byte     `json:"publicKey,omitempty"`
	Signature []byte     `json:"signature,omitempty"`
	Reference uint16     `json:"reference,omitempty"`
}

// TransactionPayload is a signed transaction.
type TransactionPayload struct {
	Essence Essence  `json:"essence"`
	Unlocks []Unlock `json:"unlocks"`
}

// Validate checks that every input has exactly one unlock and that
// references point backwards.
func (p *TransactionPayload) Validate() error {
	if len(p.Unlocks) != len(p.Essence.Inputs) {
		return fmt.Errorf("%w: %d unlocks for %d inputs", ErrInvalidOutput, len(p.Unlocks), len(p.Essence.Inputs))
	}
	for i, u := range p.Unlocks {
		switch u.Kind {
		case UnlockSignature:
			if len(u.Signature) == 0 || len(u.PublicKey) == 0 {
				return fmt.Errorf("%w: unlock %d has empty signature", ErrInvalidOutput, i)
			}
		default:
			if int(u.Reference) >= i {
				return fmt.Errorf("%w: unlock %d references %d", ErrInvalidOutput, i, u.Reference)
			}
		}
	}
	return nil
}

// Serialize returns the canonical encoding of the signed transaction.
func (p *TransactionPayload) Serialize() []byte {
	var w writer
	w.u32(6) // transaction payload
	w.raw(p.Essence.Serialize())
	w.u16(uint16(len(p.Unlocks)))
	for _, u := range p.Unlocks {
		w.u8(byte(u.Kind))
		if u.Kind == UnlockSignature {
			w.bytes16(u.PublicKey)
			w.bytes16(u.Signature)
			continue
		}
		w.u16(u.Reference)
	}
	return w.bytes()
}

// ID derives the transaction id from the signed encoding. It is stable once
// the payload is signed.
func (p *TransactionPayload) ID() TransactionID {
	sum := blake2b.Sum256(p.Serialize())
	return MustID[transactionKind](sum[:])
}

// InclusionState is the ledger status of a submitted transaction.
type InclusionState string

const (
	InclusionPending       InclusionState = "pending"
	InclusionIncluded      InclusionState = "included"
	InclusionConflicting   InclusionState = "conflicting"
	InclusionUnknownPruned InclusionState = "unknownPruned"
)

// Terminal reports whether the state can no longer change.
func (s InclusionState) Terminal() bool {
	return s == InclusionIncluded || s == InclusionConflicting
}
