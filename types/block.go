package types

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// ProtocolVersion is the block protocol version produced by this wallet.
const ProtocolVersion byte = 2

// Block wraps a transaction payload for submission to a node.
type Block struct {
	ProtocolVersion byte                `json:"protocolVersion"`
	Parents         []BlockID           `json:"parents"`
	Payload         *TransactionPayload `json:"payload,omitempty"`
	Nonce           uint64              `json:"nonce"`
}

// PoWBytes is the encoding proof-of-work commits to: everything but the nonce.
func (b *Block) PoWBytes() []byte {
	var w writer
	w.u8(b.ProtocolVersion)
	w.u8(byte(len(b.Parents)))
	for _, p := range b.Parents {
		w.raw(p.Bytes())
	}
	if b.Payload == nil {
		w.u32(0)
	} else {
		payload := b.Payload.Serialize()
		w.u32(uint32(len(payload)))
		w.raw(payload)
	}
	return w.bytes()
}

// Serialize returns the full block encoding including the nonce.
func (b *Block) Serialize() []byte {
	return binary.LittleEndian.AppendUint64(b.PoWBytes(), b.Nonce)
}

// ID returns blake2b-256 of the serialized block.
func (b *Block) ID() BlockID {
	sum := blake2b.Sum256(b.Serialize())
	return MustID[blockKind](sum[:])
}
