package types

import (
	"encoding/binary"
	"fmt"
)

const (
	// HashLength is the length of every hash-derived identifier.
	HashLength = 32

	// OutputIndexLength is the size of the output index suffix of an OutputID.
	OutputIndexLength = 2

	// OutputIDLength is a transaction id followed by a u16 output index.
	OutputIDLength = HashLength + OutputIndexLength

	// FoundryIDLength is an alias address, a u32 serial number and a token scheme byte.
	FoundryIDLength = AddressLength + 4 + 1
)

type transactionKind struct{}

func (transactionKind) Name() string { return "transaction id" }
func (transactionKind) Length() int  { return HashLength }

type blockKind struct{}

func (blockKind) Name() string { return "block id" }
func (blockKind) Length() int  { return HashLength }

type outputKind struct{}

func (outputKind) Name() string { return "output id" }
func (outputKind) Length() int  { return OutputIDLength }

type aliasKind struct{}

func (aliasKind) Name() string { return "alias id" }
func (aliasKind) Length() int  { return HashLength }

type nftKind struct{}

func (nftKind) Name() string { return "nft id" }
func (nftKind) Length() int  { return HashLength }

type foundryKind struct{}

func (foundryKind) Name() string { return "foundry id" }
func (foundryKind) Length() int  { return FoundryIDLength }

type tokenKind struct{}

func (tokenKind) Name() string { return "token id" }
func (tokenKind) Length() int  { return FoundryIDLength }

type (
	TransactionID = ID[transactionKind]
	BlockID       = ID[blockKind]
	OutputID      = ID[outputKind]
	AliasID       = ID[aliasKind]
	NftID         = ID[nftKind]
	FoundryID     = ID[foundryKind]
	// TokenID of a native token equals the id of the foundry that minted it.
	TokenID = ID[tokenKind]
)

// Typed constructors for the identifier kinds.
var (
	NewTransactionID      = NewID[transactionKind]
	NewBlockID            = NewID[blockKind]
	NewOutputIDFromBytes  = NewID[outputKind]
	NewAliasID            = NewID[aliasKind]
	NewNftID              = NewID[nftKind]
	NewFoundryIDFromBytes = NewID[foundryKind]
	NewTokenID            = NewID[tokenKind]
)

// Typed parsers for the identifier kinds.
var (
	ParseTransactionID = ParseID[transactionKind]
	ParseBlockID       = ParseID[blockKind]
	ParseOutputID      = ParseID[outputKind]
	ParseAliasID       = ParseID[aliasKind]
	ParseNftID         = ParseID[nftKind]
	ParseFoundryID     = ParseID[foundryKind]
	ParseTokenID       = ParseID[tokenKind]
)

// NewOutputID joins a transaction id and an output index.
func NewOutputID(txID TransactionID, index uint16) OutputID {
	b := make([]byte, OutputIDLength)
	copy(b, txID.Bytes())
	binary.LittleEndian.PutUint16(b[HashLength:], index)
	return MustID[outputKind](b)
}

// OutputIDTransaction returns the transaction part of an output id.
func OutputIDTransaction(id OutputID) TransactionID {
	return MustID[transactionKind](id.Bytes()[:HashLength])
}

// OutputIDIndex returns the output index part of an output id.
func OutputIDIndex(id OutputID) uint16 {
	return binary.LittleEndian.Uint16(id.Bytes()[HashLength:])
}

// SimpleTokenSchemeKind is the only token scheme foundries support.
const SimpleTokenSchemeKind byte = 0

// NewFoundryID builds the id of the foundry with the given serial number
// controlled by alias.
func NewFoundryID(alias AliasID, serial uint32, scheme byte) FoundryID {
	b := make([]byte, 0, FoundryIDLength)
	b = append(b, AliasAddress(alias).Bytes()...)
	b = binary.LittleEndian.AppendUint32(b, serial)
	b = append(b, scheme)
	return MustID[foundryKind](b)
}

// TokenIDFromFoundry returns the id of the native token a foundry controls.
func TokenIDFromFoundry(id FoundryID) TokenID {
	return MustID[tokenKind](id.Bytes())
}

// FoundryAlias returns the alias controlling the foundry.
func FoundryAlias(id FoundryID) AliasID {
	return MustID[aliasKind](id.Bytes()[1:AddressLength])
}

// FoundrySerial returns the foundry's serial number.
func FoundrySerial(id FoundryID) uint32 {
	return binary.LittleEndian.Uint32(id.Bytes()[AddressLength:])
}

// FormatOutputID renders an output id as "<txid>:<index>" for logs.
func FormatOutputID(id OutputID) string {
	return fmt.Sprintf("%s:%d", OutputIDTransaction(id), OutputIDIndex(id))
}
