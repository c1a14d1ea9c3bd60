package types

// RentStructure prices the ledger storage an output occupies.
type RentStructure struct {
	VByteCost       uint32 `json:"vByteCost"`
	VByteFactorKey  uint8  `json:"vByteFactorKey"`
	VByteFactorData uint8  `json:"vByteFactorData"`
}

// DefaultRentStructure matches the parameters of the public networks.
var DefaultRentStructure = RentStructure{
	VByteCost:       100,
	VByteFactorKey:  10,
	VByteFactorData: 1,
}

// outputMetadataLength is the ledger bookkeeping stored beside every output:
// the including block id plus milestone index and timestamp.
const outputMetadataLength = HashLength + 4 + 4

// MinStorageDeposit returns the smallest amount out must hold to pay for its
// own storage.
func (r RentStructure) MinStorageDeposit(out *Output) uint64 {
	offset := uint64(r.VByteFactorKey)*OutputIDLength + uint64(r.VByteFactorData)*outputMetadataLength
	weight := uint64(r.VByteFactorData) * uint64(len(out.Serialize()))
	return uint64(r.VByteCost) * (offset + weight)
}

// MinBasicDeposit is the deposit of the smallest basic output owned by addr,
// with the given native tokens attached.
func (r RentStructure) MinBasicDeposit(addr Address, tokens []NativeToken) uint64 {
	out := NewBasicOutput(1, addr)
	out.NativeTokens = tokens
	return r.MinStorageDeposit(out)
}
