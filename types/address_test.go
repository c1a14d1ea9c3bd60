package types

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyAddress(seed byte) Address {
	var h [HashLength]byte
	copy(h[:], seqBytes(HashLength, seed))
	return KeyAddress(h)
}

// ---------------------------------------------------------------------------
// Bech32
// ---------------------------------------------------------------------------

func TestAddress_Bech32RoundTrip(t *testing.T) {
	addrs := []Address{
		testKeyAddress(1),
		AliasAddress(MustID[aliasKind](seqBytes(HashLength, 2))),
		NftAddress(MustID[nftKind](seqBytes(HashLength, 3))),
	}
	for _, addr := range addrs {
		t.Run(addr.Kind.String(), func(t *testing.T) {
			s := addr.Bech32("rms")
			require.NotEmpty(t, s)
			assert.True(t, strings.HasPrefix(s, "rms1"))

			hrp, parsed, err := ParseBech32(s)
			require.NoError(t, err)
			assert.Equal(t, "rms", hrp)
			assert.Equal(t, addr, parsed)
		})
	}
}

func TestParseBech32ForNetwork_Mismatch(t *testing.T) {
	s := testKeyAddress(1).Bech32("smr")
	_, err := ParseBech32ForNetwork(s, "rms")
	assert.ErrorIs(t, err, ErrNetworkMismatch)

	addr, err := ParseBech32ForNetwork(s, "smr")
	require.NoError(t, err)
	assert.Equal(t, testKeyAddress(1), addr)
}

func TestParseBech32_Invalid(t *testing.T) {
	valid := testKeyAddress(1).Bech32("rms")
	last := "q"
	if strings.HasSuffix(valid, "q") {
		last = "p"
	}
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad checksum", valid[:len(valid)-1] + last},
		{"no separator", "rmsqqqq"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseBech32(tt.input)
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestAddressFromBytes_UnknownKind(t *testing.T) {
	b := testKeyAddress(1).Bytes()
	b[0] = 3
	_, err := AddressFromBytes(b)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = AddressFromBytes(b[:10])
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddress_ChainIDs(t *testing.T) {
	alias := MustID[aliasKind](seqBytes(HashLength, 5))
	got, ok := AliasAddress(alias).AliasID()
	require.True(t, ok)
	assert.Equal(t, alias, got)

	_, ok = AliasAddress(alias).NftID()
	assert.False(t, ok)
	_, ok = testKeyAddress(1).AliasID()
	assert.False(t, ok)
}

func TestAddress_JSON(t *testing.T) {
	addr := NftAddress(MustID[nftKind](seqBytes(HashLength, 9)))
	data, err := json.Marshal(addr)
	require.NoError(t, err)

	var got Address
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, addr, got)
}

// ---------------------------------------------------------------------------
// Outputs
// ---------------------------------------------------------------------------

func testTokenID(seed byte) TokenID {
	return TokenIDFromFoundry(NewFoundryID(MustID[aliasKind](seqBytes(HashLength, seed)), 1, SimpleTokenSchemeKind))
}

func TestOutput_Validate(t *testing.T) {
	owner := testKeyAddress(1)

	out := NewBasicOutput(1_000_000, owner)
	require.NoError(t, out.Validate(2_000_000))

	assert.ErrorIs(t, NewBasicOutput(0, owner).Validate(2_000_000), ErrInvalidAmount)
	assert.ErrorIs(t, NewBasicOutput(3_000_000, owner).Validate(2_000_000), ErrInvalidAmount)

	noOwner := &Output{Kind: OutputBasic, Amount: 10}
	assert.ErrorIs(t, noOwner.Validate(0), ErrInvalidOutput)

	dup := NewBasicOutput(10, owner)
	dup.NativeTokens = []NativeToken{
		{ID: testTokenID(1), Amount: big.NewInt(1)},
		{ID: testTokenID(1), Amount: big.NewInt(2)},
	}
	assert.ErrorIs(t, dup.Validate(0), ErrInvalidOutput)

	zero := NewBasicOutput(10, owner)
	zero.NativeTokens = []NativeToken{{ID: testTokenID(1), Amount: big.NewInt(0)}}
	assert.ErrorIs(t, zero.Validate(0), ErrInvalidAmount)
}

func TestOutput_OwnerAt(t *testing.T) {
	owner := testKeyAddress(1)
	ret := testKeyAddress(2)
	out := NewBasicOutput(100, owner)
	out.UnlockConditions = append(out.UnlockConditions,
		UnlockCondition{Kind: UnlockExpiration, Address: ret, UnixTime: 1000},
		UnlockCondition{Kind: UnlockTimelock, UnixTime: 500},
	)

	_, ok := out.OwnerAt(100)
	assert.False(t, ok, "timelocked")

	got, ok := out.OwnerAt(600)
	require.True(t, ok)
	assert.Equal(t, owner, got)

	got, ok = out.OwnerAt(1000)
	require.True(t, ok)
	assert.Equal(t, ret, got, "expired outputs return to the sender")
}

func TestOutput_FoundryID(t *testing.T) {
	alias := MustID[aliasKind](seqBytes(HashLength, 6))
	out := &Output{
		Kind:             OutputFoundry,
		Amount:           100,
		SerialNumber:     3,
		TokenScheme:      &TokenScheme{Minted: big.NewInt(10), Melted: big.NewInt(4), Maximum: big.NewInt(100)},
		UnlockConditions: []UnlockCondition{{Kind: UnlockImmutableAlias, Address: AliasAddress(alias)}},
	}
	id, ok := out.FoundryID()
	require.True(t, ok)
	assert.Equal(t, NewFoundryID(alias, 3, SimpleTokenSchemeKind), id)
	assert.Equal(t, big.NewInt(6), out.TokenScheme.CirculatingSupply())

	owner, ok := out.Owner()
	require.True(t, ok)
	assert.Equal(t, AliasAddress(alias), owner)
}

func TestOutput_CloneIsDeep(t *testing.T) {
	out := NewBasicOutput(100, testKeyAddress(1))
	out.NativeTokens = []NativeToken{{ID: testTokenID(1), Amount: big.NewInt(5)}}
	out.Features = []Feature{{Kind: FeatureTag, Data: []byte("tag")}}

	c := out.Clone()
	c.NativeTokens[0].Amount.SetInt64(99)
	c.Features[0].Data[0] = 'x'
	c.UnlockConditions[0].Address = testKeyAddress(2)

	assert.Equal(t, int64(5), out.NativeTokens[0].Amount.Int64())
	assert.Equal(t, "tag", string(out.Features[0].Data))
	assert.Equal(t, testKeyAddress(1), out.UnlockConditions[0].Address)
	assert.Equal(t, out.Serialize(), out.Clone().Serialize())
}

func TestOutput_HashChangesWithContent(t *testing.T) {
	a := NewBasicOutput(100, testKeyAddress(1))
	b := NewBasicOutput(101, testKeyAddress(1))
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.Equal(t, a.Hash(), NewBasicOutput(100, testKeyAddress(1)).Hash())
}

func TestRentStructure_MinStorageDeposit(t *testing.T) {
	rent := DefaultRentStructure
	plain := rent.MinBasicDeposit(testKeyAddress(1), nil)
	// kind, amount, token count, one address unlock, two empty feature lists.
	wantBytes := uint64(1 + 8 + 1 + 1 + 1 + AddressLength + 1 + 1)
	want := uint64(rent.VByteCost) * (uint64(rent.VByteFactorKey)*OutputIDLength +
		uint64(rent.VByteFactorData)*outputMetadataLength + wantBytes)
	assert.Equal(t, want, plain)

	withToken := rent.MinBasicDeposit(testKeyAddress(1), []NativeToken{{ID: testTokenID(1), Amount: big.NewInt(1)}})
	assert.Greater(t, withToken, plain)
}

// ---------------------------------------------------------------------------
// Transactions and blocks
// ---------------------------------------------------------------------------

func testPayload() *TransactionPayload {
	input := NewOutputID(MustID[transactionKind](seqBytes(HashLength, 1)), 0)
	consumed := NewBasicOutput(2_000_000, testKeyAddress(1))
	return &TransactionPayload{
		Essence: Essence{
			NetworkID:        42,
			Inputs:           []OutputID{input},
			InputsCommitment: InputsCommitment([]*Output{consumed}),
			Outputs:          []*Output{NewBasicOutput(2_000_000, testKeyAddress(2))},
		},
		Unlocks: []Unlock{{Kind: UnlockSignature, PublicKey: []byte{2, 1}, Signature: []byte{0x30, 1}}},
	}
}

func TestTransactionPayload_IDStable(t *testing.T) {
	p := testPayload()
	require.NoError(t, p.Validate())
	id := p.ID()
	assert.False(t, id.IsNull())
	assert.Equal(t, id, testPayload().ID())

	p.Unlocks[0].Signature = []byte{0x30, 2}
	assert.NotEqual(t, id, p.ID(), "id derives from the signed encoding")
}

func TestTransactionPayload_Validate(t *testing.T) {
	p := testPayload()
	p.Unlocks = nil
	assert.ErrorIs(t, p.Validate(), ErrInvalidOutput)

	p = testPayload()
	p.Unlocks[0] = Unlock{Kind: UnlockReference, Reference: 0}
	assert.ErrorIs(t, p.Validate(), ErrInvalidOutput, "a reference must point at an earlier unlock")
}

func TestEssence_HashHex(t *testing.T) {
	e := testPayload().Essence
	assert.True(t, strings.HasPrefix(e.HashHex(), "0x"))
	assert.Len(t, e.HashHex(), 2+2*HashLength)
}

func TestBlock_IDDependsOnNonce(t *testing.T) {
	b := &Block{ProtocolVersion: ProtocolVersion, Parents: []BlockID{MustID[blockKind](seqBytes(HashLength, 1))}, Payload: testPayload()}
	id := b.ID()
	b.Nonce = 1
	assert.NotEqual(t, id, b.ID())
	assert.Equal(t, b.PoWBytes(), b.Serialize()[:len(b.Serialize())-8])
}

func TestInclusionState_Terminal(t *testing.T) {
	assert.True(t, InclusionIncluded.Terminal())
	assert.True(t, InclusionConflicting.Terminal())
	assert.False(t, InclusionPending.Terminal())
	assert.False(t, InclusionUnknownPruned.Terminal())
}
