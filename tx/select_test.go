package tx

import (
	"bytes"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libwallet-go/types"
)

func testAddress(seed byte) types.Address {
	var h [types.HashLength]byte
	h[0] = seed
	h[31] = 0x5a
	return types.KeyAddress(h)
}

func testOutputID(t *testing.T, seed byte, index uint16) types.OutputID {
	t.Helper()
	txID, err := types.NewTransactionID(bytes.Repeat([]byte{seed}, types.HashLength))
	require.NoError(t, err)
	return types.NewOutputID(txID, index)
}

func testTokenID(t *testing.T, seed byte) types.TokenID {
	t.Helper()
	id, err := types.NewTokenID(bytes.Repeat([]byte{seed}, types.FoundryIDLength))
	require.NoError(t, err)
	return id
}

func basicInput(t *testing.T, seed byte, amount uint64) InputSigningData {
	t.Helper()
	return InputSigningData{
		OutputID: testOutputID(t, seed, 0),
		Output:   types.NewBasicOutput(amount, testAddress(1)),
		Chain:    &Chain{Index: uint32(seed)},
	}
}

func tokenInput(t *testing.T, seed byte, amount uint64, token types.TokenID, tokens int64) InputSigningData {
	t.Helper()
	in := basicInput(t, seed, amount)
	in.Output.NativeTokens = []types.NativeToken{{ID: token, Amount: big.NewInt(tokens)}}
	return in
}

func selectedIDs(inputs []InputSigningData) []types.OutputID {
	ids := make([]types.OutputID, len(inputs))
	for i, in := range inputs {
		ids[i] = in.OutputID
	}
	return ids
}

func target(amount uint64) Target {
	return Target{Amount: amount, Rent: types.DefaultRentStructure}
}

// --------------------------------------------------------------------------
// Base coin
// --------------------------------------------------------------------------

func TestSelectInputs_LargestFirst(t *testing.T) {
	small := basicInput(t, 1, 500_000)
	large := basicInput(t, 2, 2_000_000)
	mid := basicInput(t, 3, 1_000_000)

	got, err := SelectInputs([]InputSigningData{small, large, mid}, target(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, []types.OutputID{large.OutputID}, selectedIDs(got))
}

func TestSelectInputs_ExactNeedsNoRemainder(t *testing.T) {
	exact := basicInput(t, 1, 2_000_000)
	other := basicInput(t, 2, 1_000_000)

	got, err := SelectInputs([]InputSigningData{other, exact}, target(2_000_000))
	require.NoError(t, err)
	assert.Equal(t, []types.OutputID{exact.OutputID}, selectedIDs(got))
}

func TestSelectInputs_CoversRemainderDeposit(t *testing.T) {
	// 10_000 left over is below the deposit of a remainder output, so a
	// second input is pulled in.
	first := basicInput(t, 1, 1_010_000)
	second := basicInput(t, 2, 500_000)

	got, err := SelectInputs([]InputSigningData{first, second}, target(1_000_000))
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.OutputID{first.OutputID, second.OutputID}, selectedIDs(got))
}

func TestSelectInputs_InsufficientFunds(t *testing.T) {
	_, err := SelectInputs([]InputSigningData{basicInput(t, 1, 500_000)}, target(1_000_000))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = SelectInputs(nil, target(1))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectInputs_NeverSelectsExcluded(t *testing.T) {
	spent := basicInput(t, 1, 5_000_000)
	free := basicInput(t, 2, 1_000_000)
	available := []InputSigningData{spent, free}

	tg := target(500_000)
	tg.Exclude = map[types.OutputID]struct{}{spent.OutputID: {}}
	got, err := SelectInputs(available, tg)
	require.NoError(t, err)
	assert.Equal(t, []types.OutputID{free.OutputID}, selectedIDs(got))

	tg.Amount = 2_000_000
	_, err = SelectInputs(available, tg)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectInputs_SkipsLockedAndConditioned(t *testing.T) {
	timelocked := basicInput(t, 1, 5_000_000)
	timelocked.Output.UnlockConditions = append(timelocked.Output.UnlockConditions,
		types.UnlockCondition{Kind: types.UnlockTimelock, UnixTime: 2000})
	withReturn := basicInput(t, 2, 5_000_000)
	withReturn.Output.UnlockConditions = append(withReturn.Output.UnlockConditions,
		types.UnlockCondition{Kind: types.UnlockStorageDepositReturn, Address: testAddress(9), Amount: 50_000})
	free := basicInput(t, 3, 1_000_000)

	tg := target(500_000)
	tg.Now = 1000
	got, err := SelectInputs([]InputSigningData{timelocked, withReturn, free}, tg)
	require.NoError(t, err)
	assert.Equal(t, []types.OutputID{free.OutputID}, selectedIDs(got))
}

// --------------------------------------------------------------------------
// Required inputs
// --------------------------------------------------------------------------

func TestSelectInputs_RequiredFirst(t *testing.T) {
	alias := InputSigningData{
		OutputID: testOutputID(t, 7, 1),
		Output: &types.Output{
			Kind:   types.OutputAlias,
			Amount: 100_000,
			UnlockConditions: []types.UnlockCondition{
				{Kind: types.UnlockStateController, Address: testAddress(1)},
				{Kind: types.UnlockGovernor, Address: testAddress(1)},
			},
		},
	}
	funds := basicInput(t, 2, 2_000_000)

	tg := target(1_000_000)
	tg.Required = []types.OutputID{alias.OutputID}
	got, err := SelectInputs([]InputSigningData{funds, alias}, tg)
	require.NoError(t, err)
	assert.Equal(t, []types.OutputID{alias.OutputID, funds.OutputID}, selectedIDs(got))
}

func TestSelectInputs_RequiredMissing(t *testing.T) {
	funds := basicInput(t, 2, 2_000_000)

	tg := target(1_000_000)
	tg.Required = []types.OutputID{testOutputID(t, 9, 0)}
	_, err := SelectInputs([]InputSigningData{funds}, tg)
	assert.ErrorIs(t, err, ErrRequiredInputNotFound)

	tg.Required = []types.OutputID{funds.OutputID}
	tg.Exclude = map[types.OutputID]struct{}{funds.OutputID: {}}
	_, err = SelectInputs([]InputSigningData{funds}, tg)
	assert.ErrorIs(t, err, ErrRequiredInputNotFound)
}

func TestSelectInputs_RequiredReturnAddsFunds(t *testing.T) {
	claim := basicInput(t, 1, 300_000)
	claim.Output.UnlockConditions = append(claim.Output.UnlockConditions,
		types.UnlockCondition{Kind: types.UnlockStorageDepositReturn, Address: testAddress(9), Amount: 400_000})
	funds := basicInput(t, 2, 1_000_000)

	tg := target(0)
	tg.Required = []types.OutputID{claim.OutputID}
	got, err := SelectInputs([]InputSigningData{claim, funds}, tg)
	require.NoError(t, err)
	assert.Equal(t, []types.OutputID{claim.OutputID, funds.OutputID}, selectedIDs(got))

	_, err = SelectInputs([]InputSigningData{claim}, tg)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectInputs_AmountOverflow(t *testing.T) {
	big1 := basicInput(t, 1, math.MaxUint64-10)
	big2 := basicInput(t, 2, 100)

	tg := target(1_000_000)
	tg.Required = []types.OutputID{big1.OutputID, big2.OutputID}
	_, err := SelectInputs([]InputSigningData{big1, big2}, tg)
	assert.ErrorIs(t, err, types.ErrInvalidAmount)
}

// --------------------------------------------------------------------------
// Native tokens
// --------------------------------------------------------------------------

func TestSelectInputs_NativeTokens(t *testing.T) {
	token := testTokenID(t, 0x11)
	holder := tokenInput(t, 1, 100_000, token, 100)
	funds := basicInput(t, 2, 2_000_000)

	tg := target(1_000_000)
	tg.NativeTokens = map[types.TokenID]*big.Int{token: big.NewInt(50)}
	got, err := SelectInputs([]InputSigningData{funds, holder}, tg)
	require.NoError(t, err)
	assert.Equal(t, []types.OutputID{holder.OutputID, funds.OutputID}, selectedIDs(got))
}

func TestSelectInputs_TokenErrors(t *testing.T) {
	token := testTokenID(t, 0x11)
	holder := tokenInput(t, 1, 100_000, token, 10)
	funds := basicInput(t, 2, 2_000_000)
	available := []InputSigningData{holder, funds}

	tg := target(100_000)
	tg.NativeTokens = map[types.TokenID]*big.Int{testTokenID(t, 0x22): big.NewInt(1)}
	_, err := SelectInputs(available, tg)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	tg.NativeTokens = map[types.TokenID]*big.Int{token: big.NewInt(11)}
	_, err = SelectInputs(available, tg)
	assert.ErrorIs(t, err, ErrInsufficientNativeTokens)
}
