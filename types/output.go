package types

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// MaxNativeTokens is the number of distinct native tokens one output can hold.
const MaxNativeTokens = 64

// OutputKind discriminates output variants.
type OutputKind uint8

const (
	OutputBasic   OutputKind = 3
	OutputAlias   OutputKind = 4
	OutputFoundry OutputKind = 5
	OutputNft     OutputKind = 6
)

func (k OutputKind) String() string {
	switch k {
	case OutputBasic:
		return "basic"
	case OutputAlias:
		return "alias"
	case OutputFoundry:
		return "foundry"
	case OutputNft:
		return "nft"
	default:
		return fmt.Sprintf("output kind(%d)", uint8(k))
	}
}

// NativeToken is an amount of a foundry-minted token held by an output.
type NativeToken struct {
	ID     TokenID  `json:"id"`
	Amount *big.Int `json:"amount"`
}

// UnlockConditionKind discriminates unlock conditions.
type UnlockConditionKind uint8

const (
	UnlockAddress              UnlockConditionKind = 0
	UnlockStorageDepositReturn UnlockConditionKind = 1
	UnlockTimelock             UnlockConditionKind = 2
	UnlockExpiration           UnlockConditionKind = 3
	UnlockStateController      UnlockConditionKind = 4
	UnlockGovernor             UnlockConditionKind = 5
	UnlockImmutableAlias       UnlockConditionKind = 6
)

// UnlockCondition restricts who may consume an output and when.
// Address is the owner for Address/StateController/Governor/ImmutableAlias
// and the return address for StorageDepositReturn/Expiration.
type UnlockCondition struct {
	Kind     UnlockConditionKind `json:"type"`
	Address  Address             `json:"address"`
	Amount   uint64              `json:"amount,omitempty"`
	UnixTime uint32              `json:"unixTime,omitempty"`
}

// FeatureKind discriminates output features.
type FeatureKind uint8

const (
	FeatureSender   FeatureKind = 0
	FeatureIssuer   FeatureKind = 1
	FeatureMetadata FeatureKind = 2
	FeatureTag      FeatureKind = 3
)

// Feature is optional output data. Sender and Issuer use Address; Metadata
// and Tag use Data.
type Feature struct {
	Kind    FeatureKind `json:"type"`
	Address Address     `json:"address"`
	Data    []byte      `json:"data,omitempty"`
}

// TokenScheme is the simple token scheme of a foundry.
type TokenScheme struct {
	Minted  *big.Int `json:"mintedTokens"`
	Melted  *big.Int `json:"meltedTokens"`
	Maximum *big.Int `json:"maximumSupply"`
}

// CirculatingSupply is minted minus melted.
func (s *TokenScheme) CirculatingSupply() *big.Int {
	out := new(big.Int)
	if s.Minted != nil {
		out.Set(s.Minted)
	}
	if s.Melted != nil {
		out.Sub(out, s.Melted)
	}
	return out
}

// Output is an immutable ledger value container. The wallet never mutates
// an output once it has been created by a transaction.
type Output struct {
	Kind         OutputKind    `json:"type"`
	Amount       uint64        `json:"amount"`
	NativeTokens []NativeToken `json:"nativeTokens,omitempty"`

	// Alias fields.
	AliasID        AliasID `json:"aliasId"`
	StateIndex     uint32  `json:"stateIndex,omitempty"`
	StateMetadata  []byte  `json:"stateMetadata,omitempty"`
	FoundryCounter uint32  `json:"foundryCounter,omitempty"`

	// Foundry fields.
	SerialNumber uint32       `json:"serialNumber,omitempty"`
	TokenScheme  *TokenScheme `json:"tokenScheme,omitempty"`

	// NFT fields.
	NftID NftID `json:"nftId"`

	UnlockConditions  []UnlockCondition `json:"unlockConditions"`
	Features          []Feature         `json:"features,omitempty"`
	ImmutableFeatures []Feature         `json:"immutableFeatures,omitempty"`
}

// NewBasicOutput returns a basic output of amount owned by addr.
func NewBasicOutput(amount uint64, addr Address) *Output {
	return &Output{
		Kind:             OutputBasic,
		Amount:           amount,
		UnlockConditions: []UnlockCondition{{Kind: UnlockAddress, Address: addr}},
	}
}

// UnlockCondition returns the first unlock condition of kind k.
func (o *Output) UnlockCondition(k UnlockConditionKind) (UnlockCondition, bool) {
	for _, uc := range o.UnlockConditions {
		if uc.Kind == k {
			return uc, true
		}
	}
	return UnlockCondition{}, false
}

// Feature returns the first feature of kind k.
func (o *Output) Feature(k FeatureKind) (Feature, bool) {
	for _, f := range o.Features {
		if f.Kind == k {
			return f, true
		}
	}
	return Feature{}, false
}

// Owner returns the address that unlocks the output absent any expiration.
func (o *Output) Owner() (Address, bool) {
	var k UnlockConditionKind
	switch o.Kind {
	case OutputBasic, OutputNft:
		k = UnlockAddress
	case OutputAlias:
		k = UnlockStateController
	case OutputFoundry:
		k = UnlockImmutableAlias
	default:
		return Address{}, false
	}
	uc, ok := o.UnlockCondition(k)
	return uc.Address, ok
}

// OwnerAt resolves the unlocking address at unix time now. It returns false
// while a timelock is active. Past an expiration the return address owns
// the output.
func (o *Output) OwnerAt(now uint32) (Address, bool) {
	if tl, ok := o.UnlockCondition(UnlockTimelock); ok && now < tl.UnixTime {
		return Address{}, false
	}
	if exp, ok := o.UnlockCondition(UnlockExpiration); ok && now >= exp.UnixTime {
		return exp.Address, true
	}
	return o.Owner()
}

// FoundryID returns the id of a foundry output.
func (o *Output) FoundryID() (FoundryID, bool) {
	if o.Kind != OutputFoundry {
		return FoundryID{}, false
	}
	uc, ok := o.UnlockCondition(UnlockImmutableAlias)
	if !ok {
		return FoundryID{}, false
	}
	alias, ok := uc.Address.AliasID()
	if !ok {
		return FoundryID{}, false
	}
	return NewFoundryID(alias, o.SerialNumber, SimpleTokenSchemeKind), true
}

// NativeTokenAmount returns the amount of token id held, or zero.
func (o *Output) NativeTokenAmount(id TokenID) *big.Int {
	for _, nt := range o.NativeTokens {
		if nt.ID == id && nt.Amount != nil {
			return new(big.Int).Set(nt.Amount)
		}
	}
	return new(big.Int)
}

// Validate checks structural rules that do not depend on ledger state.
func (o *Output) Validate(tokenSupply uint64) error {
	if o.Amount == 0 || (tokenSupply > 0 && o.Amount > tokenSupply) {
		return fmt.Errorf("%w: amount %d outside (0, %d]", ErrInvalidAmount, o.Amount, tokenSupply)
	}
	if len(o.NativeTokens) > MaxNativeTokens {
		return fmt.Errorf("%w: %d native tokens exceeds %d", ErrInvalidOutput, len(o.NativeTokens), MaxNativeTokens)
	}
	seen := make(map[TokenID]struct{}, len(o.NativeTokens))
	for _, nt := range o.NativeTokens {
		if nt.Amount == nil || nt.Amount.Sign() <= 0 {
			return fmt.Errorf("%w: native token %s amount must be positive", ErrInvalidAmount, nt.ID)
		}
		if nt.Amount.BitLen() > 256 {
			return fmt.Errorf("%w: native token %s amount exceeds 256 bits", ErrInvalidAmount, nt.ID)
		}
		if _, dup := seen[nt.ID]; dup {
			return fmt.Errorf("%w: duplicate native token %s", ErrInvalidOutput, nt.ID)
		}
		seen[nt.ID] = struct{}{}
	}
	if _, ok := o.Owner(); !ok {
		return fmt.Errorf("%w: %s output without owner unlock condition", ErrInvalidOutput, o.Kind)
	}
	if o.Kind == OutputFoundry && o.TokenScheme == nil {
		return fmt.Errorf("%w: foundry without token scheme", ErrInvalidOutput)
	}
	return nil
}

// Serialize returns the canonical binary encoding of the output.
func (o *Output) Serialize() []byte {
	var w writer
	w.u8(byte(o.Kind))
	w.u64(o.Amount)
	w.u8(byte(len(o.NativeTokens)))
	for _, nt := range o.NativeTokens {
		w.raw(nt.ID.Bytes())
		w.u256(nt.Amount)
	}
	switch o.Kind {
	case OutputAlias:
		w.raw(o.AliasID.Bytes())
		w.u32(o.StateIndex)
		w.bytes16(o.StateMetadata)
		w.u32(o.FoundryCounter)
	case OutputFoundry:
		w.u32(o.SerialNumber)
		w.u8(SimpleTokenSchemeKind)
		if o.TokenScheme != nil {
			w.u256(o.TokenScheme.Minted)
			w.u256(o.TokenScheme.Melted)
			w.u256(o.TokenScheme.Maximum)
		}
	case OutputNft:
		w.raw(o.NftID.Bytes())
	}
	w.u8(byte(len(o.UnlockConditions)))
	for _, uc := range o.UnlockConditions {
		w.u8(byte(uc.Kind))
		switch uc.Kind {
		case UnlockStorageDepositReturn:
			w.raw(uc.Address.Bytes())
			w.u64(uc.Amount)
		case UnlockTimelock:
			w.u32(uc.UnixTime)
		case UnlockExpiration:
			w.raw(uc.Address.Bytes())
			w.u32(uc.UnixTime)
		default:
			w.raw(uc.Address.Bytes())
		}
	}
	writeFeatures(&w, o.Features)
	writeFeatures(&w, o.ImmutableFeatures)
	return w.bytes()
}

func writeFeatures(w *writer, features []Feature) {
	w.u8(byte(len(features)))
	for _, f := range features {
		w.u8(byte(f.Kind))
		switch f.Kind {
		case FeatureSender, FeatureIssuer:
			w.raw(f.Address.Bytes())
		default:
			w.bytes16(f.Data)
		}
	}
}

// Hash returns blake2b-256 of the serialized output.
func (o *Output) Hash() [HashLength]byte {
	return blake2b.Sum256(o.Serialize())
}

// Clone returns a deep copy so callers can derive new outputs from old ones.
func (o *Output) Clone() *Output {
	c := *o
	c.NativeTokens = make([]NativeToken, len(o.NativeTokens))
	for i, nt := range o.NativeTokens {
		c.NativeTokens[i] = NativeToken{ID: nt.ID, Amount: cloneInt(nt.Amount)}
	}
	if len(c.NativeTokens) == 0 {
		c.NativeTokens = nil
	}
	c.StateMetadata = append([]byte(nil), o.StateMetadata...)
	c.UnlockConditions = append([]UnlockCondition(nil), o.UnlockConditions...)
	c.Features = cloneFeatures(o.Features)
	c.ImmutableFeatures = cloneFeatures(o.ImmutableFeatures)
	if o.TokenScheme != nil {
		c.TokenScheme = &TokenScheme{
			Minted:  cloneInt(o.TokenScheme.Minted),
			Melted:  cloneInt(o.TokenScheme.Melted),
			Maximum: cloneInt(o.TokenScheme.Maximum),
		}
	}
	return &c
}

func cloneFeatures(in []Feature) []Feature {
	if in == nil {
		return nil
	}
	out := make([]Feature, len(in))
	for i, f := range in {
		out[i] = Feature{Kind: f.Kind, Address: f.Address, Data: append([]byte(nil), f.Data...)}
	}
	return out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
