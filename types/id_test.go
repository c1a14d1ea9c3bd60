package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func seqBytes(n int, start byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

// ---------------------------------------------------------------------------
// Construction and null
// ---------------------------------------------------------------------------

func TestNewID_LengthChecked(t *testing.T) {
	_, err := NewID[transactionKind](make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = NewID[outputKind](make([]byte, HashLength))
	assert.ErrorIs(t, err, ErrInvalidLength)

	id, err := NewID[outputKind](seqBytes(OutputIDLength, 1))
	require.NoError(t, err)
	assert.Equal(t, OutputIDLength, id.Len())
}

func TestNewID_CopiesInput(t *testing.T) {
	raw := seqBytes(HashLength, 1)
	id := MustID[aliasKind](raw)
	raw[0] = 0xff
	assert.Equal(t, byte(1), id.Bytes()[0])

	out := id.Bytes()
	out[1] = 0xff
	assert.Equal(t, byte(2), id.Bytes()[1])
}

func TestNullID(t *testing.T) {
	null := NullID[transactionKind]()
	assert.True(t, null.IsNull())
	assert.Equal(t, make([]byte, HashLength), null.Bytes())

	zero, err := NewID[transactionKind](make([]byte, HashLength))
	require.NoError(t, err)
	assert.True(t, zero.IsNull())
	assert.Equal(t, null, zero, "all-zero bytes and NullID must compare equal")

	var unset TransactionID
	assert.Equal(t, null, unset)
}

func TestID_CompareBytewise(t *testing.T) {
	a := MustID[blockKind](seqBytes(HashLength, 1))
	b := MustID[blockKind](seqBytes(HashLength, 2))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(MustID[blockKind](seqBytes(HashLength, 1))))
	assert.Equal(t, -1, NullID[blockKind]().Compare(a))
}

// ---------------------------------------------------------------------------
// Text encoding
// ---------------------------------------------------------------------------

func TestID_StringRoundTrip(t *testing.T) {
	id := MustID[foundryKind](seqBytes(FoundryIDLength, 7))
	s := id.String()
	assert.True(t, strings.HasPrefix(s, "0x"))
	assert.Len(t, s, 2+2*FoundryIDLength)

	parsed, err := ParseFoundryID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseID_Errors(t *testing.T) {
	valid := MustID[transactionKind](seqBytes(HashLength, 1)).String()
	tests := []struct {
		name  string
		input string
	}{
		{"missing prefix", valid[2:]},
		{"invalid hex", "0x" + strings.Repeat("zz", HashLength)},
		{"odd length", valid[:len(valid)-1]},
		{"too short", valid[:len(valid)-2]},
		{"too long", valid + "00"},
		{"empty", ""},
		{"prefix only", "0x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTransactionID(tt.input)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestID_JSON(t *testing.T) {
	type record struct {
		Output OutputID `json:"output"`
		Alias  AliasID  `json:"alias"`
	}
	in := record{
		Output: NewOutputID(MustID[transactionKind](seqBytes(HashLength, 3)), 5),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), NullID[aliasKind]().String())

	var out record
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
	assert.True(t, out.Alias.IsNull())

	err = json.Unmarshal([]byte(`{"output":"0x01"}`), &out)
	assert.ErrorIs(t, err, ErrDecode)
}

// ---------------------------------------------------------------------------
// Output ids and foundry ids
// ---------------------------------------------------------------------------

func TestOutputID_Parts(t *testing.T) {
	txID := MustID[transactionKind](seqBytes(HashLength, 9))
	id := NewOutputID(txID, 513)
	assert.Equal(t, txID, OutputIDTransaction(id))
	assert.Equal(t, uint16(513), OutputIDIndex(id))
	assert.Equal(t, txID.String()+":513", FormatOutputID(id))
}

func TestFoundryID_Parts(t *testing.T) {
	alias := MustID[aliasKind](seqBytes(HashLength, 4))
	id := NewFoundryID(alias, 7, SimpleTokenSchemeKind)

	assert.Equal(t, byte(AddressAlias), id.Bytes()[0])
	assert.Equal(t, alias, FoundryAlias(id))
	assert.Equal(t, uint32(7), FoundrySerial(id))
	assert.Equal(t, id.Bytes(), TokenIDFromFoundry(id).Bytes())
}

// ---------------------------------------------------------------------------
// Derivation
// ---------------------------------------------------------------------------

func TestOrFromOutputID(t *testing.T) {
	out := NewOutputID(MustID[transactionKind](seqBytes(HashLength, 1)), 0)
	want := blake2b.Sum256(out.Bytes())

	derived := NullID[aliasKind]().OrFromOutputID(out)
	assert.Equal(t, want[:], derived.Bytes())

	// Idempotent: deriving again, even from another output, keeps the id.
	other := NewOutputID(MustID[transactionKind](seqBytes(HashLength, 2)), 1)
	assert.Equal(t, derived, derived.OrFromOutputID(out))
	assert.Equal(t, derived, derived.OrFromOutputID(other))

	existing := MustID[nftKind](seqBytes(HashLength, 50))
	assert.Equal(t, existing, existing.OrFromOutputID(out))
}

func TestOrFromOutputID_NonHashKindUnchanged(t *testing.T) {
	out := NewOutputID(MustID[transactionKind](seqBytes(HashLength, 1)), 0)
	assert.True(t, NullID[foundryKind]().OrFromOutputID(out).IsNull())
}

// ---------------------------------------------------------------------------
// Fuzz
// ---------------------------------------------------------------------------

// FuzzIDRoundTrip verifies parse(to_string(id)) == id for every valid input.
func FuzzIDRoundTrip(f *testing.F) {
	f.Add(seqBytes(OutputIDLength, 0))
	f.Add(make([]byte, OutputIDLength))
	f.Add(bytes.Repeat([]byte{0xff}, OutputIDLength))

	f.Fuzz(func(t *testing.T, raw []byte) {
		id, err := NewID[outputKind](raw)
		if len(raw) != OutputIDLength {
			if err == nil {
				t.Fatalf("accepted %d bytes", len(raw))
			}
			return
		}
		if err != nil {
			t.Fatalf("NewID: %v", err)
		}
		parsed, err := ParseOutputID(id.String())
		if err != nil {
			t.Fatalf("ParseOutputID(%q): %v", id.String(), err)
		}
		if parsed != id {
			t.Fatalf("round trip mismatch: %s != %s", parsed, id)
		}
	})
}

// FuzzParseIDNoPanic ensures arbitrary text never panics the parser.
func FuzzParseIDNoPanic(f *testing.F) {
	f.Add("0x")
	f.Add("0xzz")
	f.Add("")
	f.Fuzz(func(t *testing.T, s string) {
		_, _ = ParseTransactionID(s)
	})
}
