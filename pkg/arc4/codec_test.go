package arc4

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustType(t *testing.T, s string, schema *Schema) *Type {
	t.Helper()
	typ, err := ParseType(s, schema)
	require.NoError(t, err)
	return typ
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		dynamic bool
		wantErr bool
	}{
		{in: "uint8", want: "uint8"},
		{in: "uint512", want: "uint512"},
		{in: "byte", want: "byte"},
		{in: "address", want: "address"},
		{in: "string", want: "string", dynamic: true},
		{in: "uint64[]", want: "uint64[]", dynamic: true},
		{in: "byte[32]", want: "byte[32]"},
		{in: "string[2]", want: "string[2]", dynamic: true},
		{in: "(uint8,bool)[]", want: "(uint8,bool)[]", dynamic: true},
		{in: "(uint16,(bool,string))", want: "(uint16,(bool,string))", dynamic: true},
		{in: "uint7", wantErr: true},
		{in: "uint1024", wantErr: true},
		{in: "(uint8", wantErr: true},
		{in: "uint8[x]", wantErr: true},
		{in: "Unknown", wantErr: true},
		{in: "(uint8,)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, err := ParseType(tt.in, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, typ.String())
			assert.Equal(t, tt.dynamic, typ.IsDynamic())
		})
	}
}

func TestEncodeKnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		typ   string
		value interface{}
		want  []byte
	}{
		{name: "uint8", typ: "uint8", value: 7, want: []byte{7}},
		{name: "uint32", typ: "uint32", value: uint32(258), want: []byte{0, 0, 1, 2}},
		{name: "uint64 max", typ: "uint64", value: ^uint64(0), want: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{name: "string", typ: "string", value: "ABC", want: []byte{0, 3, 'A', 'B', 'C'}},
		{name: "dynamic uint16 array", typ: "uint16[]", value: []uint16{1, 2}, want: []byte{0, 2, 0, 1, 0, 2}},
		{name: "static array", typ: "uint8[3]", value: []int{1, 2, 3}, want: []byte{1, 2, 3}},
		{name: "tuple with dynamic tail", typ: "(uint16,string)", value: []interface{}{7, "hi"}, want: []byte{0, 7, 0, 4, 0, 2, 'h', 'i'}},
		{name: "packed bools", typ: "(bool,bool,bool)", value: []interface{}{true, false, true}, want: []byte{0xa0}},
		{name: "bool array", typ: "bool[]", value: []bool{true, true, false, true}, want: []byte{0, 4, 0xd0}},
		{name: "nine bools", typ: "bool[9]", value: []bool{true, false, false, false, false, false, false, false, true}, want: []byte{0x80, 0x80}},
		{name: "string array", typ: "string[]", value: []string{"a", "bc"}, want: []byte{0, 2, 0, 4, 0, 7, 0, 1, 'a', 0, 2, 'b', 'c'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := mustType(t, tt.typ, nil)
			got, err := Encode(typ, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			decoded, err := Decode(typ, got)
			require.NoError(t, err)
			reencoded, err := Encode(typ, decoded)
			require.NoError(t, err)
			assert.Equal(t, got, reencoded)
		})
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		typ   string
		value interface{}
	}{
		{typ: "uint8", value: 256},
		{typ: "uint8", value: -1},
		{typ: "uint16", value: "1"},
		{typ: "bool", value: 1},
		{typ: "uint8[2]", value: []int{1}},
		{typ: "address", value: []byte{1, 2}},
		{typ: "address", value: "NOT-AN-ADDRESS"},
		{typ: "string", value: 5},
	}

	for _, tt := range tests {
		typ := mustType(t, tt.typ, nil)
		_, err := Encode(typ, tt.value)
		assert.Error(t, err, "%s %v", tt.typ, tt.value)
	}
}

func TestWideUintUsesBigInt(t *testing.T) {
	typ := mustType(t, "uint128", nil)
	n, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	require.True(t, ok)

	enc, err := Encode(typ, n)
	require.NoError(t, err)
	assert.Len(t, enc, 16)

	dec, err := Decode(typ, enc)
	require.NoError(t, err)
	assert.Equal(t, 0, n.Cmp(dec.(*big.Int)))
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		data []byte
	}{
		{name: "short uint", typ: "uint32", data: []byte{0, 1}},
		{name: "long uint", typ: "uint8", data: []byte{0, 1}},
		{name: "bad bool", typ: "bool", data: []byte{0x01}},
		{name: "missing length", typ: "string", data: []byte{0}},
		{name: "string length mismatch", typ: "string", data: []byte{0, 5, 'a'}},
		{name: "array truncated", typ: "uint16[]", data: []byte{0, 2, 0, 1}},
		{name: "offset past end", typ: "(uint8,string)", data: []byte{1, 0, 9}},
		{name: "offset before head", typ: "(uint8,string)", data: []byte{1, 0, 1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(mustType(t, tt.typ, nil), tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func testAddress(b byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = b
	}
	return addr
}

func TestUserStructRoundTrip(t *testing.T) {
	schema, err := DefaultSchema()
	require.NoError(t, err)

	addr := testAddress(3)
	user := map[string]interface{}{
		"address":                    addr,
		"relativeId":                 uint32(12),
		"referrerId":                 uint32(34),
		"points":                     uint64(78),
		"redeemedPoints":             uint64(12),
		"referralPoints":             uint64(5),
		"numReferrals":               uint16(2),
		"referrals":                  []uint32{40, 41},
		"completedQuests":            []uint16{1, 2, 3},
		"completedChallenges":        []uint8{1},
		"completableChallenges":      []uint8{2},
		"weeklyDrawEligibility":      []uint8{1, 2},
		"availableDrawPrizeAssetIds": []uint64{3215542831},
		"claimedDrawPrizeAssetIds":   []uint64{},
	}

	enc, err := schema.EncodeStruct("User", user)
	require.NoError(t, err)

	decoded, err := schema.DecodeStruct("User", enc)
	require.NoError(t, err)

	assert.Equal(t, "User", decoded.Name)
	assert.Equal(t, addr, decoded.Address("address"))
	assert.Equal(t, uint64(12), decoded.Uint("relativeId"))
	assert.Equal(t, uint64(34), decoded.Uint("referrerId"))
	assert.Equal(t, uint64(78), decoded.Uint("points"))
	assert.Equal(t, []uint64{40, 41}, decoded.Uints("referrals"))
	assert.Equal(t, []uint64{1, 2, 3}, decoded.Uints("completedQuests"))
	assert.Equal(t, []uint64{3215542831}, decoded.Uints("availableDrawPrizeAssetIds"))
	assert.Empty(t, decoded.Uints("claimedDrawPrizeAssetIds"))

	reencoded, err := schema.EncodeStruct("User", decoded)
	require.NoError(t, err)
	assert.Equal(t, enc, reencoded)

	doc := decoded.Plain()
	assert.Equal(t, addr.String(), doc["address"])
	assert.Equal(t, uint64(78), doc["points"])
	assert.Equal(t, []interface{}{uint64(1), uint64(2), uint64(3)}, doc["completedQuests"])
	assert.Equal(t, []interface{}{uint64(1), uint64(2)}, doc["weeklyDrawEligibility"])
	assert.Equal(t, []interface{}{}, doc["claimedDrawPrizeAssetIds"])

	_, err = schema.DecodeStruct("User", enc[:len(enc)-1])
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestWeeklyDrawStateStrings(t *testing.T) {
	schema, err := DefaultSchema()
	require.NoError(t, err)

	enc, err := schema.EncodeStruct("WeeklyDrawState", map[string]interface{}{
		"status":           uint8(3),
		"accountsIngested": uint32(500),
		"lastRelativeId":   uint32(499),
		"commitBlocks":     []uint64{100, 200},
		"winners":          []uint32{7, 9},
		"txIds":            []string{"TX1", "TX2"},
	})
	require.NoError(t, err)

	state, err := schema.DecodeStruct("WeeklyDrawState", enc)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), state.Uint("status"))
	assert.Equal(t, []uint64{7, 9}, state.Uints("winners"))
	assert.Equal(t, []string{"TX1", "TX2"}, state.Strings("txIds"))
}

func TestEmptyBoxDecodesToZero(t *testing.T) {
	schema, err := DefaultSchema()
	require.NoError(t, err)

	challenge, err := schema.DecodeStruct("Challenge", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), challenge.Uint("completionBadgeAssetId"))
	assert.Empty(t, challenge.Uints("drawPrizeAssetIds"))
	assert.Len(t, challenge.Fields, 7)

	_, err = schema.DecodeStruct("Nope", nil)
	assert.Error(t, err)
}

func TestSchemaOverrideAndNesting(t *testing.T) {
	override := []byte(`{
		"structs": {
			"Challenge": [
				{"name": "drawPrizeAssetIds", "type": "uint64[]"},
				{"name": "completionBadgeAssetId", "type": "uint64"}
			],
			"Outer": [
				{"name": "inner", "type": "Challenge"},
				{"name": "flags", "type": [{"name": "a", "type": "bool"}, {"name": "b", "type": "bool"}]}
			]
		}
	}`)
	path := filepath.Join(t.TempDir(), "draw.arc56.json")
	require.NoError(t, os.WriteFile(path, override, 0o644))

	schema, err := LoadSchema(path)
	require.NoError(t, err)

	challenge, err := schema.Struct("Challenge")
	require.NoError(t, err)
	assert.Len(t, challenge.Fields, 2)

	_, err = schema.Struct("User")
	assert.NoError(t, err, "embedded structs survive an override")

	outer := mustType(t, "Outer", schema)
	enc, err := Encode(outer, map[string]interface{}{
		"inner": map[string]interface{}{"drawPrizeAssetIds": []uint64{5}, "completionBadgeAssetId": uint64(6)},
		"flags": map[string]interface{}{"a": false, "b": true},
	})
	require.NoError(t, err)

	dec, err := Decode(outer, enc)
	require.NoError(t, err)
	inner, ok := dec.(*Struct).Get("inner")
	require.True(t, ok)
	assert.Equal(t, []uint64{5}, inner.(*Struct).Uints("drawPrizeAssetIds"))
}

func TestSchemaRejectsCycles(t *testing.T) {
	_, err := ParseSchema([]byte(`{"structs": {"A": [{"name": "b", "type": "B"}], "B": [{"name": "a", "type": "A[]"}]}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	_, err = ParseSchema([]byte(`{"structs": {"A": [{"name": "x", "type": 5}]}}`))
	assert.Error(t, err)
}
