package arc4

import (
	"bytes"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Box map prefixes used by the campaign contracts
const (
	PrefixChallenge   = "c"
	PrefixWeeklyState = "w"
	PrefixRelativeID  = "r"
)

// EncodeKey builds a box-map key: prefix followed by the ARC-4 encoding of value
func EncodeKey(prefix, typ string, value interface{}) ([]byte, error) {
	t, err := ParseType(typ, nil)
	if err != nil {
		return nil, err
	}
	enc, err := Encode(t, value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q key: %w", prefix, err)
	}
	return append([]byte(prefix), enc...), nil
}

// DecodeKey inverts EncodeKey
func DecodeKey(prefix, typ string, key []byte) (interface{}, error) {
	if !bytes.HasPrefix(key, []byte(prefix)) {
		return nil, fmt.Errorf("%w: key does not start with %q", ErrMalformed, prefix)
	}
	t, err := ParseType(typ, nil)
	if err != nil {
		return nil, err
	}
	return Decode(t, key[len(prefix):])
}

// ChallengeKey is the draw-app box holding a week's Challenge
func ChallengeKey(week uint8) []byte {
	return mustKey(PrefixChallenge, "uint8", uint64(week))
}

// WeeklyStateKey is the draw-app box holding a week's WeeklyDrawState
func WeeklyStateKey(week uint8) []byte {
	return mustKey(PrefixWeeklyState, "uint8", uint64(week))
}

// RelativeIDKey is the registry box mapping a relative id to a public key
func RelativeIDKey(id uint32) []byte {
	return mustKey(PrefixRelativeID, "uint32", uint64(id))
}

// mustKey encodes a key whose value always fits its type
func mustKey(prefix, typ string, value uint64) []byte {
	key, err := EncodeKey(prefix, typ, value)
	if err != nil {
		panic(err)
	}
	return key
}

// UserKey is the registry box holding a User; the name is the raw public key
func UserKey(addr types.Address) []byte {
	return append([]byte(nil), addr[:]...)
}

// WeekFromKey extracts the week of a 'c' or 'w' box name
func WeekFromKey(prefix string, key []byte) (uint8, bool) {
	v, err := DecodeKey(prefix, "uint8", key)
	if err != nil {
		return 0, false
	}
	week, ok := v.(uint64)
	return uint8(week), ok
}
