package testutil

import (
	"testing"

	"github.com/0xmhha/algoland-api/pkg/arc4"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/require"
)

// Application ids used by contract fixtures
const (
	RegistryAppID uint64 = 3215540125
	DrawAppID     uint64 = 3215541000
)

// EncodeStruct encodes fields as the named struct of the default schema
func EncodeStruct(t *testing.T, name string, fields map[string]interface{}) []byte {
	t.Helper()
	schema, err := arc4.DefaultSchema()
	require.NoError(t, err)
	data, err := schema.EncodeStruct(name, fields)
	require.NoError(t, err)
	return data
}

// SetDrawApp points the registry at the draw application
func (f *FakeIndexer) SetDrawApp() {
	f.SetGlobalUint(RegistryAppID, "drawAppId", DrawAppID)
}

// SetUser stores a registry User record for pk, plus its relative-id mapping
func (f *FakeIndexer) SetUser(t *testing.T, pk types.Address, fields map[string]interface{}) {
	t.Helper()
	if _, ok := fields["address"]; !ok {
		fields["address"] = pk
	}
	f.SetBox(RegistryAppID, arc4.UserKey(pk), EncodeStruct(t, "User", fields))
	if id, ok := fields["relativeId"]; ok {
		f.SetRelativeID(toUint32(t, id), pk)
	}
}

// SetRelativeID maps a relative id to a public key
func (f *FakeIndexer) SetRelativeID(id uint32, pk types.Address) {
	f.SetBox(RegistryAppID, arc4.RelativeIDKey(id), pk[:])
}

// SetChallenge stores a week's Challenge box in the draw application
func (f *FakeIndexer) SetChallenge(t *testing.T, week uint8, fields map[string]interface{}) {
	t.Helper()
	f.SetBox(DrawAppID, arc4.ChallengeKey(week), EncodeStruct(t, "Challenge", fields))
}

// SetWeeklyState stores a week's WeeklyDrawState box in the draw application
func (f *FakeIndexer) SetWeeklyState(t *testing.T, week uint8, fields map[string]interface{}) {
	t.Helper()
	f.SetBox(DrawAppID, arc4.WeeklyStateKey(week), EncodeStruct(t, "WeeklyDrawState", fields))
}

func toUint32(t *testing.T, v interface{}) uint32 {
	t.Helper()
	switch n := v.(type) {
	case int:
		return uint32(n)
	case uint32:
		return n
	case uint64:
		return uint32(n)
	}
	require.Failf(t, "relativeId must be an integer", "got %T", v)
	return 0
}
