package profile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inspectorPayload = `{
	"points": null,
	"statusMessage": "Active participant",
	"profile": {"relative_id": "12", "referrer_id": "34"},
	"stats": {
		"overview": {
			"pointsBalance": {"value": "78000", "decimals": 1},
			"redeemedPoints": {"value": "1200"},
			"weeklyDraws": {
				"eligible": true,
				"entries": 5,
				"weeks": ["Week 1", "Week 2"],
				"availablePrizeAssetIds": ["3215542831"],
				"claimedPrizeAssetIds": []
			}
		}
	},
	"completions": {
		"completedQuests": ["Quest A"],
		"completedChallenges": ["Challenge A", "Challenge B"],
		"completableChallenges": ["Challenge C"]
	},
	"referrals": {"list": ["ADDR1", "ADDR2"], "referralCount": "2"}
}`

func decode(t *testing.T, doc string) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(doc), &payload))
	return payload
}

func TestBuildInspectorProfile(t *testing.T) {
	payload := decode(t, inspectorPayload)

	v, ok := ExtractInspectorValue(payload, []string{"points", "pointsBalance"})
	require.True(t, ok)
	assert.Equal(t, "78000", v.(map[string]interface{})["value"])

	p := BuildInspectorProfile("emnetcrvn2b4lyv4bdq5jfybjvak663g2aoeenuv2wzk5u6fs3lneiwtcu", payload, time.Now())

	assert.Equal(t, "EMNETCRVN2B4LYV4BDQ5JFYBJVAK663G2AOEENUV2WZK5U6FS3LNEIWTCU", p.ResolvedAddress)
	assert.Equal(t, 7800.0, *p.Points)
	assert.Equal(t, 78000.0, *p.PointsRaw)
	assert.Equal(t, 1200.0, *p.RedeemedPoints)
	assert.Equal(t, uint64(12), *p.RelativeID)
	assert.Equal(t, uint64(34), *p.ReferrerID)
	assert.Equal(t, StatusOK, p.Status)
	require.NotNil(t, p.StatusMessage)
	assert.Equal(t, "Active participant", *p.StatusMessage)
	assert.True(t, p.HasParticipation)
	assert.Equal(t, 5, p.WeeklyDraws.Entries)
	assert.True(t, p.WeeklyDraws.Eligible)
	assert.Equal(t, []string{"Week 1", "Week 2"}, p.WeeklyDraws.Weeks)
	assert.Equal(t, []string{"3215542831"}, p.AvailableDrawPrizeAssetIDs)
	assert.Equal(t, []string{}, p.ClaimedDrawPrizeAssetIDs)
	assert.Equal(t, []string{"Quest A"}, p.CompletedQuests)
	assert.Equal(t, []string{"Challenge A", "Challenge B"}, p.CompletedChallenges)
	assert.Equal(t, []string{"Challenge C"}, p.CompletableChallenges)
	assert.Equal(t, []string{"ADDR1", "ADDR2"}, p.Referrals)
	assert.Equal(t, 2, p.ReferralsCount)
}

func TestBuildInspectorProfileWithoutActivity(t *testing.T) {
	p := BuildInspectorProfile("ADDR", decode(t, `{"statusMessage": "ignored", "points": 0}`), time.Now())
	assert.False(t, p.HasParticipation)
	assert.Equal(t, StatusNoData, p.Status)
	assert.Equal(t, NoDataMessage, *p.StatusMessage)
}

func TestExtractInspectorValueEmbeddedJSON(t *testing.T) {
	payload := map[string]interface{}{
		"state": `{"user": {"RelativeId": 7}}`,
	}
	v, ok := ExtractInspectorValue(payload, relativeIDKeys)
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestExtractInspectorValueDepthLimit(t *testing.T) {
	var node interface{} = map[string]interface{}{"points": 1.0}
	for i := 0; i < 8; i++ {
		node = map[string]interface{}{"next": node}
	}
	_, ok := ExtractInspectorValue(node, pointKeys)
	assert.False(t, ok)

	shallow := map[string]interface{}{"a": map[string]interface{}{"b": map[string]interface{}{"points": 1.0}}}
	_, ok = ExtractInspectorValue(shallow, pointKeys)
	assert.True(t, ok)
}

func TestExtractInspectorValueCycle(t *testing.T) {
	a := map[string]interface{}{"name": "a"}
	b := map[string]interface{}{"name": "b", "back": a}
	a["next"] = b
	list := []interface{}{a, b}
	a["list"] = list

	_, ok := ExtractInspectorValue(a, pointKeys)
	assert.False(t, ok)
}

func TestCoerceNumber(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		raw     float64
		display float64
		ok      bool
	}{
		{"float", 12.9, 12, 12, true},
		{"string", " 42abc", 42, 42, true},
		{"empty string", "", 0, 0, false},
		{"json number", json.Number("9"), 9, 9, true},
		{"wrapped", map[string]interface{}{"count": "3"}, 3, 3, true},
		{"decimals", map[string]interface{}{"amount": 1500.0, "decimals": 2.0}, 1500, 15, true},
		{"other key", map[string]interface{}{"weird": "8", "decimals": "1"}, 8, 0.8, true},
		{"nested too deep", map[string]interface{}{"value": map[string]interface{}{"value": map[string]interface{}{"value": map[string]interface{}{"value": 1.0}}}}, 0, 0, false},
		{"bool", true, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := CoerceNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.raw, n.Raw)
				assert.InDelta(t, tt.display, n.Display, 1e-9)
			}
		})
	}
}

func TestCoerceList(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want []string
	}{
		{"nil", nil, []string{}},
		{"array", []interface{}{"a", 2.0, nil, " "}, []string{"a", "2"}},
		{"delimited", "a, b|c\nd", []string{"a", "b", "c", "d"}},
		{"single", " solo ", []string{"solo"}},
		{"zero", 0.0, []string{}},
		{"number", 3.0, []string{"3"}},
		{"list field", map[string]interface{}{"items": []interface{}{"x"}}, []string{"x"}},
		{"text", map[string]interface{}{"text": " hi "}, []string{"hi"}},
		{"flat object", map[string]interface{}{"b": 2.0, "a": "one", "c": map[string]interface{}{}}, []string{"a: one", "b: 2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceList(tt.in))
		})
	}
}
