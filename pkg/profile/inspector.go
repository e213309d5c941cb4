package profile

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/algoland-api/pkg/campaign"
)

// InspectorSource labels profiles built from inspector payloads
const InspectorSource = "lands-inspector"

const (
	maxWalkDepth   = 6
	maxCoerceDepth = 3
)

// Synonym lists, lower case, in priority order
var (
	relativeIDKeys = []string{"relativeid", "relative_id", "relative", "relid", "userindex", "user_id", "userid"}
	referrerIDKeys = []string{"referrerid", "referrer_id", "referrer", "parentid", "parent_id"}
	pointKeys      = []string{
		"points", "totalpoints", "points_total", "pointsbalance", "pointbalance",
		"currentpoints", "availablepoints", "balance",
	}
	redeemedPointKeys = []string{
		"redeemedpoints", "pointsredeemed", "redeemed", "redeemed_points", "pointsclaimed", "claimedpoints",
	}
	referralPointKeys = []string{"referralpoints", "referral_points", "pointsfromreferrals"}
	questListKeys     = []string{
		"completedquests", "questscompleted", "quests_complete", "quests", "questhistory",
		"quest_history", "questscompletedlist", "quest_completed", "questcomplete",
	}
	challengeListKeys = []string{
		"completedchallenges", "challengescompleted", "challenges", "challengehistory",
		"challenge_history", "challenges_complete",
	}
	completableChallengeKeys = []string{
		"completablechallenges", "availablechallenges", "challengeoptions", "challenge_pool", "eligiblechallenges",
	}
	referralListKeys  = []string{"referrals", "referrallist", "referralslist", "referralhistory", "refs"}
	referralCountKeys = []string{"referralcount", "referralscount", "referrals_total", "referralsnumber", "refcount"}
	weeklyDrawKeys    = []string{
		"weeklydraws", "weekly_draws", "weeklydraweligibility", "weekly_draw_eligibility", "weeklyentries",
		"drawentries", "weeklydrawentries", "draws", "weekly", "draw_history",
	}
	weeklyEntryKeys = []string{
		"weeklydrawentries", "weeklyentries", "entriescount", "entrycount", "totalentries", "drawentries", "entrytotal",
	}
	availablePrizeKeys = []string{
		"availabledrawprizeassetids", "availableprizes", "availabledrawprizes", "availableprizeassetids",
		"availableprizeids", "availableassets", "available",
	}
	claimedPrizeKeys = []string{
		"claimeddrawprizeassetids", "claimedprizes", "claimeddrawprizes", "claimedprizeassetids",
		"claimedprizeids", "claimedassets", "claimed",
	}
	statusMessageKeys = []string{"statusmessage", "status_message"}

	numericKeys   = []string{"value", "count", "total", "balance", "current", "available", "entries", "amount", "totalPoints", "points"}
	listKeys      = []string{"list", "items", "entries", "weeks", "values", "ids", "history"}
	scalingKeys   = map[string]bool{"decimals": true, "scale": true, "precision": true}
	entriesFields = []string{"entries", "count", "totalEntries", "total"}
	weeksFields   = []string{"weeks", "list", "entries", "weekNumbers", "values", "history"}
)

type nodeKind int

const (
	kindNull nodeKind = iota
	kindObject
	kindArray
	kindScalar
)

func classify(v interface{}) nodeKind {
	switch v.(type) {
	case nil:
		return kindNull
	case map[string]interface{}:
		return kindObject
	case []interface{}:
		return kindArray
	}
	return kindScalar
}

// walker finds the first value stored under any of a set of keys
type walker struct {
	keys    []string
	visited map[uintptr]bool
}

// ExtractInspectorValue searches payload, up to six levels deep, for the
// first non-null value stored under one of keys. Key matching ignores case.
// Strings holding JSON documents are searched too.
func ExtractInspectorValue(payload interface{}, keys []string) (interface{}, bool) {
	lower := make([]string, len(keys))
	for i, k := range keys {
		lower[i] = strings.ToLower(k)
	}
	w := &walker{keys: lower, visited: make(map[uintptr]bool)}
	return w.find(payload, 0)
}

func (w *walker) find(v interface{}, depth int) (interface{}, bool) {
	if depth > maxWalkDepth {
		return nil, false
	}
	switch classify(v) {
	case kindObject:
		obj := v.(map[string]interface{})
		if w.seen(obj) {
			return nil, false
		}
		names := sortedKeys(obj)
		for _, key := range w.keys {
			for _, name := range names {
				if strings.ToLower(name) == key && obj[name] != nil {
					return obj[name], true
				}
			}
		}
		for _, name := range names {
			if found, ok := w.find(obj[name], depth+1); ok {
				return found, true
			}
		}
	case kindArray:
		arr := v.([]interface{})
		if w.seen(arr) {
			return nil, false
		}
		for _, item := range arr {
			if found, ok := w.find(item, depth+1); ok {
				return found, true
			}
		}
	case kindScalar:
		if s, ok := v.(string); ok {
			if doc, ok := parseJSONDocument(s); ok {
				return w.find(doc, depth+1)
			}
		}
	}
	return nil, false
}

func (w *walker) seen(v interface{}) bool {
	rv := reflect.ValueOf(v)
	if rv.Len() == 0 {
		return false
	}
	ptr := rv.Pointer()
	if w.visited[ptr] {
		return true
	}
	w.visited[ptr] = true
	return false
}

func parseJSONDocument(s string) (interface{}, bool) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, false
	}
	return doc, true
}

// Number is a coerced numeric value. Display applies any decimals scaling.
type Number struct {
	Raw     float64
	Display float64
}

// CoerceNumber reads a number from a scalar, a numeric string or an object
// wrapping one. An object with a decimals key divides the display value by
// 10^decimals.
func CoerceNumber(v interface{}) (Number, bool) {
	return coerceNumber(v, 0)
}

func coerceNumber(v interface{}, depth int) (Number, bool) {
	switch tv := v.(type) {
	case float64:
		if math.IsNaN(tv) || math.IsInf(tv, 0) {
			return Number{}, false
		}
		n := math.Trunc(tv)
		return Number{Raw: n, Display: n}, true
	case int:
		return Number{Raw: float64(tv), Display: float64(tv)}, true
	case int64:
		return Number{Raw: float64(tv), Display: float64(tv)}, true
	case uint64:
		return Number{Raw: float64(tv), Display: float64(tv)}, true
	case json.Number:
		return coerceNumber(tv.String(), depth)
	case string:
		n, ok := leadingInt(tv)
		if !ok {
			return Number{}, false
		}
		return Number{Raw: n, Display: n}, true
	case map[string]interface{}:
		if depth >= maxCoerceDepth {
			return Number{}, false
		}
		n, ok := coerceObjectNumber(tv, depth)
		if !ok {
			return Number{}, false
		}
		if decimals, ok := decimalsOf(tv); ok {
			n.Display = n.Raw / math.Pow10(decimals)
		}
		return n, true
	}
	return Number{}, false
}

func coerceObjectNumber(obj map[string]interface{}, depth int) (Number, bool) {
	checked := make(map[string]bool, len(numericKeys))
	for _, key := range numericKeys {
		checked[key] = true
		if v, ok := obj[key]; ok {
			if n, ok := coerceNumber(v, depth+1); ok {
				return n, true
			}
		}
	}
	for _, name := range sortedKeys(obj) {
		if checked[name] || scalingKeys[strings.ToLower(name)] {
			continue
		}
		if n, ok := coerceNumber(obj[name], depth+1); ok {
			return n, true
		}
	}
	return Number{}, false
}

func decimalsOf(obj map[string]interface{}) (int, bool) {
	v, ok := obj["decimals"]
	if !ok {
		return 0, false
	}
	n, ok := coerceNumber(v, maxCoerceDepth)
	if !ok || n.Raw < 0 || n.Raw > 19 {
		return 0, false
	}
	return int(n.Raw), true
}

// leadingInt parses the integer prefix of s, as lenient form input does
func leadingInt(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// CoerceList reads a list of display strings. Delimited strings are split on
// newlines, commas and pipes; objects are searched for a list-like field.
func CoerceList(v interface{}) []string {
	return coerceList(v, 0)
}

func coerceList(v interface{}, depth int) []string {
	switch tv := v.(type) {
	case nil:
		return []string{}
	case []interface{}:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		trimmed := strings.TrimSpace(tv)
		if trimmed == "" {
			return []string{}
		}
		parts := strings.FieldsFunc(trimmed, func(r rune) bool { return r == '\n' || r == ',' || r == '|' })
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	case float64, json.Number, int, int64, uint64:
		if n, ok := coerceNumber(tv, 0); ok && n.Raw != 0 {
			s, _ := scalarString(tv)
			return []string{s}
		}
		return []string{}
	case map[string]interface{}:
		if depth >= maxCoerceDepth {
			return []string{}
		}
		for _, key := range listKeys {
			if arr, ok := tv[key].([]interface{}); ok {
				return coerceList(arr, depth+1)
			}
		}
		if text, ok := tv["text"].(string); ok && strings.TrimSpace(text) != "" {
			return []string{strings.TrimSpace(text)}
		}
		var out []string
		for _, name := range sortedKeys(tv) {
			if classify(tv[name]) != kindScalar {
				continue
			}
			s, _ := scalarString(tv[name])
			out = append(out, name+": "+s)
		}
		if out == nil {
			return []string{}
		}
		return out
	}
	return []string{}
}

func scalarString(v interface{}) (string, bool) {
	switch tv := v.(type) {
	case string:
		s := strings.TrimSpace(tv)
		return s, s != ""
	case json.Number:
		return tv.String(), true
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64), true
	case int:
		return strconv.Itoa(tv), true
	case int64:
		return strconv.FormatInt(tv, 10), true
	case uint64:
		return strconv.FormatUint(tv, 10), true
	case bool:
		return strconv.FormatBool(tv), true
	}
	return "", false
}

// extractor fills one profile field from a payload
type extractor func(payload interface{}, p *Profile)

var inspectorExtractors = []extractor{
	extractIDs,
	extractPoints,
	extractLists,
	extractWeeklyDraws,
	extractReferrals,
}

func extractIDs(payload interface{}, p *Profile) {
	if v, ok := ExtractInspectorValue(payload, relativeIDKeys); ok {
		if n, ok := CoerceNumber(v); ok && n.Raw >= 0 {
			p.RelativeID = uintPtr(uint64(n.Raw))
		}
	}
	if v, ok := ExtractInspectorValue(payload, referrerIDKeys); ok {
		if n, ok := CoerceNumber(v); ok && n.Raw >= 0 {
			p.ReferrerID = uintPtr(uint64(n.Raw))
		}
	}
}

func extractPoints(payload interface{}, p *Profile) {
	set := func(keys []string, display, raw **float64) {
		v, ok := ExtractInspectorValue(payload, keys)
		if !ok {
			return
		}
		if n, ok := CoerceNumber(v); ok {
			*display = floatPtr(n.Display)
			*raw = floatPtr(n.Raw)
		}
	}
	set(pointKeys, &p.Points, &p.PointsRaw)
	set(redeemedPointKeys, &p.RedeemedPoints, &p.RedeemedPointsRaw)
	set(referralPointKeys, &p.ReferralPoints, &p.ReferralPointsRaw)
}

func extractLists(payload interface{}, p *Profile) {
	list := func(keys []string) []string {
		v, _ := ExtractInspectorValue(payload, keys)
		return CoerceList(v)
	}
	p.CompletedQuests = list(questListKeys)
	p.CompletedChallenges = list(challengeListKeys)
	p.CompletableChallenges = list(completableChallengeKeys)
	p.AvailableDrawPrizeAssetIDs = list(availablePrizeKeys)
	p.ClaimedDrawPrizeAssetIDs = list(claimedPrizeKeys)
}

func extractWeeklyDraws(payload interface{}, p *Profile) {
	draws := WeeklyDraws{Weeks: []string{}}
	v, _ := ExtractInspectorValue(payload, weeklyDrawKeys)
	switch tv := v.(type) {
	case map[string]interface{}:
		if b, ok := tv["eligible"].(bool); ok {
			draws.Eligible = b
		} else if b, ok := tv["isEligible"].(bool); ok {
			draws.Eligible = b
		}
		if n, ok := CoerceNumber(firstField(tv, entriesFields)); ok && n.Raw > 0 {
			draws.Entries = int(n.Raw)
		}
		draws.Weeks = CoerceList(firstField(tv, weeksFields))
	case bool:
		draws.Eligible = tv
	default:
		draws.Weeks = CoerceList(tv)
	}

	if draws.Entries == 0 {
		if ev, ok := ExtractInspectorValue(payload, weeklyEntryKeys); ok {
			if n, ok := CoerceNumber(ev); ok && n.Raw > 0 {
				draws.Entries = int(n.Raw)
			}
		}
	}
	if draws.Entries == 0 {
		draws.Entries = len(draws.Weeks)
	}
	if !draws.Eligible {
		draws.Eligible = draws.Entries > 0
	}
	draws.AvailablePrizeAssetIDs = p.AvailableDrawPrizeAssetIDs
	draws.ClaimedPrizeAssetIDs = p.ClaimedDrawPrizeAssetIDs

	p.WeeklyDraws = draws
	p.WeeklyDrawEligibility = draws.Weeks
}

func extractReferrals(payload interface{}, p *Profile) {
	v, _ := ExtractInspectorValue(payload, referralListKeys)
	p.Referrals = CoerceList(v)
	p.ReferralsRelativeIDs = []uint64{}

	if cv, ok := ExtractInspectorValue(payload, referralCountKeys); ok {
		if n, ok := CoerceNumber(cv); ok && n.Raw >= 0 {
			p.ReferralsCount = int(n.Raw)
			return
		}
	}
	p.ReferralsCount = len(p.Referrals)
}

// BuildInspectorProfile normalises a loosely shaped inspector payload
func BuildInspectorProfile(address string, payload map[string]interface{}, now time.Time) Profile {
	addr := campaign.NormaliseAddress(address)
	p := Profile{
		ResolvedAddress: addr,
		Address:         addr,
		Source:          InspectorSource,
		UpdatedAt:       now,
		FetchedAt:       now,
	}
	for _, extract := range inspectorExtractors {
		extract(payload, &p)
	}

	var message *string
	if v, ok := ExtractInspectorValue(payload, statusMessageKeys); ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			trimmed := strings.TrimSpace(s)
			message = &trimmed
		}
	}
	p.finish(message)
	return p
}

func firstField(obj map[string]interface{}, names []string) interface{} {
	for _, name := range names {
		if v, ok := obj[name]; ok && v != nil {
			return v
		}
	}
	return nil
}

func sortedKeys(obj map[string]interface{}) []string {
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
