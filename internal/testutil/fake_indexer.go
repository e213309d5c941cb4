package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Balance is a holder row served by the fake indexer
type Balance struct {
	Address string
	Amount  string
}

type stateValue struct {
	Type  int    `json:"type"`
	Bytes string `json:"bytes,omitempty"`
	Uint  uint64 `json:"uint,omitempty"`
}

type stateEntry struct {
	Key   string     `json:"key"`
	Value stateValue `json:"value"`
}

// FakeIndexer is an in-process indexer/algod REST server for tests
type FakeIndexer struct {
	server *httptest.Server

	mu       sync.Mutex
	apps     map[uint64][]stateEntry
	boxes    map[uint64]map[string][]byte
	accounts map[uint64][][]string
	assets   map[uint64]map[string]interface{}
	balances map[uint64][][]Balance
	failures map[string][]int
	requests []string
}

// NewFakeIndexer starts a fake server that is closed when the test ends
func NewFakeIndexer(t *testing.T) *FakeIndexer {
	t.Helper()

	f := &FakeIndexer{
		apps:     make(map[uint64][]stateEntry),
		boxes:    make(map[uint64]map[string][]byte),
		accounts: make(map[uint64][][]string),
		assets:   make(map[uint64]map[string]interface{}),
		balances: make(map[uint64][][]Balance),
		failures: make(map[string][]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the server base URL
func (f *FakeIndexer) URL() string {
	return f.server.URL
}

// SetGlobalUint sets a uint global-state value, creating the app if needed
func (f *FakeIndexer) SetGlobalUint(appID uint64, key string, value uint64) {
	f.setGlobal(appID, key, stateValue{Type: 2, Uint: value})
}

// SetGlobalBytes sets a bytes global-state value, creating the app if needed
func (f *FakeIndexer) SetGlobalBytes(appID uint64, key string, value []byte) {
	f.setGlobal(appID, key, stateValue{Type: 1, Bytes: base64.StdEncoding.EncodeToString(value)})
}

func (f *FakeIndexer) setGlobal(appID uint64, key string, value stateValue) {
	f.mu.Lock()
	defer f.mu.Unlock()

	encoded := base64.StdEncoding.EncodeToString([]byte(key))
	state := f.apps[appID]
	for i := range state {
		if state[i].Key == encoded {
			state[i].Value = value
			return
		}
	}
	f.apps[appID] = append(state, stateEntry{Key: encoded, Value: value})
}

// SetBox stores a box value under its raw name
func (f *FakeIndexer) SetBox(appID uint64, name, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.boxes[appID] == nil {
		f.boxes[appID] = make(map[string][]byte)
	}
	f.boxes[appID][string(name)] = value
}

// SetAccountPages sets the opted-in accounts of an app, one slice per page
func (f *FakeIndexer) SetAccountPages(appID uint64, pages ...[]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[appID] = pages
	if _, ok := f.apps[appID]; !ok {
		f.apps[appID] = nil
	}
}

// SetAsset sets asset params (creator, manager, reserve, freeze, clawback, decimals)
func (f *FakeIndexer) SetAsset(assetID uint64, params map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[assetID] = params
}

// SetBalancePages sets the balances of an asset, one slice per page
func (f *FakeIndexer) SetBalancePages(assetID uint64, pages ...[]Balance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[assetID] = pages
}

// FailNext makes the next requests to path answer with the given statuses in order
func (f *FakeIndexer) FailNext(path string, statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = append(f.failures[path], statuses...)
}

// Requests returns every request URI served so far
func (f *FakeIndexer) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// RequestCount counts requests whose path equals path
func (f *FakeIndexer) RequestCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, uri := range f.requests {
		if strings.SplitN(uri, "?", 2)[0] == path {
			n++
		}
	}
	return n
}

func (f *FakeIndexer) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.URL.RequestURI())

	if queue := f.failures[r.URL.Path]; len(queue) > 0 {
		f.failures[r.URL.Path] = queue[1:]
		writeJSON(w, queue[0], map[string]string{"message": "injected failure"})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v2" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown route"})
		return
	}
	id, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad id"})
		return
	}

	switch {
	case parts[1] == "applications" && len(parts) == 3:
		f.serveApplication(w, id)
	case parts[1] == "applications" && parts[3] == "accounts":
		f.serveAccounts(w, r, id)
	case parts[1] == "applications" && parts[3] == "box":
		f.serveBox(w, r, id)
	case parts[1] == "applications" && parts[3] == "boxes":
		f.serveBoxes(w, id)
	case parts[1] == "assets" && len(parts) == 3:
		f.serveAsset(w, id)
	case parts[1] == "assets" && parts[3] == "balances":
		f.serveBalances(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown route"})
	}
}

func (f *FakeIndexer) serveApplication(w http.ResponseWriter, id uint64) {
	state, ok := f.apps[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no application found"})
		return
	}
	if state == nil {
		state = []stateEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"application": map[string]interface{}{
			"id":     id,
			"params": map[string]interface{}{"global-state": state},
		},
	})
}

func (f *FakeIndexer) serveAccounts(w http.ResponseWriter, r *http.Request, id uint64) {
	pages := f.accounts[id]
	index := pageIndex(r)
	if index >= len(pages) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": []interface{}{}})
		return
	}

	accounts := make([]map[string]string, 0, len(pages[index]))
	for _, addr := range pages[index] {
		accounts = append(accounts, map[string]string{"address": addr})
	}
	resp := map[string]interface{}{"accounts": accounts}
	if index+1 < len(pages) {
		resp["next-token"] = fmt.Sprintf("page-%d", index+1)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeIndexer) serveBox(w http.ResponseWriter, r *http.Request, id uint64) {
	raw := r.URL.Query().Get("name")
	if !strings.HasPrefix(raw, "base64:") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "name must use base64: prefix"})
		return
	}
	name, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, "base64:"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad box name"})
		return
	}
	value, ok := f.boxes[id][string(name)]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "box not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":  base64.StdEncoding.EncodeToString(name),
		"value": base64.StdEncoding.EncodeToString(value),
		"round": 1,
	})
}

func (f *FakeIndexer) serveBoxes(w http.ResponseWriter, id uint64) {
	names := make([]string, 0, len(f.boxes[id]))
	for name := range f.boxes[id] {
		names = append(names, name)
	}
	sort.Strings(names)

	boxes := make([]map[string]string, 0, len(names))
	for _, name := range names {
		boxes = append(boxes, map[string]string{"name": base64.StdEncoding.EncodeToString([]byte(name))})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"application-id": id, "boxes": boxes})
}

func (f *FakeIndexer) serveAsset(w http.ResponseWriter, id uint64) {
	params, ok := f.assets[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no assets found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset": map[string]interface{}{"index": id, "created-at-round": 1, "params": params},
	})
}

func (f *FakeIndexer) serveBalances(w http.ResponseWriter, r *http.Request, id uint64) {
	pages := f.balances[id]
	index := pageIndex(r)
	if index >= len(pages) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"balances": []interface{}{}})
		return
	}

	balances := make([]map[string]interface{}, 0, len(pages[index]))
	for _, b := range pages[index] {
		balances = append(balances, map[string]interface{}{
			"address":   b.Address,
			"amount":    json.Number(b.Amount),
			"is-frozen": false,
		})
	}
	resp := map[string]interface{}{"balances": balances}
	if index+1 < len(pages) {
		resp["next-token"] = fmt.Sprintf("page-%d", index+1)
	}
	writeJSON(w, http.StatusOK, resp)
}

func pageIndex(r *http.Request) int {
	next := r.URL.Query().Get("next")
	if next == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(next, "page-"))
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
