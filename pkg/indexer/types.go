package indexer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// TealValue is a global-state value. Type 1 is bytes, type 2 is uint.
type TealValue struct {
	Type  int    `json:"type"`
	Bytes string `json:"bytes"`
	Uint  uint64 `json:"uint"`
}

// RawBytes decodes the base64 bytes value
func (v TealValue) RawBytes() ([]byte, error) {
	if v.Bytes == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(v.Bytes)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 state value: %w", err)
	}
	return b, nil
}

// TealKeyValue is a global-state entry with a base64 key
type TealKeyValue struct {
	Key   string    `json:"key"`
	Value TealValue `json:"value"`
}

// ApplicationParams holds the fields of an application used here
type ApplicationParams struct {
	Creator     string         `json:"creator"`
	GlobalState []TealKeyValue `json:"global-state"`
}

// Application is an indexer application record
type Application struct {
	ID     uint64            `json:"id"`
	Params ApplicationParams `json:"params"`
}

// GlobalValue looks up a global-state entry by its plain-text key
func (a *Application) GlobalValue(key string) (TealValue, bool) {
	encoded := base64.StdEncoding.EncodeToString([]byte(key))
	for _, kv := range a.Params.GlobalState {
		if kv.Key == encoded {
			return kv.Value, true
		}
	}
	return TealValue{}, false
}

type applicationResponse struct {
	Application Application `json:"application"`
}

// Account is an account opted into an application
type Account struct {
	Address string `json:"address"`
}

type accountsPage struct {
	Accounts  []Account `json:"accounts"`
	NextToken string    `json:"next-token"`
}

// AssetParams holds the admin fields of an asset
type AssetParams struct {
	Creator       string `json:"creator"`
	Manager       string `json:"manager,omitempty"`
	Reserve       string `json:"reserve,omitempty"`
	Freeze        string `json:"freeze,omitempty"`
	Clawback      string `json:"clawback,omitempty"`
	Decimals      uint64 `json:"decimals"`
	Name          string `json:"name,omitempty"`
	UnitName      string `json:"unit-name,omitempty"`
	Total         uint64 `json:"total"`
	URL           string `json:"url,omitempty"`
	DefaultFrozen bool   `json:"default-frozen,omitempty"`
}

// Asset is an indexer asset record
type Asset struct {
	Index          uint64      `json:"index"`
	CreatedAtRound uint64      `json:"created-at-round"`
	Params         AssetParams `json:"params"`
}

type assetResponse struct {
	Asset Asset `json:"asset"`
}

// AssetHolding is a single balance row. Amount keeps full precision.
type AssetHolding struct {
	Address  string      `json:"address"`
	Amount   json.Number `json:"amount"`
	IsFrozen bool        `json:"is-frozen"`
}

type balancesPage struct {
	Balances  []AssetHolding `json:"balances"`
	NextToken string         `json:"next-token"`
}

type boxResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Round uint64 `json:"round"`
}

type boxDescriptor struct {
	Name string `json:"name"`
}

type boxesPage struct {
	Boxes     []boxDescriptor `json:"boxes"`
	NextToken string          `json:"next-token"`
}

type pageCursor struct {
	NextToken string `json:"next-token"`
}
