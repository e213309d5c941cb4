package testutil

import (
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// NewTestLogger creates a logger that writes through t.Log
func NewTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// Address returns the checksummed address of a public key filled with seed
func Address(seed byte) string {
	return PublicKey(seed).String()
}

// PublicKey returns a public key whose bytes are all seed
func PublicKey(seed byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = seed
	}
	return addr
}
