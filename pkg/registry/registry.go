// Package registry reads the campaign contracts: the registry application
// (participants, relative ids, counters) and the draw application it points to
// (weekly challenges and draw state).
package registry

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/0xmhha/algoland-api/pkg/arc4"
	"github.com/0xmhha/algoland-api/pkg/campaign"
	"github.com/0xmhha/algoland-api/pkg/indexer"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Global-state keys of the registry application
const (
	KeyUserCounter = "userCounter"
	KeyDrawAppID   = "drawAppId"
)

// ErrNotFound is returned when a box or global-state entry does not exist
var ErrNotFound = errors.New("registry: not found")

// Config configures a Reader
type Config struct {
	// Indexer serves application state and the registry/draw box maps
	Indexer *indexer.Client
	// Algod serves user boxes; defaults to Indexer
	Algod  *indexer.Client
	Schema *arc4.Schema
	AppID  uint64
	Logger *zap.Logger
}

// Reader is the read-only contract client
type Reader struct {
	indexer *indexer.Client
	algod   *indexer.Client
	schema  *arc4.Schema
	appID   uint64
	logger  *zap.Logger

	drawAppID atomic.Uint64
	group     singleflight.Group
}

// New creates a Reader
func New(cfg *Config) (*Reader, error) {
	if cfg.Indexer == nil {
		return nil, fmt.Errorf("indexer client is required")
	}
	if cfg.AppID == 0 {
		return nil, fmt.Errorf("registry app id is required")
	}
	schema := cfg.Schema
	if schema == nil {
		var err error
		if schema, err = arc4.DefaultSchema(); err != nil {
			return nil, err
		}
	}
	for _, name := range []string{StructUser, StructChallenge, StructWeeklyDrawState} {
		if _, err := schema.Struct(name); err != nil {
			return nil, fmt.Errorf("schema is missing %s: %w", name, err)
		}
	}
	algod := cfg.Algod
	if algod == nil {
		algod = cfg.Indexer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		indexer: cfg.Indexer,
		algod:   algod,
		schema:  schema,
		appID:   cfg.AppID,
		logger:  logger,
	}, nil
}

// AppID is the registry application id
func (r *Reader) AppID() uint64 {
	return r.appID
}

// Source is the indexer base URL reported alongside results
func (r *Reader) Source() string {
	return r.indexer.BaseURL()
}

// UserCounter reads the registry's participant counter
func (r *Reader) UserCounter(ctx context.Context) (uint64, error) {
	app, err := r.indexer.Application(ctx, r.appID)
	if err != nil {
		return 0, err
	}
	value, ok := app.GlobalValue(KeyUserCounter)
	if !ok {
		return 0, fmt.Errorf("%w: %s not in global state", ErrNotFound, KeyUserCounter)
	}
	return uintValue(value)
}

// DrawAppID resolves the draw application from registry global state. The
// first positive id is kept for the life of the process.
func (r *Reader) DrawAppID(ctx context.Context) (uint64, error) {
	if id := r.drawAppID.Load(); id > 0 {
		return id, nil
	}
	v, err, _ := r.group.Do(KeyDrawAppID, func() (interface{}, error) {
		app, err := r.indexer.Application(ctx, r.appID)
		if err != nil {
			return uint64(0), err
		}
		value, ok := app.GlobalValue(KeyDrawAppID)
		if !ok {
			return uint64(0), fmt.Errorf("%w: %s not in global state", ErrNotFound, KeyDrawAppID)
		}
		id, err := uintValue(value)
		if err != nil {
			return uint64(0), err
		}
		if id == 0 {
			return uint64(0), fmt.Errorf("%s is zero", KeyDrawAppID)
		}
		r.drawAppID.Store(id)
		r.logger.Info("Draw application resolved", zap.Uint64("drawAppId", id))
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

// Challenge reads the challenge configuration of a week
func (r *Reader) Challenge(ctx context.Context, week uint8) (*Challenge, error) {
	s, err := r.drawStruct(ctx, arc4.ChallengeKey(week), StructChallenge)
	if err != nil {
		return nil, fmt.Errorf("challenge %d: %w", week, err)
	}
	return challengeFromStruct(s), nil
}

// WeeklyState reads the draw state of a week
func (r *Reader) WeeklyState(ctx context.Context, week uint8) (*WeeklyDrawState, error) {
	s, err := r.drawStruct(ctx, arc4.WeeklyStateKey(week), StructWeeklyDrawState)
	if err != nil {
		return nil, fmt.Errorf("weekly draw state %d: %w", week, err)
	}
	return weeklyStateFromStruct(s), nil
}

// ChallengeWeeks lists the weeks with a published challenge box, ascending
func (r *Reader) ChallengeWeeks(ctx context.Context) ([]uint8, error) {
	drawAppID, err := r.DrawAppID(ctx)
	if err != nil {
		return nil, err
	}
	names, err := r.indexer.ApplicationBoxes(ctx, drawAppID)
	if err != nil {
		return nil, fmt.Errorf("list draw boxes: %w", err)
	}
	weeks := make([]uint8, 0, len(names))
	for _, name := range names {
		if week, ok := arc4.WeekFromKey(arc4.PrefixChallenge, name); ok {
			weeks = append(weeks, week)
		}
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i] < weeks[j] })
	return weeks, nil
}

// RelativeAddress maps a relative id to its participant address
func (r *Reader) RelativeAddress(ctx context.Context, id uint32) (string, error) {
	value, err := r.box(ctx, r.indexer, r.appID, arc4.RelativeIDKey(id))
	if err != nil {
		return "", fmt.Errorf("relative id %d: %w", id, err)
	}
	if len(value) == 0 {
		return "", fmt.Errorf("relative id %d: %w", id, ErrNotFound)
	}
	addr, err := campaign.AddressFromPublicKey(value)
	if err != nil {
		return "", fmt.Errorf("relative id %d: %w", id, err)
	}
	return addr, nil
}

// User reads the participant record of an address. A missing record yields
// nil; an undecodable one yields an empty record.
func (r *Reader) User(ctx context.Context, address string) (*User, error) {
	pk, s, err := r.userStruct(ctx, address)
	if err != nil || s == nil {
		return nil, err
	}
	u := userFromStruct(s)
	if u.Address == "" {
		u.Address = pk.String()
	}
	return u, nil
}

// UserPayload reads the participant record of an address as a loosely typed
// document keyed by the schema's field names. A missing record yields nil.
func (r *Reader) UserPayload(ctx context.Context, address string) (map[string]interface{}, error) {
	_, s, err := r.userStruct(ctx, address)
	if err != nil || s == nil {
		return nil, err
	}
	return s.Plain(), nil
}

// userStruct decodes the user box of address. Malformed boxes decode to a
// struct without fields.
func (r *Reader) userStruct(ctx context.Context, address string) (types.Address, *arc4.Struct, error) {
	pk, err := campaign.ParseAddress(address)
	if err != nil {
		return types.Address{}, nil, err
	}
	value, err := r.box(ctx, r.algod, r.appID, arc4.UserKey(pk))
	if errors.Is(err, ErrNotFound) {
		return pk, nil, nil
	}
	if err != nil {
		return pk, nil, fmt.Errorf("user %s: %w", address, err)
	}
	s, err := r.schema.DecodeStruct(StructUser, value)
	if errors.Is(err, arc4.ErrMalformed) {
		r.logger.Warn("malformed user box, treating as no participation",
			zap.String("address", address), zap.Int("bytes", len(value)), zap.Error(err))
		return pk, &arc4.Struct{Name: StructUser}, nil
	}
	if err != nil {
		return pk, nil, fmt.Errorf("user %s: %w", address, err)
	}
	return pk, s, nil
}

// UserByRelativeID resolves a relative id and reads its record
func (r *Reader) UserByRelativeID(ctx context.Context, id uint32) (string, *User, error) {
	addr, err := r.RelativeAddress(ctx, id)
	if err != nil {
		return "", nil, err
	}
	u, err := r.User(ctx, addr)
	if err != nil {
		return addr, nil, err
	}
	if u == nil {
		return addr, nil, fmt.Errorf("user %s: %w", addr, ErrNotFound)
	}
	return addr, u, nil
}

// Referrals resolves the addresses of a user's referrals
func (r *Reader) Referrals(ctx context.Context, u *User) ([]string, error) {
	out := make([]string, 0, len(u.Referrals))
	for _, id := range u.Referrals {
		if id > uint64(^uint32(0)) {
			return nil, fmt.Errorf("referral id %d out of range", id)
		}
		addr, err := r.RelativeAddress(ctx, uint32(id))
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func (r *Reader) drawStruct(ctx context.Context, key []byte, name string) (*arc4.Struct, error) {
	drawAppID, err := r.DrawAppID(ctx)
	if err != nil {
		return nil, err
	}
	value, err := r.box(ctx, r.indexer, drawAppID, key)
	if err != nil {
		return nil, err
	}
	return r.schema.DecodeStruct(name, value)
}

func (r *Reader) box(ctx context.Context, client *indexer.Client, appID uint64, name []byte) ([]byte, error) {
	value, err := client.Box(ctx, appID, name)
	if indexer.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return value, err
}

// uintValue reads a counter stored as a uint or as big-endian bytes
func uintValue(v indexer.TealValue) (uint64, error) {
	if v.Type != 1 {
		return v.Uint, nil
	}
	raw, err := v.RawBytes()
	if err != nil {
		return 0, err
	}
	if len(raw) > 8 {
		return 0, fmt.Errorf("counter value has %d bytes", len(raw))
	}
	var buf [8]byte
	copy(buf[8-len(raw):], raw)
	return binary.BigEndian.Uint64(buf[:]), nil
}
