package profile

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/0xmhha/algoland-api/internal/constants"
	"github.com/0xmhha/algoland-api/pkg/cache"
	"github.com/0xmhha/algoland-api/pkg/registry"
	"go.uber.org/zap"
)

// UserSource reads registry records
type UserSource interface {
	User(ctx context.Context, address string) (*registry.User, error)
	Referrals(ctx context.Context, u *registry.User) ([]string, error)
	RelativeAddress(ctx context.Context, id uint32) (string, error)
}

// PayloadSource reads participant records as loosely typed documents
type PayloadSource interface {
	UserPayload(ctx context.Context, address string) (map[string]interface{}, error)
}

// Config configures a Service
type Config struct {
	Users UserSource
	// Payloads, when set, replaces the typed record path for address lookups:
	// documents are normalised by BuildInspectorProfile.
	Payloads PayloadSource
	// Profiles caches built profiles for TTL
	Profiles cache.Store[Profile]
	// IDs caches relative id → address; an empty address is a negative result
	IDs         cache.Store[string]
	TTL         time.Duration
	IDTTL       time.Duration
	NegativeTTL time.Duration
	Logger      *zap.Logger
}

// Service resolves identifiers to profiles
type Service struct {
	users       UserSource
	payloads    PayloadSource
	profiles    *cache.Aged[Profile]
	ids         cache.Store[string]
	idTTL       time.Duration
	negativeTTL time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a Service
func NewService(cfg *Config) (*Service, error) {
	if cfg.Users == nil {
		return nil, errors.New("user source is required")
	}
	if cfg.Profiles == nil || cfg.IDs == nil {
		return nil, errors.New("profile and id stores are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := orDefault(cfg.TTL, constants.DefaultCacheTTL)
	return &Service{
		users:    cfg.Users,
		payloads: cfg.Payloads,
		profiles: cache.NewAged(cfg.Profiles, cache.AgedConfig{
			Name:   "profiles",
			MaxAge: ttl,
			TTL:    ttl,
			Logger: logger,
		}),
		ids:         cfg.IDs,
		idTTL:       orDefault(cfg.IDTTL, constants.DefaultIDLookupTTL),
		negativeTTL: orDefault(cfg.NegativeTTL, constants.DefaultIDNegativeTTL),
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Resolve returns the profile behind an identifier. Errors are *Error.
func (s *Service) Resolve(ctx context.Context, id Identifier) (Profile, error) {
	switch id.Type {
	case TypeAddress:
		return s.byAddress(ctx, id.Value)
	case TypeID:
		addr, err := s.resolveRelativeID(ctx, id.ID)
		if err != nil {
			return Profile{}, err
		}
		return s.byAddress(ctx, addr)
	}
	return Profile{}, newError(CodeInvalidIdentifier, "Unsupported identifier type.", http.StatusBadRequest, nil)
}

func (s *Service) resolveRelativeID(ctx context.Context, id uint64) (string, error) {
	notFound := newError(CodeProfileNotFound, "No Algoland profile was found for that ID.", http.StatusNotFound, nil)
	if id > uint64(^uint32(0)) {
		return "", notFound
	}

	key := strconv.FormatUint(id, 10)
	if entry, err := s.ids.Get(ctx, key); err == nil {
		if entry.Value == "" {
			return "", notFound
		}
		return entry.Value, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("ID lookup cache read failed", zap.Uint64("relativeId", id), zap.Error(err))
	}

	addr, err := s.users.RelativeAddress(ctx, uint32(id))
	if errors.Is(err, registry.ErrNotFound) {
		s.storeID(ctx, key, "", s.negativeTTL)
		return "", notFound
	}
	if err != nil {
		s.logger.Warn("Failed to resolve relative ID", zap.Uint64("relativeId", id), zap.Error(err))
		return "", newError(CodeProfileUnavailable, "Unable to load Algoland profile at this time.", http.StatusBadGateway, err)
	}
	s.storeID(ctx, key, addr, s.idTTL)
	return addr, nil
}

func (s *Service) byAddress(ctx context.Context, address string) (Profile, error) {
	res, err := s.profiles.Get(ctx, address, func(ctx context.Context) (Profile, error) {
		return s.build(ctx, address)
	})
	if err != nil {
		s.logger.Error("Profile lookup failed", zap.String("address", address), zap.Error(err))
		return Profile{}, newError(CodeProfileUnavailable, "Unable to load Algoland profile at this time.", http.StatusBadGateway, err)
	}
	return res.Value, nil
}

func (s *Service) build(ctx context.Context, address string) (Profile, error) {
	if s.payloads != nil {
		return s.buildFromPayload(ctx, address)
	}
	u, err := s.users.User(ctx, address)
	if err != nil {
		return Profile{}, err
	}
	now := s.now().UTC()
	if u == nil {
		return Empty(address, now), nil
	}

	referrals, err := s.users.Referrals(ctx, u)
	if err != nil {
		s.logger.Warn("Failed to resolve referral addresses", zap.String("address", address), zap.Error(err))
		referrals = nil
	}
	p := BuildProfile(address, u, referrals, now)
	if u.RelativeID > 0 {
		s.storeID(ctx, strconv.FormatUint(u.RelativeID, 10), address, s.idTTL)
	}
	return p, nil
}

func (s *Service) buildFromPayload(ctx context.Context, address string) (Profile, error) {
	payload, err := s.payloads.UserPayload(ctx, address)
	if err != nil {
		return Profile{}, err
	}
	now := s.now().UTC()
	if payload == nil {
		return Empty(address, now), nil
	}

	p := BuildInspectorProfile(address, payload, now)
	if p.RelativeID != nil && *p.RelativeID > 0 {
		s.storeID(ctx, strconv.FormatUint(*p.RelativeID, 10), address, s.idTTL)
	}
	return p, nil
}

func (s *Service) storeID(ctx context.Context, key, address string, ttl time.Duration) {
	if err := s.ids.Set(ctx, key, address, ttl); err != nil {
		s.logger.Warn("ID lookup cache write failed", zap.String("relativeId", key), zap.Error(err))
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
