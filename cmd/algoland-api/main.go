package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/0xmhha/algoland-api/api"
	"github.com/0xmhha/algoland-api/internal/config"
	"github.com/0xmhha/algoland-api/internal/constants"
	"github.com/0xmhha/algoland-api/internal/logger"
	"github.com/0xmhha/algoland-api/pkg/arc4"
	"github.com/0xmhha/algoland-api/pkg/cache"
	"github.com/0xmhha/algoland-api/pkg/campaign"
	"github.com/0xmhha/algoland-api/pkg/challenges"
	"github.com/0xmhha/algoland-api/pkg/draw"
	"github.com/0xmhha/algoland-api/pkg/entrants"
	"github.com/0xmhha/algoland-api/pkg/holders"
	"github.com/0xmhha/algoland-api/pkg/indexer"
	"github.com/0xmhha/algoland-api/pkg/prizes"
	"github.com/0xmhha/algoland-api/pkg/profile"
	"github.com/0xmhha/algoland-api/pkg/registry"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion  = flag.Bool("version", false, "Show version information and exit")
		indexerURL   = flag.String("indexer", "", "Indexer base URL")
		algodURL     = flag.String("algod", "", "Algod base URL")
		apiHost      = flag.String("host", "", "API server host")
		apiPort      = flag.Int("port", 0, "API server port")
		cacheBackend = flag.String("cache", "", "Cache backend (memory, redis, pebble)")
		prizesFile   = flag.String("prizes", "", "Prize catalogue file")
		logLevel     = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		logFormat    = flag.String("log-format", "", "Log format (json, console)")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("algoland-api version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	applyFlags(cfg, *indexerURL, *algodURL, *apiHost, *apiPort, *cacheBackend, *prizesFile, *logLevel, *logFormat)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Algoland API",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_time", buildTime),
		zap.String("indexer", cfg.Indexer.BaseURL),
		zap.String("algod", cfg.Indexer.AlgodURL),
		zap.Uint64("registry_app_id", cfg.Campaign.RegistryAppID),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("profile_source", cfg.Campaign.ProfileSource),
	)

	if err := run(cfg, log); err != nil {
		log.Error("Algoland API stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Algoland API stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	backend, err := cache.NewBackend(&cfg.Cache, logger.WithComponent(log, "cache"))
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Error("Failed to close cache", zap.Error(err))
		}
	}()

	idx, err := newClient(cfg.Indexer, cfg.Indexer.BaseURL, "indexer", log)
	if err != nil {
		return err
	}
	algod, err := newClient(cfg.Indexer, cfg.Indexer.AlgodURL, "algod", log)
	if err != nil {
		return err
	}

	var schema *arc4.Schema
	if cfg.Campaign.AppSpecFile != "" {
		if schema, err = arc4.LoadSchema(cfg.Campaign.AppSpecFile); err != nil {
			return fmt.Errorf("failed to load app spec: %w", err)
		}
	}
	reader, err := registry.New(&registry.Config{
		Indexer: idx,
		Algod:   algod,
		Schema:  schema,
		AppID:   cfg.Campaign.RegistryAppID,
		Logger:  logger.WithComponent(log, "registry"),
	})
	if err != nil {
		return fmt.Errorf("failed to create registry reader: %w", err)
	}

	camp, err := campaign.New(cfg.Campaign)
	if err != nil {
		return fmt.Errorf("invalid campaign: %w", err)
	}
	catalogue := prizes.NewStore(cfg.Campaign.PrizesFile, camp.TotalWeeks(), logger.WithComponent(log, "prizes"))

	stores, err := openStores(backend)
	if err != nil {
		return err
	}

	entrantService, err := entrants.NewService(&entrants.Config{
		Counter:             reader,
		Accounts:            idx,
		Store:               stores.entrants,
		TTL:                 cfg.Cache.TTL,
		RegressionTolerance: cfg.Entrants.RegressionTolerance,
		Logger:              log,
	})
	if err != nil {
		return fmt.Errorf("failed to create entrant service: %w", err)
	}

	resolver, err := holders.NewResolver(&holders.Config{
		Source:    idx,
		Allowlist: camp,
		Stores:    stores.holders,
		TTL:       cfg.Cache.TTL,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("failed to create holder resolver: %w", err)
	}

	var payloads profile.PayloadSource
	if cfg.Campaign.ProfileSource == config.ProfileSourceInspector {
		payloads = reader
	}
	profileService, err := profile.NewService(&profile.Config{
		Users:       reader,
		Payloads:    payloads,
		Profiles:    stores.profiles,
		IDs:         stores.ids,
		TTL:         cfg.Cache.TTL,
		IDTTL:       constants.DefaultIDLookupTTL,
		NegativeTTL: constants.DefaultIDNegativeTTL,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("failed to create profile service: %w", err)
	}

	drawService, err := draw.NewService(&draw.Config{
		Source:  reader,
		Holders: resolver,
		Store:   stores.draws,
		TTL:     cfg.Cache.TTL,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("failed to create draw service: %w", err)
	}

	challengeService, err := challenges.NewService(&challenges.Config{
		Source:          reader,
		Weeks:           camp,
		Catalogue:       catalogue,
		Store:           stores.challenges,
		RefreshInterval: cfg.Challenges.RefreshInterval,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("failed to create challenge service: %w", err)
	}

	health := api.NewHealthChecker(constants.ServiceName)
	health.Register("cache", backend, true)
	health.Register("indexer", api.PingFunc(func(ctx context.Context) error {
		_, err := idx.Application(ctx, cfg.Campaign.RegistryAppID)
		return err
	}), false)

	apiConfig := api.FromConfig(cfg.API)
	server, err := api.NewServer(apiConfig, logger.WithComponent(log, "api"), &api.Services{
		Entrants:    entrantService,
		Completions: resolver,
		Profiles:    profileService,
		Draws:       drawService,
		Challenges:  challengeService,
		Prizes:      catalogue,
		Campaign:    camp,
		Provider:    idx.BaseURL(),
		CacheTTL:    cfg.Cache.TTL,
	}, health)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	if err := challengeService.Start(); err != nil {
		return fmt.Errorf("failed to start challenge refresher: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	var serveErr error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case serveErr = <-errChan:
	}

	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), apiConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server gracefully", zap.Error(err))
	}
	if err := challengeService.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop challenge refresher", zap.Error(err))
	}
	return serveErr
}

type storeSet struct {
	entrants   cache.Store[entrants.Snapshot]
	holders    holders.Stores
	profiles   cache.Store[profile.Profile]
	ids        cache.Store[string]
	draws      cache.Store[draw.Result]
	challenges cache.Store[challenges.Snapshot]
}

func openStores(b *cache.Backend) (*storeSet, error) {
	var (
		s   storeSet
		err error
	)
	open := func(step func() error) {
		if err == nil {
			err = step()
		}
	}
	open(func() (e error) { s.entrants, e = cache.NewStore[entrants.Snapshot](b, "entrants"); return })
	open(func() (e error) { s.holders.Meta, e = cache.NewStore[holders.AssetMeta](b, "asset-meta"); return })
	open(func() (e error) { s.holders.Holders, e = cache.NewStore[holders.HolderSet](b, "holders"); return })
	open(func() (e error) { s.holders.Completions, e = cache.NewStore[holders.Completion](b, "completions"); return })
	open(func() (e error) { s.profiles, e = cache.NewStore[profile.Profile](b, "profiles"); return })
	open(func() (e error) { s.ids, e = cache.NewStore[string](b, "relative-ids"); return })
	open(func() (e error) { s.draws, e = cache.NewStore[draw.Result](b, "weekly-draws"); return })
	open(func() (e error) { s.challenges, e = cache.NewStore[challenges.Snapshot](b, "challenges"); return })
	if err != nil {
		return nil, fmt.Errorf("failed to open cache stores: %w", err)
	}
	return &s, nil
}

func newClient(cfg config.IndexerConfig, baseURL, name string, log *zap.Logger) (*indexer.Client, error) {
	client, err := indexer.NewClient(&indexer.Config{
		BaseURL:           baseURL,
		Name:              name,
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RetryBaseDelay:    cfg.RetryBaseDelay,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            logger.WithComponent(log, name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", name, err)
	}
	return client, nil
}

// loadConfig loads configuration from file and environment variables
func loadConfig(configFile string) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// applyFlags applies command-line flags to configuration
func applyFlags(cfg *config.Config, indexerURL, algodURL, apiHost string, apiPort int, cacheBackend, prizesFile, logLevel, logFormat string) {
	if indexerURL != "" {
		cfg.Indexer.BaseURL = indexerURL
	}
	if algodURL != "" {
		cfg.Indexer.AlgodURL = algodURL
	}
	if apiHost != "" {
		cfg.API.Host = apiHost
	}
	if apiPort > 0 {
		cfg.API.Port = apiPort
	}
	if cacheBackend != "" {
		cfg.Cache.Backend = cacheBackend
	}
	if prizesFile != "" {
		cfg.Campaign.PrizesFile = prizesFile
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
}
