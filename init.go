package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tournevent/parcelgate/internal/checkout"
	"github.com/tournevent/parcelgate/internal/config"
	"github.com/tournevent/parcelgate/internal/server"
	"github.com/tournevent/parcelgate/internal/telemetry"
	"github.com/tournevent/parcelgate/pkg/nonce"
	"github.com/tournevent/parcelgate/pkg/shipping"
	"github.com/tournevent/parcelgate/pkg/shipping/europarcel"
	"github.com/tournevent/parcelgate/pkg/shipping/locker"
	"github.com/tournevent/parcelgate/pkg/store"
	"github.com/tournevent/parcelgate/pkg/store/memory"
	"github.com/tournevent/parcelgate/pkg/store/redisstore"
	"github.com/tournevent/parcelgate/pkg/store/sqlstore"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel, cfg.LogFile)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return noop.NewTracerProvider().Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
}

// stores groups the storage the service runs on for the configured backend.
type stores struct {
	configs  shipping.ConfigRepository
	sessions locker.SessionStore
	users    locker.DurableUserStore
	cache    europarcel.LockerCache
	checks   map[string]server.HealthCheck
	closers  []func() error
}

func (s *stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func initStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{
		configs:  memory.NewConfigStore(),
		sessions: memory.NewSessionStore(cfg.SessionTTL),
		users:    memory.NewUserStore(),
		cache:    memory.NewLockerCache(),
		checks:   map[string]server.HealthCheck{},
	}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		rs, err := redisstore.New(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		st.sessions, st.users, st.cache = rs, rs, rs
		st.checks["redis"] = rs.Ping
		st.closers = append(st.closers, rs.Close)

	case config.BackendSQL:
		db, err := sqlstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		st.configs, st.users = db, db
		st.checks["database"] = db.Ping
		st.closers = append(st.closers, db.Close)
	}
	return st, nil
}

func seedInstances(ctx context.Context, cfg *config.Config, repo shipping.ConfigRepository, logger *otelzap.Logger) error {
	if cfg.InstancesFile == "" {
		return nil
	}
	configs, err := store.LoadInstances(cfg.InstancesFile)
	if err != nil {
		return err
	}
	if err := store.Seed(ctx, repo, configs); err != nil {
		return err
	}
	logger.Info("Seeded shipping instances",
		zap.String("file", cfg.InstancesFile),
		zap.Int("count", len(configs)),
	)
	return nil
}

func initTokens(cfg *config.Config, logger *otelzap.Logger) (*nonce.Manager, error) {
	secret := cfg.NonceSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("NONCE_SECRET not set, using a random secret; tokens will not survive restarts")
	}
	return nonce.NewManager(secret, cfg.NonceTTL)
}

func initCourier(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer, cache europarcel.LockerCache, metrics *telemetry.Metrics) *europarcel.Client {
	return europarcel.New(europarcel.Config{
		BaseURL:        cfg.EuroparcelBaseURL,
		Timeout:        cfg.EuroparcelTimeout,
		LockerCacheTTL: cfg.LockerCacheTTL,
		UseMock:        cfg.EuroparcelUseMock,
	}, logger, tracer).
		WithLockerCache(cache).
		WithObserver(metrics)
}

// app is the fully wired service shared by the CLI commands.
type app struct {
	cfg      *config.Config
	logger   *otelzap.Logger
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	stores   *stores
	service  *checkout.Service
	shutdown func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return nil, err
	}

	tracer, shutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
		tracer = noop.NewTracerProvider().Tracer(cfg.ServiceName)
		shutdown = func(context.Context) error { return nil }
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	st, err := initStores(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing %s store: %w", cfg.StoreBackend, err)
	}
	if err := seedInstances(ctx, cfg, st.configs, logger); err != nil {
		st.Close()
		return nil, err
	}

	tokens, err := initTokens(cfg, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	courier := initCourier(cfg, logger, tracer, st.cache, metrics)
	lockers := locker.NewState(st.configs, st.sessions, st.users, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		stores:   st,
		service:  checkout.NewService(st.configs, lockers, courier, tokens, metrics, logger),
		shutdown: shutdown,
	}, nil
}

func (a *app) Close(ctx context.Context) {
	if err := a.stores.Close(); err != nil {
		a.logger.Warn("Closing stores failed", zap.Error(err))
	}
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("Tracer shutdown failed", zap.Error(err))
	}
	a.logger.Sync()
}
