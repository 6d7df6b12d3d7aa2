package di

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"PriceDrop/internal/domain/repository"
	domsvc "PriceDrop/internal/domain/service"
	"PriceDrop/internal/handler/api"
	internalrepo "PriceDrop/internal/repository"
	"PriceDrop/internal/repository/memory"
	"PriceDrop/internal/service/ratelimit"
	"PriceDrop/internal/services/model"
	"PriceDrop/internal/usecase"
	pkgcache "PriceDrop/pkg/cache"
	pkgch "PriceDrop/pkg/clickhouse"
	"PriceDrop/pkg/config"
	xhttp "PriceDrop/pkg/http"
	"PriceDrop/pkg/http/middleware"
	pkgkafka "PriceDrop/pkg/kafka"
	applogger "PriceDrop/pkg/logger"
	"PriceDrop/pkg/metrics"
	pkgpg "PriceDrop/pkg/postgres"
	"PriceDrop/pkg/server"
)

const (
	serviceName   = "pricedrop"
	schemaTimeout = 10 * time.Second
)

// Registry pairs the registerer collectors are added to with the gatherer
// served on /metrics.
type Registry struct {
	prometheus.Registerer
	prometheus.Gatherer
}

// ProvideRegistry uses the process-wide registry so kafka producer metrics
// land next to the service's own.
func ProvideRegistry() *Registry {
	return &Registry{Registerer: prometheus.DefaultRegisterer, Gatherer: prometheus.DefaultGatherer}
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config, reg *Registry) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(reg.Registerer)
}

// ProvideLogger builds the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideKafkaProducer creates the producer shared by prediction events and the
// log collector. It is nil when neither is enabled.
func ProvideKafkaProducer(cfg *config.Config, reg *Registry, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Predictions.Events.Enabled && !cfg.Log.Collector.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg.Registerer),
		pkgkafka.WithAsyncErrorHandler(func(topic string, key []byte, err error) {
			// Info, not Warn: warn entries feed the collector, which ships through this producer.
			l.Info("kafka delivery failed",
				applogger.String("topic", topic),
				applogger.String("key", string(key)),
				applogger.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	l.Info("kafka producer ready", applogger.String("brokers", strings.Join(cfg.Kafka.Brokers, ",")))
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Error("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// LogShipping marks whether warn/error digests are attached to the logger.
type LogShipping struct {
	Enabled bool
}

// ProvideLogShipping attaches the digest collector to l when configured. Its
// cleanup flushes the last digest before the producer closes.
func ProvideLogShipping(cfg *config.Config, l *applogger.Logger, producer *pkgkafka.Producer) (LogShipping, func()) {
	if !cfg.Log.Collector.Enabled || producer == nil {
		return LogShipping{}, func() {}
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   cfg.Log.Collector.Interval,
		CountThreshold: cfg.Log.Collector.Threshold,
		Topic:          cfg.Log.Collector.Topic,
		Service:        serviceName,
		Publisher:      producer,
	})
	return LogShipping{Enabled: true}, l.RemoveCollector
}

// ProvideHistoryStore opens the configured price history backend.
func ProvideHistoryStore(cfg *config.Config, l *applogger.Logger) (repository.HistoryStore, func(), error) {
	if cfg.History.Backend == "memory" {
		store := memory.NewHistoryStore()
		if cfg.History.Seed != "" {
			f, err := os.Open(cfg.History.Seed)
			if err != nil {
				return nil, nil, fmt.Errorf("history seed: %w", err)
			}
			defer f.Close()
			n, err := store.LoadJSON(f)
			if err != nil {
				return nil, nil, err
			}
			l.Info("history seed loaded", applogger.String("file", cfg.History.Seed), applogger.Int("points", n))
		}
		return store, func() {}, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithCompression(cfg.ClickHouse.Compression),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.CHHistorySchema(cfg.History.Table)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse connected",
		applogger.String("database", cfg.ClickHouse.Database),
		applogger.String("table", cfg.History.Table),
	)

	store := internalrepo.NewCHHistoryStore(client, cfg.History.Table)
	store.SetLogger(l)
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvidePostgres opens the database holding predictions and forecast audit
// rows. It is nil when predictions are kept in memory.
func ProvidePostgres(cfg *config.Config, l *applogger.Logger) (*pkgpg.Client, func(), error) {
	if cfg.Predictions.Backend == "memory" {
		return nil, func() {}, nil
	}
	client, err := pkgpg.NewClient(
		pkgpg.WithDSN(cfg.Postgres.DSN),
		pkgpg.WithMaxConnections(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns),
		pkgpg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	schema := append(append([]string(nil), internalrepo.PGPredictionSchema...), internalrepo.PGForecastAuditSchema...)
	if err := client.InitSchema(ctx, schema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("postgres schema: %w", err)
	}
	l.Info("postgres connected")
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("postgres close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvidePredictionStore returns the prediction store on pg, or in memory
// when pg is nil, optionally fronted by the Redis latest-prediction cache.
func ProvidePredictionStore(cfg *config.Config, l *applogger.Logger, pg *pkgpg.Client) (repository.PredictionStore, func(), error) {
	var store repository.PredictionStore = memory.NewPredictionStore()
	if pg != nil {
		store = internalrepo.NewPGPredictionStore(pg)
	}

	if !cfg.Predictions.Cache.Enabled {
		return store, func() {}, nil
	}

	redis, err := pkgcache.NewRedisCache(context.Background(), pkgcache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis connected", applogger.String("host", cfg.Redis.Host), applogger.Int("port", cfg.Redis.Port))

	layered := pkgcache.NewLayeredCache(redis,
		pkgcache.WithLayeredMemoryTTL(cfg.Predictions.Cache.LocalTTL),
		pkgcache.WithLayeredMemorySize(cfg.Predictions.Cache.LocalSize),
	)
	cleanup := func() {
		if err := layered.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return internalrepo.NewCachedPredictionStore(store, layered, cfg.Predictions.Cache.TTL, l), cleanup, nil
}

// ProvideForecastAuditStore keeps forecast audit rows next to predictions.
func ProvideForecastAuditStore(pg *pkgpg.Client) repository.ForecastAuditStore {
	if pg == nil {
		return memory.NewForecastAuditStore()
	}
	return internalrepo.NewPGForecastAuditStore(pg)
}

// ProvidePublisher returns the Kafka event publisher, or a no-op when events
// are disabled. The producer is closed by its own cleanup.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.PredictionPublisher {
	if !cfg.Predictions.Events.Enabled || producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaPredictionPublisher(producer, cfg.Predictions.Events.Topic)
}

// ProvideModelClient creates the external model client shared by the
// drop prediction and forecast paths.
func ProvideModelClient(cfg *config.Config) *model.HTTPPredictor {
	return model.NewHTTPPredictor(cfg.Model.URL,
		model.WithForecastURL(cfg.Model.ForecastURL),
		model.WithTimeout(cfg.Model.Timeout),
		model.WithDefaultVersion(cfg.Model.DefaultVersion),
	)
}

func ProvidePredictor(c *model.HTTPPredictor) domsvc.DropPredictor { return c }

func ProvideForecaster(c *model.HTTPPredictor) domsvc.Forecaster { return c }

// ProvideOrchestrator creates the prediction use case.
func ProvideOrchestrator(
	cfg *config.Config,
	history repository.HistoryStore,
	predictions repository.PredictionStore,
	predictor domsvc.DropPredictor,
	publisher repository.PredictionPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.PredictionOrchestrator {
	return usecase.NewPredictionOrchestrator(history, predictions, predictor,
		usecase.OrchestratorConfig{
			DefaultThreshold: cfg.Predict.DefaultThreshold,
			FreshnessTTL:     cfg.Predict.FreshnessTTL,
			LookbackDays:     cfg.Predict.LookbackDays,
		},
		usecase.WithPublisher(publisher),
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
	)
}

// ProvideForecastOrchestrator creates the forecast use case.
func ProvideForecastOrchestrator(
	cfg *config.Config,
	forecaster domsvc.Forecaster,
	audits repository.ForecastAuditStore,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ForecastOrchestrator {
	return usecase.NewForecastOrchestrator(forecaster, audits,
		usecase.WithForecastVersion(cfg.Model.DefaultVersion),
		usecase.WithForecastMetrics(m),
		usecase.WithForecastLogger(l),
	)
}

// ProvideRateLimiter returns the per-client limiter, nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideHandler creates the prediction HTTP handler with its health checks.
func ProvideHandler(
	l *applogger.Logger,
	orch *usecase.PredictionOrchestrator,
	forecast *usecase.ForecastOrchestrator,
	history repository.HistoryStore,
	predictions repository.PredictionStore,
	audits repository.ForecastAuditStore,
	limiter *ratelimit.Limiter,
) *api.PredictionsEchoHandler {
	h := api.NewPredictionsEchoHandler(l, orch)
	h.UseForecastService(forecast)
	if limiter != nil {
		h.UsePredictMiddleware(middleware.RateLimit(limiter))
	}
	h.AddHealthCheck("history", history.Health)
	h.AddHealthCheck("predictions", predictions.Health)
	h.AddHealthCheck("forecast_audits", audits.Health)
	return h
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.PredictionsEchoHandler, reg *Registry) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORS(cfg.Server.CORSOrigins...),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg.Registerer, reg.Gatherer, cfg.Metrics.Path))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, limiter *ratelimit.Limiter, shipping LogShipping) *server.App {
	l.Info("app assembled", applogger.Bool("log_shipping", shipping.Enabled))
	var opts []server.Option
	if limiter != nil {
		opts = append(opts, server.WithPruner(limiter, cfg.RateLimit.PruneSchedule))
	}
	return server.New(l, srv, opts...)
}
