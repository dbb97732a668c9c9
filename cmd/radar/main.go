package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/storm-radar-service/internal/acquisition"
	"github.com/couchcryptid/storm-radar-service/internal/adapter/api"
	"github.com/couchcryptid/storm-radar-service/internal/adapter/breaker"
	"github.com/couchcryptid/storm-radar-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/storm-radar-service/internal/adapter/kafka"
	"github.com/couchcryptid/storm-radar-service/internal/adapter/mrms"
	"github.com/couchcryptid/storm-radar-service/internal/adapter/nws"
	"github.com/couchcryptid/storm-radar-service/internal/adapter/postgres"
	"github.com/couchcryptid/storm-radar-service/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-radar-service/internal/adapter/viewer"
	"github.com/couchcryptid/storm-radar-service/internal/config"
	"github.com/couchcryptid/storm-radar-service/internal/grib"
	"github.com/couchcryptid/storm-radar-service/internal/observability"
	"github.com/couchcryptid/storm-radar-service/internal/pipeline"
	"github.com/couchcryptid/storm-radar-service/internal/radar"
	"github.com/couchcryptid/storm-radar-service/internal/scheduler"
	"github.com/couchcryptid/storm-radar-service/internal/store"
	"github.com/couchcryptid/storm-radar-service/internal/synthetic"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, clock)
	if err != nil {
		logger.Error("failed to open snapshot store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	logger.Info("snapshot store ready", "backend", cfg.StoreBackend)

	acq := newAcquisition(cfg, metrics, logger)

	// Snapshot publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	cycle := pipeline.New(acq, st, publisher, clock,
		pipeline.Options{Retention: cfg.RetentionWindow}, metrics, logger)
	sched := scheduler.New(cycle, cfg.FetchInterval, cfg.CleanupInterval, metrics, logger)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	apiSrv := httpadapter.NewServer("api", cfg.APIAddr, api.NewRouter(st, logger), logger)
	opsSrv := httpadapter.NewOpsServer(cfg.HTTPAddr, logger, cycle)

	for _, srv := range []*httpadapter.Server{opsSrv, apiSrv} {
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
				stop()
			}
		}()
	}

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		stop()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	for _, srv := range []*httpadapter.Server{apiSrv, opsSrv} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("snapshot store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendSQLite:
		return sqlite.Open(cfg.SQLitePath, clock)
	case config.BackendPostgres:
		return postgres.Connect(ctx, cfg.DatabaseURL, clock)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newAcquisition(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *acquisition.Pipeline {
	stations := radar.DefaultStations()

	primary := mrms.NewSource(cfg.MRMSBaseURL, cfg.ListingTimeout, cfg.DownloadTimeout,
		grib.NewDecoder(logger), metrics, logger)
	secondary := viewer.NewSource(cfg.ViewerURL, cfg.APITimeout, logger)

	nwsClient := nws.NewClient(cfg.NWSBaseURL, cfg.NWSUserAgent, cfg.APITimeout, logger)
	tertiary := nws.NewSource(stations,
		nws.NewCachedLocator(nwsClient, cfg.ForecastCacheSize, metrics),
		nwsClient,
		nws.Options{Concurrency: cfg.StationConcurrency, RateLimit: cfg.NWSRateLimit},
		metrics, logger)

	// config validation restricts SYNTHETIC_MODE to known modes
	mode, _ := synthetic.ParseMode(cfg.SyntheticMode)
	gen := synthetic.New(mode, stations, nil)

	if !cfg.BreakerEnabled {
		return acquisition.New(primary, secondary, tertiary, gen, metrics, logger)
	}
	return acquisition.New(
		breaker.Wrap(primary, breaker.Settings{}, logger),
		breaker.Wrap(secondary, breaker.Settings{}, logger),
		breaker.Wrap(tertiary, breaker.Settings{}, logger),
		gen, metrics, logger,
	)
}
