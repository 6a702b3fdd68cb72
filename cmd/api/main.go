package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/auth"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/core"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/event"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/ingestion"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/observability"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/persistence"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/server"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/state"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/store"
	"github.com/vhendala/backend-flight-insurance-stellar/internal/transfer"
)

// Config is loaded from environment variables. Redis, Postgres, and
// NATS are each optional: without Redis the state lives in memory,
// without Postgres there is no audit trail, and without NATS there is
// no eventing and transfers run against an in-process ledger.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	PostgresDSN   string
	MigrationsDir string

	NATSURL         string
	TransferSubject string
	TransferTimeout time.Duration

	JWTSecret  string
	TreasuryID string

	DeadlineWindow time.Duration

	EventChanSize  int
	AuditChanSize  int
	AuditBatchSize int
	AuditFlush     time.Duration
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:        envOrDefault("FIS_HTTP_ADDR", ":8080"),
		MetricsAddr:     envOrDefault("FIS_METRICS_ADDR", ":9091"),
		RedisAddr:       envOrDefault("FIS_REDIS_ADDR", ""),
		RedisPassword:   envOrDefault("FIS_REDIS_PASSWORD", ""),
		RedisDB:         envIntOrDefault("FIS_REDIS_DB", 0),
		RedisPrefix:     envOrDefault("FIS_REDIS_PREFIX", "fis"),
		PostgresDSN:     envOrDefault("FIS_POSTGRES_DSN", ""),
		MigrationsDir:   envOrDefault("FIS_MIGRATIONS_DIR", "migrations"),
		NATSURL:         envOrDefault("FIS_NATS_URL", ""),
		TransferSubject: envOrDefault("FIS_TRANSFER_SUBJECT", "assets.transfer"),
		TransferTimeout: envDurationOrDefault("FIS_TRANSFER_TIMEOUT", 5*time.Second),
		JWTSecret:       envOrDefault("FIS_JWT_SECRET", ""),
		TreasuryID:      envOrDefault("FIS_TREASURY_ID", ""),
		DeadlineWindow:  envDurationOrDefault("FIS_DEADLINE_WINDOW", 24*time.Hour),
		EventChanSize:   envIntOrDefault("FIS_EVENT_CHAN_SIZE", 1024),
		AuditChanSize:   envIntOrDefault("FIS_AUDIT_CHAN_SIZE", 1024),
		AuditBatchSize:  envIntOrDefault("FIS_AUDIT_BATCH_SIZE", 64),
		AuditFlush:      envDurationOrDefault("FIS_AUDIT_FLUSH", time.Second),
	}
}

func main() {
	_ = godotenv.Load()

	log := observability.NewLogger("api")
	cfg := DefaultConfig()

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("FIS_JWT_SECRET is required")
	}

	treasury, err := uuid.Parse(cfg.TreasuryID)
	if err != nil {
		log.Fatal().Err(err).Msg("FIS_TREASURY_ID must be a valid UUID")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	health := observability.NewHealthChecker()

	// --- State store ---
	var kv store.Store
	if cfg.RedisAddr != "" {
		rs, err := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect")
		}
		defer rs.Close()
		kv = rs
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis connected")
	} else {
		kv = store.NewMemory()
		log.Warn().Msg("FIS_REDIS_ADDR not set, state is in-memory and will not survive restarts")
	}

	// --- Postgres audit trail (optional) ---
	var (
		auditChan chan persistence.OperationRow
		history   *persistence.HistoryService
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres open")
		}
		defer db.Close()
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("postgres ping")
		}
		log.Info().Msg("postgres connected")

		migrator := persistence.NewMigrator(db, cfg.MigrationsDir, log)
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("run migrations")
		}

		auditChan = make(chan persistence.OperationRow, cfg.AuditChanSize)
		worker := persistence.NewAuditWorker(db, auditChan, cfg.AuditBatchSize, cfg.AuditFlush, metrics, log)
		go func() {
			if err := worker.Run(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("audit worker stopped")
			}
		}()

		history = persistence.NewHistoryService(db)
	} else {
		log.Warn().Msg("FIS_POSTGRES_DSN not set, audit trail disabled")
	}

	// --- NATS eventing and transfers (optional) ---
	var (
		eventChan chan event.Envelope
		transfers transfer.Service
		js        jetstream.JetStream
	)
	if cfg.NATSURL != "" {
		nc, jsCtx, err := ingestion.ConnectNATS(cfg.NATSURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Close()
		js = jsCtx
		log.Info().Str("url", cfg.NATSURL).Msg("nats connected")

		if err := ingestion.EnsureEventsStream(ctx, js); err != nil {
			log.Fatal().Err(err).Msg("ensure events stream")
		}
		if err := ingestion.EnsureFlightStatusStream(ctx, js); err != nil {
			log.Fatal().Err(err).Msg("ensure flight status stream")
		}

		eventChan = make(chan event.Envelope, cfg.EventChanSize)
		publisher := ingestion.NewPublisher(js, eventChan, log)
		go func() {
			if err := publisher.Run(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("event publisher stopped")
			}
		}()

		transfers = transfer.NewNATSClient(nc, cfg.TransferSubject, cfg.TransferTimeout)
	} else {
		transfers = transfer.NewLedger()
		log.Warn().Msg("FIS_NATS_URL not set, eventing disabled and transfers run in-process")
	}

	// --- Engine ---
	var eventsOut chan<- event.Envelope
	if eventChan != nil {
		eventsOut = eventChan
	}
	var auditOut chan<- persistence.OperationRow
	if auditChan != nil {
		auditOut = auditChan
	}
	engine := core.NewEngine(core.Config{
		Settings:       state.NewSettings(kv),
		Ledger:         state.NewPolicyLedger(kv),
		Pool:           state.NewPoolAccountant(kv),
		Indexes:        state.NewIndexMaintainer(kv),
		Transfers:      transfers,
		Authz:          auth.ContextAuthorizer{},
		Treasury:       treasury,
		DeadlineWindow: cfg.DeadlineWindow,
		Events:         eventsOut,
		Audit:          auditOut,
		Metrics:        metrics,
		Log:            log.With().Str("component", "engine").Logger(),
	})

	if js != nil {
		subscriber := ingestion.NewFlightStatusSubscriber(js, engine, log)
		if err := subscriber.Subscribe(ctx); err != nil {
			log.Fatal().Err(err).Msg("subscribe flight status")
		}
		defer subscriber.Stop()
	}

	// --- HTTP ---
	app := server.New(server.Deps{
		Engine:    engine,
		History:   history,
		Health:    health,
		JWTSecret: cfg.JWTSecret,
		Log:       log.With().Str("component", "http").Logger(),
	})

	errChan := make(chan error, 2)
	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			errChan <- err
		}
	}()

	// Metrics get their own listener so scrapes never compete with
	// request traffic.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			_ = metricsServer.Shutdown(shutCtx)
		}()
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	health.SetReady(true)
	log.Info().
		Str("http", cfg.HTTPAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("flight insurance service ready")

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		log.Error().Err(err).Msg("server failed, shutting down")
	}

	health.SetReady(false)
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	time.Sleep(cfg.AuditFlush + 500*time.Millisecond)
	log.Info().Msg("shutdown complete")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
