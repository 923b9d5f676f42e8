package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-carsharing/internal/auth"
	"github.com/ukydev/fleet-carsharing/internal/config"
	"github.com/ukydev/fleet-carsharing/internal/db"
	"github.com/ukydev/fleet-carsharing/internal/handlers"
	"github.com/ukydev/fleet-carsharing/internal/metrics"
	"github.com/ukydev/fleet-carsharing/internal/middleware"
	"github.com/ukydev/fleet-carsharing/internal/notify"
	"github.com/ukydev/fleet-carsharing/internal/state"
)

const mongoCollection = "fleet_snapshots"

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	if err := run(cfg); err != nil {
		log.WithError(err).Fatal("Fleet API stopped")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, closePublisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	recorder := metrics.NewRecorder()
	manager := state.NewManager(store, publisher, recorder)
	manager.SetPublishTimeout(cfg.PublishTimeout)
	if err := manager.Load(ctx); err != nil {
		return err
	}

	handler, err := newAPI(cfg, manager, recorder)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"port":    cfg.Port,
			"backend": cfg.StoreBackend,
		}).Info("HTTP server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore connects the configured snapshot backend. The returned func
// releases its connections.
func openStore(ctx context.Context, cfg config.Config) (db.SnapshotStore, func(), error) {
	var (
		store   db.SnapshotStore
		cleanup = func() {}
	)

	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn("Using in-memory snapshot store, fleet state is lost on restart")
		return &db.MemorySnapshotStore{}, cleanup, nil

	case config.BackendMongo:
		client, err := db.ConnectMongo(cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		store = &db.MongoSnapshotStore{
			Collection: client.Database(cfg.MongoDB).Collection(mongoCollection),
			ID:         cfg.SnapshotID,
		}
		cleanup = func() { _ = client.Disconnect(context.Background()) }

	case config.BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, nil, errors.New("POSTGRES_DSN is required for the postgres backend")
		}
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		s, err := db.NewPostgresSnapshotStore(pool, cfg.SnapshotID, "")
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		store, cleanup = s, pool.Close

	case config.BackendSQLite:
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		s, err := db.NewSQLiteSnapshotStore(conn, cfg.SnapshotID, "")
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		store, cleanup = s, func() { _ = conn.Close() }

	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if schema, ok := store.(db.SchemaStore); ok {
		if err := schema.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	log.WithFields(log.Fields{
		"backend":     cfg.StoreBackend,
		"snapshot_id": cfg.SnapshotID,
	}).Info("Snapshot store ready")
	return store, cleanup, nil
}

// openPublisher connects to MQTT when a broker is configured.
func openPublisher(cfg config.Config) (notify.Publisher, func(), error) {
	if cfg.MQTTBroker == "" {
		return notify.NopPublisher{}, func() {}, nil
	}

	publisher, err := notify.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(log.Fields{
		"broker": cfg.MQTTBroker,
		"prefix": cfg.MQTTTopicPrefix,
	}).Info("Publishing fleet events over MQTT")
	return publisher, publisher.Close, nil
}

func newAPI(cfg config.Config, manager *state.Manager, recorder *metrics.Recorder) (http.Handler, error) {
	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return nil, err
	}

	operators, err := auth.ParseOperators(cfg.Operators)
	if err != nil {
		return nil, fmt.Errorf("FLEET_OPERATORS: %w", err)
	}
	if operators.Len() == 0 {
		log.Warn("No operators configured, API authentication is disabled")
	}

	limiter := middleware.NewRateLimitMiddleware(
		cfg.RateLimitRequests,
		time.Duration(cfg.RateLimitWindowSeconds)*time.Second,
		cfg.TrustProxy,
	)

	return handlers.NewRouter(handlers.RouterConfig{
		Manager:         manager,
		Auth:            handlers.NewAuthHandler(authService, operators),
		AuthMiddleware:  middleware.NewAuthMiddleware(authService, operators.Len() > 0),
		RateLimiter:     limiter,
		Metrics:         recorder.Handler(),
		MaxSimulateDays: cfg.MaxSimulateDays,
	}), nil
}
