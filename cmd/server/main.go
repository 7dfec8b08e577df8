/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the vault ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, VAULT_* environment, flags)
  2. Open the SQLite store
  3. Wire replication when a Redis address is configured
  4. Load the engine (latest snapshot, or the seed)
  5. Start the invariant scheduler and the HTTP server

SEEDING:
  An empty database is seeded from -seed (a JSON state or snapshot file),
  or with a single admin/admin owner. With replication on, a fresh node
  first adopts whatever another replica last stored in Redis.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the subscriber and scheduler
  4. Drain pending snapshots to Redis
  5. Close connections and exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/vault.db"

  # Two replicas sharing state through Redis
  ./server -port=8080 -redis=localhost:6379 -replica=a
  ./server -port=8081 -db=b.db -redis=localhost:6379 -replica=b

SEE ALSO:
  - config/config.go: All settings
  - api/server.go: Router configuration
  - engine/engine.go: State holder
*/
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

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/warp/vault-ledger/access"
	"github.com/warp/vault-ledger/api"
	"github.com/warp/vault-ledger/config"
	"github.com/warp/vault-ledger/engine"
	"github.com/warp/vault-ledger/ledger"
	"github.com/warp/vault-ledger/replicate"
	"github.com/warp/vault-ledger/store/jsonfile"
	"github.com/warp/vault-ledger/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := cfg.Logger()
	if cfg.EphemeralSecret {
		log.Warn("VAULT_JWT_SECRET not set, sessions will not survive a restart")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()
	store.Retain = cfg.KeepSnapshots

	seed := access.DefaultSeed()
	if cfg.SeedFile != "" {
		if seed, err = jsonfile.ReadState(cfg.SeedFile); err != nil {
			log.WithError(err).WithField("file", cfg.SeedFile).Fatal("failed to read seed")
		}
	}

	opts := engine.Options{
		Store:  store,
		Audit:  store,
		IDs:    ledger.NewSequence(time.Now),
		Logger: log,
	}

	// Replication
	var (
		rdb    *redis.Client
		sink   *replicate.RedisSink
		worker *replicate.Worker
	)
	if cfg.ReplicationEnabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("failed to connect to Redis")
		}
		sink = replicate.NewRedisSink(rdb, cfg.ReplicaID)
		worker = replicate.NewWorker(log, 16, sink)
		worker.Start()
		opts.Publisher = worker
	}

	eng := engine.New(opts)
	if err := eng.Load(ctx, seed); err != nil {
		log.WithError(err).Fatal("failed to load ledger")
	}

	if sink != nil {
		if eng.Current().Origin == engine.OriginSeed {
			adoptRemote(ctx, log, eng, sink, cfg.ReplicaID)
		}
		sub := replicate.NewSubscriber(rdb, cfg.ReplicaID, eng, log)
		go func() {
			if err := sub.Run(ctx); err != nil {
				log.WithError(err).Error("replication subscriber stopped")
			}
		}()
	}

	scheduler := api.NewInvariantScheduler(eng, log)
	scheduler.CheckInterval = cfg.CheckInterval
	scheduler.Start()

	handler := api.NewHandler(eng, api.NewSessions(cfg.JWTSecret), log)
	handler.History = store

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.Port,
			"version": eng.Current().Version,
			"replica": cfg.ReplicaID,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	cancel()
	scheduler.Stop()
	if worker != nil {
		worker.Shutdown()
	}
	if rdb != nil {
		rdb.Close()
	}

	log.Info("server stopped")
}

// adoptRemote imports the snapshot another replica last stored, so a new
// node joins with the shared state instead of its own seed.
func adoptRemote(ctx context.Context, log logrus.FieldLogger, eng *engine.Engine, sink *replicate.RedisSink, self string) {
	msg, ok, err := sink.FetchLatest(ctx)
	switch {
	case err != nil:
		log.WithError(err).Warn("could not fetch shared snapshot")
		return
	case !ok || msg.ReplicaID == self:
		return
	}
	if _, err := eng.Import(ctx, msg.Snapshot.State, engine.OriginRemote); err != nil {
		log.WithError(err).Error("failed to adopt shared snapshot")
		return
	}
	log.WithFields(logrus.Fields{"from": msg.ReplicaID, "remote_version": msg.Snapshot.Version}).Info("adopted shared snapshot")
}
