package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/distrubuted-game-mechanic/round-engine/internal/config"
	"github.com/distrubuted-game-mechanic/round-engine/internal/coordinator"
	"github.com/distrubuted-game-mechanic/round-engine/internal/engine"
	httphandler "github.com/distrubuted-game-mechanic/round-engine/internal/http"
	"github.com/distrubuted-game-mechanic/round-engine/internal/oracle"
	"github.com/distrubuted-game-mechanic/round-engine/internal/store"
	"github.com/distrubuted-game-mechanic/round-engine/internal/store/cassandra"
	"github.com/distrubuted-game-mechanic/round-engine/internal/vault"
	"github.com/distrubuted-game-mechanic/round-engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	sessionStore, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize session store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	ledger := vault.NewLedger(log)
	if cfg.StoreDriver != config.DriverMemory {
		log.Warn("Vault balances are held in memory and are lost on restart; claims on sessions from an earlier run will fail",
			zap.String("store", cfg.StoreDriver),
		)
	}
	eng, err := engine.New(sessionStore, ledger, cfg.Rules, log)
	if err != nil {
		log.Fatal("Failed to initialize engine", zap.Error(err))
	}
	validator := oracle.NewValidator(cfg.Oracle.Thresholds, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := httphandler.Deps{
		Engine:    eng,
		Validator: validator,
		Wallet:    ledger,
		Operator:  cfg.Coordinator.Operator,
		Logger:    log,
	}

	var coord *coordinator.Coordinator
	if cfg.Coordinator.Enabled {
		feed := oracle.NewHermesFeed(cfg.Oracle.HermesEndpoint, map[oracle.Asset]string{
			oracle.AssetBTC: cfg.Oracle.BTCFeedID,
			oracle.AssetSOL: cfg.Oracle.SOLFeedID,
		})
		coord = coordinator.New(eng, feed, validator, nil, nil, coordinator.Config{
			Operator:       cfg.Coordinator.Operator,
			Schedule:       cfg.Coordinator.Schedule,
			CreateSchedule: cfg.Coordinator.CreateSchedule,
			GameType:       cfg.Coordinator.GameType,
			EntryFee:       cfg.Coordinator.EntryFee,
			StartDelay:     cfg.Coordinator.StartDelay,
		}, log)
		if err := coord.Start(ctx); err != nil {
			log.Fatal("Failed to start coordinator", zap.Error(err))
		}
		deps.Tracker = coord
	}

	handler := httphandler.NewHandler(deps)
	router := httphandler.NewRouter(handler, log, cfg.RequestTimeout)

	server := &http.Server{
		Addr:    cfg.Address(),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info("Server starting", zap.String("addr", server.Addr), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if coord != nil {
		coord.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited")
}

// openStore connects the configured session store and returns its closer.
func openStore(cfg *config.Config, log *zap.Logger) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverRedis:
		s, err := store.NewRedisStore(store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		return s, func() { _ = s.Close() }, nil

	case config.DriverCassandra:
		client, err := cassandra.NewClient(cassandra.Config{
			Hosts:       cfg.Cassandra.Hosts,
			Keyspace:    cfg.Cassandra.Keyspace,
			Username:    cfg.Cassandra.Username,
			Password:    cfg.Cassandra.Password,
			Consistency: cfg.Cassandra.Consistency,
			Timeout:     cfg.Cassandra.Timeout,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return cassandra.NewStore(client), client.Close, nil

	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}
