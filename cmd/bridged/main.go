// Command bridged runs the wallet bridge daemon: the websocket protocol
// endpoint for dapps plus the operational REST API.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/keeperstack/wallet_bridge/internal/app"
	"github.com/keeperstack/wallet_bridge/internal/app/domain/wallet"
	"github.com/keeperstack/wallet_bridge/internal/app/httpapi"
	"github.com/keeperstack/wallet_bridge/internal/app/services/approval"
	"github.com/keeperstack/wallet_bridge/internal/app/services/manifest"
	"github.com/keeperstack/wallet_bridge/internal/app/services/wallets"
	"github.com/keeperstack/wallet_bridge/internal/app/storage/postgres"
	"github.com/keeperstack/wallet_bridge/internal/app/storage/postgres/migrations"
	"github.com/keeperstack/wallet_bridge/internal/bridge"
	"github.com/keeperstack/wallet_bridge/internal/config"
	"github.com/keeperstack/wallet_bridge/internal/tonapi"
	"github.com/keeperstack/wallet_bridge/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/bridge.yaml", "path to the YAML configuration file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("bridged", cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("daemon exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	var stores app.Stores
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		if err := migrations.Up(db); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		stores.Connections = postgres.New(db)
		log.Info("using postgres connection store")
	} else {
		log.Info("no database DSN configured; using in-memory connection store")
	}

	var manifestCache manifest.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		manifestCache = manifest.NewRedisCache(rdb, log)
		log.WithField("addr", cfg.Redis.Addr).Info("manifest cache enabled")
	}

	indexer := tonapi.New(tonapi.Config{
		BaseURL:           cfg.Indexer.BaseURL,
		KnownAccountsURL:  cfg.Indexer.KnownAccountsURL,
		Timeout:           cfg.Indexer.Timeout,
		RequestsPerSecond: cfg.Indexer.RequestsPerSecond,
	}, log)

	list := make([]wallet.Wallet, 0, len(cfg.Wallets))
	for _, entry := range cfg.Wallets {
		list = append(list, wallet.Wallet{
			ID:      entry.ID,
			Address: entry.Address,
			Testnet: entry.Testnet,
		})
	}
	directory := wallets.NewStaticDirectory(list)
	if len(list) == 0 {
		log.Warn("no wallets configured; all protocol requests will be rejected")
	}

	approvals := approval.NewQueue(log)

	application, err := app.New(stores, app.Collaborators{
		Wallets:       directory,
		Balances:      indexer,
		DNS:           indexer,
		Rates:         indexer,
		Known:         indexer,
		Submitter:     indexer,
		Surface:       approvals,
		ManifestCache: manifestCache,
	}, app.Options{
		DisplayCurrency:  cfg.DisplayCurrency,
		ManifestTimeout:  cfg.Manifest.Timeout,
		ManifestCacheTTL: cfg.Manifest.CacheTTL,
		RatesSchedule:    cfg.Rates.Schedule,
		RateCurrencies:   cfg.Rates.Currencies,
	}, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	if err := application.Start(startCtx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/bridge", bridge.NewServer(application.Router, log))
	mux.Handle("/", httpapi.NewHandler(application, approvals))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		log.WithError(err).Error("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown incomplete")
	}
	return nil
}
