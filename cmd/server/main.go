package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/pantry/internal/adapter/client"
	"github.com/rl1809/pantry/internal/adapter/handler"
	"github.com/rl1809/pantry/internal/adapter/storage"
	"github.com/rl1809/pantry/internal/config"
	"github.com/rl1809/pantry/internal/core/service"
	"github.com/rl1809/pantry/internal/platform/logger"
	"github.com/rl1809/pantry/internal/port"
)

const healthInterval = 10 * time.Second

type storeProvider interface {
	port.StoreProvider
	port.Pinger
}

func main() {
	configPath := flag.String("config", os.Getenv("PANTRY_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	stores, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open store", "driver", cfg.Store.Driver, "dsn", cfg.Store.DSN, "error", err)
	}
	defer closeStore()
	log.Info("store ready", "driver", cfg.Store.Driver)

	deps := map[string]port.Pinger{"store": stores}
	opts := []service.Option{service.WithLogger(log)}

	// Initialize Redis; an empty address runs without the idempotency guard.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect redis", "addr", cfg.Redis.Addr, "error", err)
		}
		defer rdb.Close()
		cache := storage.NewRedisAdapter(rdb)
		opts = append(opts, service.WithCache(cache))
		deps["redis"] = cache
		log.Info("connected to redis", "addr", cfg.Redis.Addr)
	} else {
		log.Warn("redis disabled, duplicate mutations will not be detected")
	}

	// Initialize service
	reconciler := service.NewReconciler(cfg.MutationConcurrency, log)
	inventory := service.NewInventoryService(stores, reconciler, opts...)

	// Initialize gRPC health server
	grpcServer := grpc.NewServer()
	health := handler.NewGRPCHandler(deps, log)
	health.Register(grpcServer)
	go health.Watch(ctx, healthInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen", "addr", cfg.GRPCAddr, "error", err)
	}

	go func() {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	mux := http.NewServeMux()
	handler.NewHTTPHandler(inventory, log).Routes(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	health.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", "error", err)
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")
}

func openStore(ctx context.Context, cfg config.Config) (storeProvider, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreRemote:
		c := client.New(cfg.Remote.BaseURL, cfg.Remote.Timeout)
		return client.NewProvider(c), func() {}, nil
	case config.StoreMySQL, config.StoreSQLite:
		dialect := storage.DialectMySQL
		if cfg.Store.Driver == config.StoreSQLite {
			dialect = storage.DialectSQLite
		}
		db, err := sql.Open(string(dialect), cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		if dialect == storage.DialectSQLite {
			db.SetMaxOpenConns(1)
		} else {
			db.SetMaxOpenConns(50)
			db.SetMaxIdleConns(25)
			db.SetConnMaxLifetime(5 * time.Minute)
		}
		store := storage.NewSQLStore(db, dialect)
		if err := store.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
