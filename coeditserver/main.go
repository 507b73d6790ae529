// coeditserver is the collaborative editor server: an HTTP API plus a
// per-document WebSocket channel through which clients submit edits
// and observe each other's committed operations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"coedit/api"
	"coedit/auth"
	"coedit/cache"
	"coedit/config"
	"coedit/core"
	"coedit/editor"
	"coedit/hub"
	"coedit/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	addr := flag.String("addr", "", "listen address override")
	storeKind := flag.String("store", "", "store kind override (mongo|memory)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *storeKind != "" {
		cfg.Store.Kind = *storeKind
	}
	if *debug {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}
	if cfg.Auth.Secret == "" {
		cfg.Auth.Secret = os.Getenv("COEDIT_AUTH_SECRET")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := core.ConfigureLogger(cfg.Log.Development, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logger: %v\n", err)
		os.Exit(1)
	}
	defer core.Sync()

	if err := run(cfg); err != nil {
		core.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	var (
		documentStore store.Store
		userStore     auth.UserStore
		mongoClient   *mongo.Client
	)

	switch cfg.Store.Kind {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(connectCtx, mongooptions.Client().ApplyURI(cfg.Store.URI))
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			return fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		mongoClient = client

		documentStore, err = store.NewMongoStore(connectCtx, client,
			store.WithDatabaseName(cfg.Store.Database))
		if err != nil {
			return fmt.Errorf("failed to create store: %w", err)
		}

		userStore, err = auth.NewMongoUserStore(connectCtx, client, cfg.Store.Database, "users")
		if err != nil {
			return fmt.Errorf("failed to create user store: %w", err)
		}
	case "memory":
		documentStore = store.NewMemoryStore()
		userStore = auth.NewMemoryUserStore()
	}

	docCache, err := buildCache(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}

	authenticator, err := auth.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}
	authService := auth.NewService(userStore, authenticator)

	sessionHub := hub.New()
	pipeline := editor.NewService(documentStore, sessionHub, docCache,
		editor.WithCacheTTL(cfg.Cache.TTL))

	server := api.New(cfg.Server, documentStore, pipeline, sessionHub, authService)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve()
	}()

	core.Info("Server started",
		zap.String("addr", cfg.Server.Addr),
		zap.String("store", cfg.Store.Kind),
		zap.String("cache", cfg.Cache.Kind))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		core.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	// Ordered teardown: stop accepting connections, drain queued
	// edits, then release the shared resources.
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		core.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	pipeline.Shutdown()
	sessionHub.Close()
	if err := docCache.Close(); err != nil {
		core.Warn("Cache close failed", zap.Error(err))
	}
	if err := documentStore.Close(shutdownCtx); err != nil {
		core.Warn("Store close failed", zap.Error(err))
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			core.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}

	core.Info("Shutdown complete")
	return nil
}

func buildCache(cfg config.CacheConfig) (cache.Cache[*store.Document], error) {
	options := cache.DefaultCacheOptions()
	if cfg.TTL > 0 {
		options.DefaultTTL = cfg.TTL
	}

	switch cfg.Kind {
	case "redis":
		return cache.NewRedisCache[*store.Document](cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, options)
	case "badger":
		return cache.NewBadgerCache[*store.Document](cfg.BadgerPath, options)
	default:
		return cache.NewMemoryCache[*store.Document](options), nil
	}
}
