package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/auth"
	"github.com/Pizzaface/PizzaPi-sub003/internal/config"
	"github.com/Pizzaface/PizzaPi-sub003/internal/directory"
	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/Pizzaface/PizzaPi-sub003/internal/pruner"
	"github.com/Pizzaface/PizzaPi-sub003/internal/spawnack"
	"github.com/Pizzaface/PizzaPi-sub003/internal/store"
	"github.com/Pizzaface/PizzaPi-sub003/internal/websocket"
	"github.com/gin-gonic/gin"
)

func run(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.Debug && level > logger.LevelDebug {
		level = logger.LevelDebug
	}
	logger.SetLevel(level)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("create JWT manager: %w", err)
	}
	keys, err := auth.NewAPIKeyProvider(cfg.APIKeys)
	if err != nil {
		return fmt.Errorf("load API keys: %w", err)
	}
	logger.Infof("Loaded %d API key(s)", keys.Len())
	authn := auth.NewAuthenticator(jwtManager, keys)
	origins := auth.NewOriginPolicy(cfg.AllowedOrigins)

	dir := directory.New(st, directory.Options{
		EphemeralTTL:   cfg.EphemeralTTL,
		HeartbeatGrace: cfg.HeartbeatGrace,
	})
	coordinator := spawnack.NewCoordinator()

	logger.Infof("Initializing Socket.IO server...")
	socketIOServer := websocket.NewSocketIOServer(dir, authn, origins, coordinator, websocket.Options{
		PingInterval: cfg.PingInterval,
		PingTimeout:  cfg.PingTimeout,
		SpawnTimeout: cfg.SpawnTimeout,
		PublicURL:    cfg.PublicURL,
	})
	defer socketIOServer.Close()

	p := pruner.New(dir, socketIOServer, time.Now)
	go p.Run(ctx, cfg.PruneInterval)
	if sq, ok := st.(*store.SQLiteStore); ok {
		go purgeExpiredRows(ctx, sq, cfg.PruneInterval)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, authn, dir, st, socketIOServer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Relay starting on %s (store: %s)", cfg.Addr, cfg.Store)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infof("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP shutdown: %v", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		logger.Infof("Opening database: %s", cfg.DatabasePath)
		return store.OpenSQLiteStore(cfg.DatabasePath, time.Now)
	case config.StoreRedis:
		logger.Infof("Connecting to redis")
		return store.OpenRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix)
	default:
		logger.Warnf("Using the in-memory store; run a single process only")
		return store.NewMemoryStore(time.Now), nil
	}
}

// purgeExpiredRows drops expired rows SQLite keeps on disk after their ttl.
func purgeExpiredRows(ctx context.Context, st *store.SQLiteStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.PurgeExpired(ctx)
			if err != nil {
				logger.Warnf("Purge expired rows: %v", err)
				continue
			}
			if n > 0 {
				logger.Debugf("Purged %d expired rows", n)
			}
		}
	}
}
