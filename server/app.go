package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"PlaySync/cache"
	"PlaySync/config"
	"PlaySync/core/audio"
	"PlaySync/core/auth"
	"PlaySync/core/media"
	"PlaySync/core/playlist"
	"PlaySync/db"
	"PlaySync/logger"
	"PlaySync/repository"
	"PlaySync/storage"

	"github.com/redis/go-redis/v9"
)

// OpenStore 根据配置选择媒体存储
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "minio":
		return storage.NewMinioStore(ctx, cfg)
	case "local", "":
		return storage.NewLocalStore(cfg.UploadDir)
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

// Start wires every component from cfg and serves until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg)
}

// Run wires every component from cfg and serves until ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	gdb, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	repo := repository.NewGormMediaRepository(gdb)

	var tokenStore auth.TokenStore
	if cfg.RedisEnabled {
		var client *redis.Client
		client, err = db.ConnectRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		tokenStore = cache.NewTokenCache(client)
		logger.Info("Successfully connected to Redis", logger.String("host", cfg.RedisHost))
	}
	users := auth.NewAllowlist(tokenStore)
	if err := users.Load(ctx); err != nil {
		return err
	}
	logger.Info("admin allowlist loaded",
		logger.Int("tokens", len(users.Tokens())),
		logger.Bool("persistent", tokenStore != nil))

	keys := auth.NewSystemKeys(cfg.SecretKeys)
	if cfg.SecretKeysFile != "" {
		if err := keys.WatchFile(ctx, cfg.SecretKeysFile); err != nil {
			return err
		}
	}
	if keys.Len() == 0 {
		logger.Warn("no system secrets configured, /add-user and /remove-user will reject every request")
	}
	gate := auth.NewGate(keys, users)

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	prober := audio.NewFFprobe(cfg.FFmpegPath)
	logger.Info("media duration probe", logger.String("ffprobe", prober.Path()))

	pending := playlist.NewPendingDeletions()
	library := media.NewLibrary(repo, store, prober, pending)

	registry := playlist.NewRegistry(playlist.SystemClock)
	defer registry.Close()
	subs := playlist.NewSubscribers()
	dispatch := playlist.NewDispatcher(subs)
	engine := playlist.NewEngine(registry, dispatch, library, pending, playlist.EngineConfig{
		Interval:       cfg.TickInterval,
		StallThreshold: cfg.StallThreshold,
	})
	commands := playlist.NewCommandHandler(registry, subs, dispatch, library, gate)

	items, err := library.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	registry.SeedFromCatalog(items)

	go engine.Run(ctx)

	srv := New(ctx, Options{
		Gate:        gate,
		Library:     library,
		Engine:      engine,
		Store:       store,
		Subscribers: subs,
		Commands:    commands,
		MaxUploadMB: cfg.MaxUploadMB,
	})
	return Listen(ctx, cfg, srv.Router())
}
