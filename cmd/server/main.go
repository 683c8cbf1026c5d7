package main

import (
	"context"

	"github.com/XANDER-CAGE/dating/internal/api"
	"github.com/XANDER-CAGE/dating/internal/app"
	"github.com/XANDER-CAGE/dating/internal/cache"
	"github.com/XANDER-CAGE/dating/internal/config"
	"github.com/XANDER-CAGE/dating/internal/db"
	"github.com/XANDER-CAGE/dating/internal/logger"
	"github.com/XANDER-CAGE/dating/internal/presence"
	"github.com/XANDER-CAGE/dating/internal/realtime"
	"github.com/XANDER-CAGE/dating/internal/server"
	"github.com/XANDER-CAGE/dating/internal/service/discovery"
	"github.com/XANDER-CAGE/dating/internal/service/matchmaking"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	// Inject logger into app context
	appCtx := app.New(cfg, database, redisCache, log)

	// Presence + fan-out: the hub owns local connections, the registry
	// mirrors them into the shared table, the broker routes events.
	hub := realtime.NewHub(log)
	registry := presence.NewRegistry(redisCache, cfg.App.ProcessID, cfg.Matchmaking.PresenceTTL)
	broker := realtime.NewBroker(redisCache, hub, log,
		cfg.Matchmaking.EventChannel, cfg.Matchmaking.TypingChannel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broker.Run(ctx)

	discoveryService := discovery.NewService(appCtx)
	matchmakingService := matchmaking.NewService(appCtx, broker)

	registrars := []server.Registrar{
		api.NewHandler(appCtx, discoveryService, matchmakingService, hub, registry),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr, "process_id", cfg.App.ProcessID)

	if err := server.StartHTTPServer(cfg, registrars...); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
