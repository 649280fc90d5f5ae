package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zapdesk/zapdesk/pkg/api"
	"github.com/zapdesk/zapdesk/pkg/auth"
	"github.com/zapdesk/zapdesk/pkg/config"
	"github.com/zapdesk/zapdesk/pkg/directory"
	"github.com/zapdesk/zapdesk/pkg/imagecache"
	"github.com/zapdesk/zapdesk/pkg/logger"
	"github.com/zapdesk/zapdesk/pkg/relay"
	"github.com/zapdesk/zapdesk/pkg/session"
	"github.com/zapdesk/zapdesk/pkg/store"
	"github.com/zapdesk/zapdesk/pkg/wa"
	"github.com/zapdesk/zapdesk/pkg/wa/stubclient"
)

func main() {
	// Env vars override anything loaded from .env.
	_ = godotenv.Load(".env")

	cfgPath := os.Getenv("ZAPDESK_CONFIG")
	if cfgPath == "" {
		cfgPath = "zapdesk.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.ErrorCF("main", "Configuration failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogJSON {
		logger.SetJSON()
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.ErrorCF("main", "Database failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer db.Close()

	images, err := imagecache.New(cfg.Cache.Dir)
	if err != nil {
		logger.ErrorCF("main", "Image cache failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	users := store.NewUserRepo(db)
	cards := store.NewCardRepo(db)
	jwtSvc := auth.NewJWTService(cfg.JWTSecret)
	authSvc := auth.NewService(users, jwtSvc)

	bus := relay.NewBus()

	// The production build swaps this factory for the real automation
	// client; the loopback stub pairs instantly and echoes sends.
	factory := wa.Factory(func() (wa.Client, error) {
		return stubclient.New(stubclient.Options{
			Contacts: []wa.RawContact{
				{ID: "5511999990001@c.us", Name: "Dev Contact", Number: "551199999001"},
				{ID: "5511999990002@c.us", PushName: "Segundo", Number: "551199999002"},
			},
		}), nil
	})

	manager := session.NewManager(factory, bus, session.Options{
		ReconnectOnDrop: cfg.Session.ReconnectOnDrop,
		LookbackWindow:  cfg.Session.LookbackWindow,
	})

	dir := directory.New(manager, images, wa.NumberScheme{
		Prefix: cfg.Session.CountryPrefix,
		Length: cfg.Session.NumberLength,
	}, cfg.Session.EnrichWorkers)

	hub := api.NewWSHub(bus, manager, cfg.AllowedOrigin)
	server := api.NewServer(cfg, manager, dir, images, authSvc, jwtSvc, cards, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go images.PruneLoop(ctx, cfg.Cache.PruneSchedule, cfg.Cache.MaxAge)

	// The client starts before any transport exists; the relay bus buffers
	// the QR until the first WebSocket client attaches.
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := manager.Initialize(initCtx); err != nil {
		logger.WarnCF("main", "Initial session start failed, waiting for regenerate", map[string]interface{}{
			"error": err.Error(),
		})
	}
	cancel()

	if err := server.Start(); err != nil {
		logger.ErrorCF("main", "Server failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	<-ctx.Done()
	logger.InfoC("main", "Shutting down")

	if err := server.Stop(); err != nil {
		logger.WarnCF("main", "Server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	manager.Close()
}
