package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"nefrit/internal/api"
	"nefrit/internal/api/handlers"
	"nefrit/internal/api/middleware"
	"nefrit/internal/engine/lifecycle"
	"nefrit/internal/engine/xray"
	"nefrit/internal/pkg/logger"
	"nefrit/internal/platform/auth"
	"nefrit/internal/platform/config"
	"nefrit/internal/platform/database"
	"nefrit/internal/platform/repositories"
	"nefrit/internal/workers"
)

func main() {
	configPath := os.Getenv("NEFRIT_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		stdlog.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Repositories
	keyRepo := repositories.NewKeyRepository(db)
	accountRepo := repositories.NewAccountRepository(db)

	// Engine supervision
	generator := xray.NewGenerator(accountRepo, cfg.Xray)
	supervisor := xray.NewSupervisor(generator, cfg.Xray)

	// Services
	lifecycleSvc := lifecycle.NewService(db, keyRepo, accountRepo, supervisor)
	tokenSvc := auth.NewTokenService(cfg.JWT)

	// Handlers
	deps := &api.Dependencies{
		IndexHandler:        handlers.NewIndexHandler(),
		HealthHandler:       handlers.NewHealthHandler(supervisor),
		SubscriptionHandler: handlers.NewSubscriptionHandler(lifecycleSvc, cfg.Subscription, cfg.Xray.TunnelPath),
		TunnelHandler:       handlers.NewTunnelHandler(cfg.Xray, supervisor),
		AuthHandler:         handlers.NewAuthHandler(cfg.Admin, tokenSvc),
		AdminHandler:        handlers.NewAdminHandler(lifecycleSvc, supervisor),
		AuthMiddleware:      middleware.NewAuthMiddleware(tokenSvc),
		TunnelPath:          cfg.Xray.TunnelPath,
	}
	router := api.NewRouter(deps)

	// Bring the engine up with the current active set before serving.
	// A spawn failure is not fatal: the relay answers 503 until a later
	// restart succeeds.
	if err := supervisor.Restart(); err != nil {
		log.Error().Err(err).Msg("initial engine start failed")
	}

	scheduler := workers.NewScheduler(lifecycleSvc, supervisor, cfg.Scheduler.Interval)
	if err := scheduler.Start(); err != nil {
		stdlog.Fatalf("Failed to start scheduler: %v", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			stdlog.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx)

	scheduler.Stop()
	supervisor.Stop()
}
