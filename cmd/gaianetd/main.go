package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gaianet/quantum-mesh/internal/api"
	"github.com/gaianet/quantum-mesh/internal/bus"
	"github.com/gaianet/quantum-mesh/internal/config"
	"github.com/gaianet/quantum-mesh/internal/history"
	"github.com/gaianet/quantum-mesh/internal/mesh"
	"github.com/gaianet/quantum-mesh/internal/provider"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting quantum mesh daemon...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/gaianet.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Build the network from config tunables.
	opts := mesh.DefaultOptions()
	if cfg.Mesh.DirectLinkRadius > 0 {
		opts.DirectLinkRadius = cfg.Mesh.DirectLinkRadius
	}
	if cfg.Mesh.SmallNetworkSize > 0 {
		opts.SmallNetworkSize = cfg.Mesh.SmallNetworkSize
	}
	if cfg.Mesh.ActivityThreshold > 0 {
		opts.ActivityThreshold = cfg.Mesh.ActivityThreshold
	}
	if cfg.Mesh.TransmissionDelayMS > 0 {
		opts.TransmissionDelay = time.Duration(cfg.Mesh.TransmissionDelayMS) * time.Millisecond
	}
	network := mesh.NewNetwork(opts, logger)

	// Initialize collaborator router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Model: pc.Model, Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAI(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropic(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}

	// Optional event fan-out over Redis Streams
	var eventBus *bus.EventBus
	if cfg.Redis.URL != "" {
		eb, busErr := bus.New(cfg.Redis.URL, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, running without event fan-out", zap.Error(busErr))
		} else {
			eventBus = eb
			network.SetEventHook(func(ev history.Event) {
				if err := eventBus.Publish(context.Background(), ev); err != nil {
					logger.Warn("event publish failed", zap.Error(err))
				}
			})
			logger.Info("Event bus initialized")
		}
	}

	// Build HTTP handler
	handler := api.NewHandler(network, router, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Quantum mesh listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down quantum mesh...")
	srv.Shutdown(context.Background())
	if eventBus != nil {
		eventBus.Close()
	}
}
