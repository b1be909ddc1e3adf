package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/josuedeavila/productbg/config"
	"github.com/josuedeavila/productbg/handler"
	"github.com/josuedeavila/productbg/service"
	"github.com/josuedeavila/productbg/utils"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	configPath := os.Getenv("PRODUCTBG_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.New(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting productbg server",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
		zap.String("preset", cfg.Preset),
		zap.String("backend", cfg.Model.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remover := service.LoadRemover(ctx, &cfg.Model)
	defer func() {
		if err := remover.Close(); err != nil {
			utils.Logger.Warn("failed to close segmenter", zap.Error(err))
		}
	}()

	var cache service.ResultCache = service.NopCache{}
	if cfg.Redis.Enabled {
		redisCache := service.NewRedisCache(&cfg.Redis)
		if err := redisCache.Ping(ctx); err != nil {
			utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
			_ = redisCache.Close()
		} else {
			utils.Logger.Info("redis connected successfully")
			cache = redisCache
		}
	}
	defer cache.Close()

	pipeline := service.PipelineFromConfig(cfg, remover)
	products := service.NewProductService(pipeline, cache, remover.Model())

	gin.SetMode(cfg.Server.Mode)
	router := handler.NewRouter(handler.NewRemoveHandler(products, cfg.Upload.MaxSize))

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		utils.Logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	utils.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
