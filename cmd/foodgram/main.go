package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"foodgram/internal/amqp"
	"foodgram/internal/auth"
	"foodgram/internal/cache"
	"foodgram/internal/cli"
	apphttp "foodgram/internal/http"
	applog "foodgram/internal/log"
	"foodgram/internal/media"
	"foodgram/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	mediaStore, err := media.NewStore(ctx, media.Config{
		Backend:     media.BackendType(cfg.MediaBackend),
		Dir:         cfg.MediaDir,
		BaseURL:     cfg.MediaURL,
		S3Bucket:    cfg.S3Bucket,
		S3Region:    cfg.S3Region,
		S3Endpoint:  cfg.S3Endpoint,
		S3PathStyle: cfg.S3PathStyle,
	}, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize media store", applog.FieldError, err)
		os.Exit(1)
	}
	var mediaRoot string
	if fs, ok := mediaStore.(*media.FSStore); ok {
		mediaRoot = fs.Root()
	}

	// Events are optional. Without a broker no notifications are fanned out
	// and the export endpoint answers 503.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	catalog := services.NewCatalogService(repo, cfg.CacheTTL)

	cacheManager := cache.NewManager(logger.Logger)
	for _, c := range catalog.Caches() {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	janitor := services.NewTokenJanitor(repo, time.Hour)
	if err := janitor.Start(ctx); err != nil {
		logger.Error("Failed to start token janitor", applog.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		BaseURL:            cfg.BaseURL,
		PageSize:           cfg.PageSize,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPM:       cfg.RateLimitRPM,
		MediaRoot:          mediaRoot,
	}, apphttp.Deps{
		Users:         services.NewUserService(repo, repo, tokens, mediaStore),
		Recipes:       services.NewRecipeService(repo, mediaStore, publisher),
		Catalog:       catalog,
		ShoppingLists: services.NewShoppingListService(repo, publisher),
		Notifications: services.NewNotificationService(repo, repo),
		Media:         mediaStore,
		DB:            repo,
		Logger:        logger,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := janitor.Stop(shutdownCtx); err != nil {
			logger.Warn("Token janitor stop error", applog.FieldError, err)
		}
	}()

	logger.Info("Starting foodgram server", "port", cfg.Port, "media_backend", cfg.MediaBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
