package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wardrobe/internal/adapter/repo"
	"wardrobe/internal/domain"
	httpapi "wardrobe/internal/http"
	"wardrobe/internal/http/handlers"
	"wardrobe/internal/infra"
	"wardrobe/internal/pipeline"
	"wardrobe/internal/providers/stage"
	"wardrobe/internal/storage"
	"wardrobe/internal/wardrobe"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	startedAt := time.Now()

	ctx := context.Background()
	var store domain.ClothingRepository
	switch cfg.StoreDriver {
	case infra.StoreDriverMemory:
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		store = repo.NewMemoryClothesRepository()
	default:
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		store = repo.NewClothesRepository(infra.NewSQLRunner(dbpool, logger))
	}

	if cfg.RecoverySweep {
		sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if _, err := pipeline.Sweep(sweepCtx, store, startedAt, logger); err != nil {
			logger.Error().Err(err).Msg("recovery sweep failed")
		}
		cancel()
	}

	scratch, err := storage.NewFileStore(cfg.ScratchDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare scratch directory")
	}
	enhancer, remover, err := stage.FromConfig(cfg, scratch, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure stages")
	}

	engine := pipeline.NewEngine(store, enhancer, remover, pipeline.Options{
		Workers:      cfg.WorkerPoolSize,
		QueueSize:    cfg.QueueSize,
		StageTimeout: cfg.AdapterTimeout,
		BatchPacing:  cfg.BatchPacing,
	}, logger)

	svc := wardrobe.NewService(store, engine, cfg.MaxBatchSize, logger)
	app := handlers.NewApp(svc, engine, logger, cfg.MaxUploadBytes)
	router := httpapi.NewRouter(app, httpapi.RouterConfig{
		TokenSecret:      cfg.TokenSecret,
		TokenIssuer:      cfg.TokenIssuer,
		CORSOrigins:      cfg.CORSOrigins,
		UploadRatePerMin: cfg.UploadRatePerMin,
		Logger:           logger,
	})

	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("store", cfg.StoreDriver).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pipeline did not drain before deadline")
	}
	logger.Info().Msg("server stopped")
}
