package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pharmaguard/core/config"
	"pharmaguard/core/knowledge"
	"pharmaguard/core/logger"
	"pharmaguard/core/repositories"
	"pharmaguard/core/routes"
	"pharmaguard/core/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, warnings, err := config.FromEnvironment()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	gin.SetMode(cfg.Server.Mode)

	ctx := context.Background()

	kb, err := knowledge.Default()
	if err != nil {
		log.Fatalf("knowledge base: %v", err)
	}

	repo, err := openRepo(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	cache := repositories.NewNoopCache()
	if cfg.Redis.Addr != "" {
		cache, err = repositories.NewRedisCache(ctx, repositories.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      time.Duration(cfg.Redis.TTL) * time.Second,
		})
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		log.WithField("addr", cfg.Redis.Addr).Info("result cache enabled")
	}

	var blobs repositories.BlobStore
	if cfg.Upload.Archive {
		blobs, err = openBlobs(ctx, cfg)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
	}

	var explainer services.Explainer
	if cfg.LLM.Enabled {
		explainer = services.NewLLMExplainer(services.LLMOptions{
			BaseURL:           cfg.LLM.BaseURL,
			APIKey:            cfg.LLM.APIKey,
			Model:             cfg.LLM.Model,
			Timeout:           time.Duration(cfg.LLM.Timeout) * time.Second,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		})
		log.WithField("model", cfg.LLM.Model).Info("LLM explanations enabled")
	}

	analyzeSvc := services.NewAnalyzeSvc(services.AnalyzeDeps{
		Knowledge: kb,
		Repo:      repo,
		Cache:     cache,
		Blobs:     blobs,
		Explainer: explainer,
		Log:       log,
		Archive:   cfg.Upload.Archive,
	})

	router := routes.NewApp(log,
		routes.SetupAnalyzeRoutes(analyzeSvc, cfg.Upload.MaxBytes),
		routes.SetupReportRoutes(analyzeSvc),
		routes.SetupSysRoutes(len(kb.Supported)),
	)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "db": cfg.DB.Driver}).Info("PharmaGuard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	log.Info("server stopped")
}

func openRepo(cfg config.Config) (repositories.AnalyzeRepo, error) {
	if cfg.DB.Driver == "memory" {
		return repositories.NewMemAnalyzeRepo(), nil
	}
	db, err := repositories.OpenDB(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	return repositories.NewAnalyzeRepo(db)
}

func openBlobs(ctx context.Context, cfg config.Config) (repositories.BlobStore, error) {
	if cfg.Storage.Driver == "minio" {
		m := cfg.Storage.Minio
		return repositories.NewMinioBlobStore(ctx, repositories.MinioOptions{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			Bucket:    m.Bucket,
			Secure:    m.Secure,
		})
	}
	return repositories.NewLocalBlobStore(cfg.Storage.Dir)
}
