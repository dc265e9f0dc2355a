package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chronicle/discuss/internal/app"
	"chronicle/discuss/internal/cache"
	"chronicle/discuss/internal/config"
	"chronicle/discuss/internal/logger"
	"chronicle/discuss/internal/notify"
	"chronicle/discuss/internal/search"
	"chronicle/discuss/internal/store"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		log.Fatal("migrations failed", "error", err)
	}
	log.Info("migrations applied", "count", applied, "dir", cfg.MigrationsDir)

	dataStore := store.NewPostgresStore(db)
	service := app.New(cfg, dataStore, log)

	pgfts := search.NewPgFTS(db)
	var index search.Backend
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
		index = meiliClient
	}
	searchService := search.NewService(index, pgfts, log)
	service.UseSearch(searchService)
	if index != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.CacheTTL, log)
		if err != nil {
			log.Fatal("redis connection failed", "error", err)
		}
		defer redisCache.Close()
		service.UseCache(redisCache)
		log.Info("comment list cache enabled", "ttl", cfg.CacheTTL.String())
	}

	mailer := notify.NewSMTPMailer(notify.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		service.UseNotifier(notify.New(dataStore, mailer, cfg.NotifyPerMinute, log))
		log.Info("mention notifications enabled", "smtp_host", cfg.SMTPHost)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("discuss api listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", "error", err)
	}
	service.Wait()
	searchService.Wait()
}
