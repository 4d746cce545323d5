package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tts/api/internal/app"
	"tts/api/internal/config"
	"tts/api/internal/export"
	"tts/api/internal/library"
	"tts/api/internal/remote"
	"tts/api/internal/search"
	"tts/api/internal/speech"
	"tts/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		remoteStore remote.Store
		fallback    search.Searcher
		checks      = map[string]func(context.Context) error{}
	)

	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Printf("Using in-memory store; data is lost on restart")
		remoteStore = remote.NewMemory()
	case config.BackendPostgres:
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}

		records := store.NewPostgresStore(db)
		checks["database"] = records.Ping
		fallback = search.NewPgFTS(db)

		var notifier remote.Notifier
		if strings.TrimSpace(cfg.RedisURL) != "" {
			log.Printf("Using Redis for change notifications")
			redisNotifier, err := remote.NewRedisNotifier(cfg.RedisURL)
			if err != nil {
				log.Fatalf("redis connection failed: %v", err)
			}
			defer redisNotifier.Close()
			checks["redis"] = redisNotifier.Ping
			notifier = redisNotifier
		} else {
			log.Printf("Using in-process change notifications")
			notifier = remote.NewLocalNotifier()
		}
		remoteStore = remote.NewPostgres(records, notifier)
	default:
		log.Fatalf("unknown store backend %q", cfg.StoreBackend)
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, fallback)

	var archive export.Archiver
	if strings.TrimSpace(cfg.ExportEndpoint) != "" {
		minioArchive, err := export.NewMinioArchive(ctx, export.ArchiveConfig{
			Endpoint:  cfg.ExportEndpoint,
			AccessKey: cfg.ExportAccessKey,
			SecretKey: cfg.ExportSecretKey,
			Bucket:    cfg.ExportBucket,
			UseSSL:    cfg.ExportUseSSL,
		})
		if err != nil {
			log.Printf("WARNING: export archive disabled: %v", err)
		} else {
			archive = minioArchive
		}
	}

	speaker := speech.NewCommand(cfg.SpeechCommand).WithTimeout(cfg.SpeechTimeout)
	if !speaker.Available() {
		log.Printf("WARNING: no speech engine found; speak requests will be refused")
	}

	lib := library.New(remoteStore)
	service := app.New(cfg, lib, speaker, export.NewService(archive), searchService)
	for name, ping := range checks {
		service.AddReadinessCheck(name, ping)
	}

	stop, err := lib.Start(ctx)
	if err != nil {
		log.Fatalf("subscribe failed: %v", err)
	}
	defer stop()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("TTS API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
