package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/narrio/narrio/internal/api"
	"github.com/narrio/narrio/internal/auth"
	"github.com/narrio/narrio/internal/book"
	"github.com/narrio/narrio/internal/config"
	"github.com/narrio/narrio/internal/health"
	"github.com/narrio/narrio/internal/job"
	"github.com/narrio/narrio/internal/orchestrator"
	"github.com/narrio/narrio/internal/provider"
	"github.com/narrio/narrio/internal/storage"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting Narrio Server v%s", version)
	log.Printf("Configuration loaded from: %s", *configPath)

	storageAdapter, err := storage.NewAdapter(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to create storage adapter: %v", err)
	}
	defer storageAdapter.Close()
	log.Printf("Storage adapter initialized: %s", cfg.Storage.Adapter)

	providerRegistry := provider.NewRegistry()
	if err := providerRegistry.InitializeProviders(cfg.TTS); err != nil {
		log.Fatalf("Failed to initialize TTS providers: %v", err)
	}
	defer providerRegistry.Close()
	log.Printf("TTS providers initialized: %v", providerRegistry.ListTTS())

	jobRegistry := job.NewRegistry()
	bookRegistry := book.NewRegistry(storageAdapter)

	orch, err := orchestrator.New(cfg, storageAdapter, jobRegistry, bookRegistry, providerRegistry)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}
	log.Printf("Orchestrator initialized (%d concurrent chapters)", cfg.Conversion.MaxConcurrentChapters)

	healthHandler := health.NewHandler(version)
	healthHandler.Register("storage", func(ctx context.Context) (health.Status, error) {
		if _, err := storageAdapter.Exists(ctx, ".healthcheck"); err != nil {
			return health.StatusUnhealthy, err
		}
		return health.StatusHealthy, nil
	})
	healthHandler.Register("tts", func(ctx context.Context) (health.Status, error) {
		if len(providerRegistry.ListTTS()) == 0 {
			return health.StatusDegraded, fmt.Errorf("no TTS providers registered")
		}
		return health.StatusHealthy, nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", healthHandler.LivenessHandler())
	mux.HandleFunc("/health/ready", healthHandler.ReadinessHandler())

	apiHandler := api.NewHandler(cfg, orch, jobRegistry, auth.NewHeaderProvider())
	apiHandler.Register(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
