// Package main provides the entry point for the file server.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/ajaxzhan/fileserver/internal/config"
	"github.com/ajaxzhan/fileserver/internal/logging"
	"github.com/ajaxzhan/fileserver/internal/sentryx"
	"github.com/ajaxzhan/fileserver/internal/server"
	"github.com/ajaxzhan/fileserver/internal/storage"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to configuration file (YAML)")
	grpcAddr := flag.String("grpc-addr", "", "gRPC server address (overrides config)")
	httpAddr := flag.String("http-addr", "", "HTTP gateway address (overrides config)")
	dataDir := flag.String("data-dir", "", "Data root directory (overrides config)")
	backend := flag.String("backend", "", "Storage backend: disk, memory (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Failed to apply environment: %v", err)
	}

	// Apply command-line overrides
	if *grpcAddr != "" {
		cfg.Server.GRPCAddr = *grpcAddr
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
	}

	// Initialize logging system
	if err := logging.Init(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Sync()

	if err := sentryx.Init(cfg.Server.Name, cfg.Sentry.DSN, cfg.Sentry.Environment); err != nil {
		logging.Warn("Error reporting disabled", logging.Err(err))
	}
	defer sentryx.Flush(2 * time.Second)

	if cfg.Storage.DataDir != "" && !filepath.IsAbs(cfg.Storage.DataDir) {
		abs, err := filepath.Abs(cfg.Storage.DataDir)
		if err != nil {
			logging.Fatal("Failed to resolve data directory", logging.Err(err))
		}
		cfg.Storage.DataDir = abs
	}

	if err := config.Validate(cfg); err != nil {
		logging.Fatal("Invalid configuration", logging.Err(err))
	}

	if cfg.Storage.Backend == storage.BackendDisk {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
			logging.Fatal("Failed to create data directory", logging.Err(err))
		}
	}

	logging.Info("Starting file server...",
		logging.String("grpc_addr", cfg.Server.GRPCAddr),
		logging.String("http_addr", cfg.Server.HTTPAddr),
		logging.String("backend", cfg.Storage.Backend),
		logging.Int("ownership_shards", cfg.Ownership.Shards),
	)

	host := server.NewHost(server.HostOptionsFromConfig(cfg))
	if err := host.Start(cfg.Server.Name, cfg.Properties(), flag.Args()); err != nil {
		sentryx.CaptureError(err, "file service start")
		sentryx.Flush(2 * time.Second)
		if server.IsMisuse(err) {
			logging.Fatal("Internal misuse during startup", logging.Err(err))
		}
		logging.Fatal("Failed to start server", logging.Err(err))
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Infof("Received signal %v, shutting down server...", sig)
	case err := <-host.Err():
		logging.Error("Server failed", logging.Err(err))
		sentryx.CaptureError(err, "server listen error")
	}

	if err := host.Stop(); err != nil {
		logging.Warnf("Shutdown error: %v", err)
	}
}
