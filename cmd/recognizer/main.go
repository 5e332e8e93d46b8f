// Command recognizer serves the fingerprint library over HTTP so monitors
// can use it as their remote recognition backend.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/himanishpuri/muzak/internal/config"
	"github.com/himanishpuri/muzak/internal/service"
	"github.com/himanishpuri/muzak/pkg/logger"
)

var (
	port    int
	dbPath  string
	tempDir string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault(config.EnvDBPath, config.DefaultDBPath), "Path to SQLite database")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("MUZAK_TEMP_DIR", os.TempDir()), "Directory for uploaded samples")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	svc, err := service.NewLibraryService(dbPath, 0)
	if err != nil {
		log.Fatalf("Failed to open library: %v", err)
	}
	defer svc.Close()

	server := NewServer(svc, &ServerConfig{Port: port, DBPath: dbPath, TempDir: tempDir})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Server failed: %v", err)
		os.Exit(1)
	}
	log.Infof("Server stopped")
}

// shutdownTimeout bounds in-flight requests on exit.
const shutdownTimeout = 10 * time.Second
