package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/arl/statsviz"

	"github.com/brensch/tetrecs/logging"
	"github.com/brensch/tetrecs/relay"
)

func main() {
	addr := flag.String("addr", getEnvOrDefault("RELAY_ADDR", ":8080"), "Listen address")
	path := flag.String("path", getEnvOrDefault("RELAY_PATH", "/play"), "Websocket path; players connect to <path>?name=<name>")
	seed := flag.Int64("seed", getEnvInt64OrDefault("RELAY_SEED", 0), "Piece sequence seed (0 = time based)")
	maxPlayers := flag.Int("max-players", getEnvIntOrDefault("RELAY_MAX_PLAYERS", 16), "Maximum players in the channel")
	readTimeout := flag.Duration("read-timeout", getEnvDurationOrDefault("RELAY_READ_TIMEOUT", 2*time.Minute), "Drop players silent for this long")
	logLevel := flag.String("log-level", getEnvOrDefault("RELAY_LOG_LEVEL", "info"), "debug, info, warn or error")
	logFormat := flag.String("log-format", getEnvOrDefault("RELAY_LOG_FORMAT", "pretty"), "pretty, console or json")
	debug := flag.Bool("debug", getEnvBoolOrDefault("RELAY_DEBUG", false), "Serve runtime stats at /debug/statsviz/")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger, err := logging.New(os.Stderr, *logFormat, level)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	slog.SetDefault(logger)

	cfg := relay.DefaultConfig()
	if *seed != 0 {
		cfg.Seed = *seed
	}
	cfg.MaxPlayers = *maxPlayers
	cfg.ReadTimeout = *readTimeout

	srv := relay.NewServer(cfg, logger)
	mux := http.NewServeMux()
	mux.Handle(*path, srv)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	if *debug {
		if err := statsviz.Register(mux); err != nil {
			log.Fatalf("Failed to register statsviz: %v", err)
		}
	}

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Printf("Shutdown requested; closing player connections...")
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	log.Printf("Starting tetrecs relay")
	log.Printf("  Addr: %s%s", *addr, *path)
	log.Printf("  Seed: %d", cfg.Seed)
	log.Printf("  Max Players: %d", cfg.MaxPlayers)
	if *debug {
		log.Printf("  Stats: http://localhost%s/debug/statsviz/", *addr)
	}

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}

	for _, p := range srv.Players() {
		log.Printf("  %-16s score=%d dead=%v pieces=%d", p.Name, p.Score, p.Dead, p.Pieces)
	}
}

// Environment variable helpers
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64OrDefault(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
