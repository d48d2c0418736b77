package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/rbradshaw9/webinar-funnel-builder/internal/analytics"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/api"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/auth"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/config"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/generator"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/register"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/repository/postgres"
	"github.com/rbradshaw9/webinar-funnel-builder/internal/widget"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Webinar Funnel Builder server starting")

	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	// Pre-flight check: verify the target port is available
	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", cfg.Server.Port)

	// Postgres
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database unreachable: %v", err)
	}
	pingCancel()

	if err := postgres.EnsureSchema(context.Background(), db); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	log.Println("Database connected and schema ensured")

	funnelRepo := postgres.NewFunnelRepo(db)
	submissionRepo := postgres.NewSubmissionRepo(db)

	// Redis counters
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis unreachable at %s: %v", cfg.Redis.Addr, err)
	}
	counter := analytics.NewCounter(rdb)

	flusher := analytics.NewFlusher(counter, funnelRepo)
	flusher.SetInterval(cfg.Analytics.FlushInterval())
	if err := flusher.Start(); err != nil {
		log.Fatalf("Failed to start analytics flusher: %v", err)
	}
	log.Printf("Analytics flusher started (interval %s)", cfg.Analytics.FlushInterval())

	// Origin clients
	widgetClient := widget.NewClient(cfg.WebinarFuel.BaseURL, cfg.WebinarFuel.BearerToken).
		SetTimeout(cfg.WebinarFuel.Timeout())
	registrar := register.NewService(widgetClient)

	// Page generation providers: Anthropic API first, Bedrock as fallback
	var providers []generator.Provider
	if cfg.AI.AnthropicAPIKey != "" {
		providers = append(providers, generator.NewAnthropicProvider(cfg.AI.AnthropicAPIKey, cfg.AI.AnthropicModel))
		log.Printf("Anthropic provider configured (model %s)", cfg.AI.AnthropicModel)
	}
	if cfg.AI.BedrockEnabled {
		bp, err := generator.NewBedrockProvider(context.Background(), cfg.AI.BedrockModelID, cfg.AI.BedrockRegion)
		if err != nil {
			log.Printf("Bedrock provider unavailable: %v", err)
		} else {
			providers = append(providers, bp)
			log.Printf("Bedrock provider configured (model %s, region %s)", cfg.AI.BedrockModelID, cfg.AI.BedrockRegion)
		}
	}
	gen, err := generator.NewService(providers...)
	if err != nil {
		log.Fatalf("Page generation unavailable: %v", err)
	}
	gen.SetMaxTokens(cfg.AI.MaxTokens)

	// Authentication
	var authManager *auth.Manager
	if cfg.Auth.Enabled && cfg.Auth.GoogleClientID != "" {
		baseURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
		if envURL := os.Getenv("AUTH_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
		authManager = auth.NewManager(&cfg.Auth, baseURL)
		authManager.CleanupExpiredSessions()
		log.Printf("Google OAuth enabled for domain: %s (callback: %s/auth/callback)", cfg.Auth.AllowedDomain, baseURL)
	} else {
		log.Println("WARNING: auth disabled, admin API is unprotected")
	}

	handlers := api.NewHandlers(funnelRepo, submissionRepo, counter, registrar, gen)
	handlers.SetWidgetAPI(widgetClient)
	server := api.NewServer(handlers, authManager)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	// Stop the flusher first so pending counters reach postgres.
	flusher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if err := rdb.Close(); err != nil {
		log.Printf("Redis close error: %v", err)
	}
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Server stopped")
}
