package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/questspace/digest-service/internal/api"
	"github.com/questspace/digest-service/internal/brevo"
	"github.com/questspace/digest-service/internal/config"
	"github.com/questspace/digest-service/internal/content"
	"github.com/questspace/digest-service/internal/dispatch"
	"github.com/questspace/digest-service/internal/render"
	"github.com/questspace/digest-service/internal/repository/postgres"
	"github.com/questspace/digest-service/internal/service/digest"
	"github.com/questspace/digest-service/internal/summary"
	"github.com/questspace/digest-service/internal/webhook"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use: %v", port, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Starting digest service...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Redis is optional: it backs webhook rate limiting. Without it the
	// limiter fails open.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unavailable, continuing without it: %v", err)
			redisClient = nil
		} else {
			log.Println("Connected to Redis")
		}
	}

	repo := postgres.New(db)

	brevoClient := brevo.NewClient(cfg.Brevo.APIKey, cfg.Brevo.BaseURL)
	primary := dispatch.NewBrevoSender(brevoClient, cfg.Sender.Email, cfg.Sender.Name, cfg.Brevo.TemplateID)

	var secondary dispatch.Sender
	if cfg.SES.Enabled {
		if s := dispatch.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region,
			cfg.Sender.Email, cfg.Sender.Name); s != nil {
			secondary = s
			log.Println("SES fallback sender enabled")
		}
	}

	dispatcher := dispatch.NewDispatcher(primary, secondary, repo, repo)
	enricher := summary.NewEnricher(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	assembler := content.NewAssembler(cfg.Digest.AppBaseURL)

	renderer, err := render.NewRenderer(cfg.Digest.AppBaseURL)
	if err != nil {
		log.Fatalf("Failed to build renderer: %v", err)
	}

	svc := digest.NewService(repo, dispatcher, enricher, assembler, renderer, digest.Config{
		MaxRetries:         cfg.Digest.MaxRetries,
		BatchSize:          cfg.Digest.BatchSize,
		DryRun:             cfg.Digest.DryRun,
		InterBatchDelay:    cfg.Digest.InterBatchDelay(),
		PerUserDelay:       cfg.Digest.PerUserDelay(),
		StaleAfter:         cfg.Digest.StaleAfter(),
		UnsubscribeBaseURL: cfg.Digest.UnsubscribeBaseURL,
	})

	ingestor := webhook.NewIngestor(repo)
	limiter := webhook.NewRateLimiter(redisClient, cfg.Webhook.RateLimitPerMin, time.Minute)

	handlers := api.NewHandlers(svc, ingestor, limiter, cfg.Webhook.Secret, cfg.Cron.Secret)
	server := api.NewServer(cfg.Server, handlers)

	addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
	go func() {
		log.Printf("Listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
