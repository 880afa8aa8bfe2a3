// Command sweep runs one digest sweep and exits. It is meant to be invoked
// from cron or a CI scheduler; a distributed lock keeps overlapping runs
// from double-processing the same hour.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/questspace/digest-service/internal/brevo"
	"github.com/questspace/digest-service/internal/config"
	"github.com/questspace/digest-service/internal/content"
	"github.com/questspace/digest-service/internal/dispatch"
	"github.com/questspace/digest-service/internal/pkg/distlock"
	"github.com/questspace/digest-service/internal/render"
	"github.com/questspace/digest-service/internal/repository/postgres"
	"github.com/questspace/digest-service/internal/service/digest"
	"github.com/questspace/digest-service/internal/summary"
)

func main() {
	var (
		force     = flag.Bool("force", false, "bypass schedule and idempotency checks")
		dryRun    = flag.Bool("dry-run", false, "run the full pipeline without sending")
		nowFlag   = flag.String("now", "", "override the sweep time (RFC3339), for testing")
		configArg = flag.String("config", "config/config.yaml", "path to config file")
	)
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configArg)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	opts := digest.SweepOptions{Force: *force, DryRun: *dryRun}
	if *nowFlag != "" {
		t, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			log.Fatalf("Invalid -now value: %v", err)
		}
		opts.Now = t.UTC()
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			redisClient = nil
		}
	}

	ctx := context.Background()

	// One sweep at a time across all hosts. The TTL outlives any sane sweep;
	// a crashed holder frees the lock when it expires.
	lock := distlock.NewLock(redisClient, db, "digest:sweep", 30*time.Minute)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Fatalf("Failed to acquire sweep lock: %v", err)
	}
	if !acquired {
		log.Println("Another sweep is already running, exiting")
		return
	}
	defer lock.Release(ctx)

	repo := postgres.New(db)
	brevoClient := brevo.NewClient(cfg.Brevo.APIKey, cfg.Brevo.BaseURL)
	primary := dispatch.NewBrevoSender(brevoClient, cfg.Sender.Email, cfg.Sender.Name, cfg.Brevo.TemplateID)

	var secondary dispatch.Sender
	if cfg.SES.Enabled {
		if s := dispatch.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region,
			cfg.Sender.Email, cfg.Sender.Name); s != nil {
			secondary = s
		}
	}

	renderer, err := render.NewRenderer(cfg.Digest.AppBaseURL)
	if err != nil {
		log.Fatalf("Failed to build renderer: %v", err)
	}

	svc := digest.NewService(repo,
		dispatch.NewDispatcher(primary, secondary, repo, repo),
		summary.NewEnricher(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model),
		content.NewAssembler(cfg.Digest.AppBaseURL),
		renderer,
		digest.Config{
			MaxRetries:         cfg.Digest.MaxRetries,
			BatchSize:          cfg.Digest.BatchSize,
			DryRun:             cfg.Digest.DryRun,
			InterBatchDelay:    cfg.Digest.InterBatchDelay(),
			PerUserDelay:       cfg.Digest.PerUserDelay(),
			StaleAfter:         cfg.Digest.StaleAfter(),
			UnsubscribeBaseURL: cfg.Digest.UnsubscribeBaseURL,
		})

	result := svc.RunSweep(ctx, opts)

	out, _ := json.MarshalIndent(result, "", "  ")
	os.Stdout.Write(append(out, '\n'))

	if !result.Success {
		os.Exit(1)
	}
}
