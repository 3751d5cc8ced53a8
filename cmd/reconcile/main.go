package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"ledgerpos/backend/internal/cache"
	"ledgerpos/backend/internal/config"
	"ledgerpos/backend/internal/logging"
	"ledgerpos/backend/internal/service"
	"ledgerpos/backend/internal/store"
	pgstore "ledgerpos/backend/internal/store/postgres"
	"ledgerpos/backend/internal/writelock"
)

// Exit codes: 0 clean or fixed, 1 failure, 2 drift found without -fix.
const exitDrift = 2

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	fix := flag.Bool("fix", false, "rewrite stored stock hints and customer totals from the logs")
	installation := flag.String("installation", cfg.InstallationID, "installation id to check")
	flag.Parse()

	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repo, err := pgstore.New(ctx, cfg.DatabaseURL, *installation)
	if err != nil {
		logger.WithError(err).Error("open postgres")
		os.Exit(1)
	}
	defer repo.Close()

	opts := service.Options{Logger: logger, InstallationID: *installation}
	if cfg.RedisAddr != "" {
		// A running server shares the ledger, so fixes take its writer lock.
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer client.Close()
		opts.Locker = writelock.NewRedis(client, *installation, time.Duration(cfg.WriteLockTTLSeconds)*time.Second)
	}

	code, err := run(ctx, repo, opts, *fix, os.Stdout)
	if err != nil {
		logger.WithError(err).Error("reconcile failed")
		os.Exit(1)
	}
	os.Exit(code)
}

func run(ctx context.Context, repo store.Repository, opts service.Options, fix bool, out io.Writer) (int, error) {
	svc, err := service.New(ctx, repo, opts)
	if err != nil {
		return 1, err
	}

	report, err := svc.Reconcile(ctx, fix)
	if err != nil {
		return 1, err
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return 1, err
	}
	if _, err := fmt.Fprintln(out, string(body)); err != nil {
		return 1, err
	}

	if report.HasDrift() && !fix {
		return exitDrift, nil
	}
	return 0, nil
}
