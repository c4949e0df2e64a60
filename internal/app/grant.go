package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/parrot/internal/cli"
	"horse.fit/parrot/internal/config"
	"horse.fit/parrot/internal/db"
	"horse.fit/parrot/internal/logging"
)

// runGrant raises a user's translation quota limit from the command line.
func runGrant(args []string) int {
	fs := flag.NewFlagSet("grant", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	credits := fs.Int("credits", 5, "Number of translation credits to grant")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: parrot grant [flags] <email>")
		return 2
	}
	email := fs.Arg(0)

	if *credits < 1 {
		fmt.Fprintln(os.Stderr, "--credits must be >= 1")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("grant failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	user, err := pool.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			fmt.Fprintf(os.Stderr, "No user registered with email %q\n", email)
			return 1
		}
		logger.Error().Err(err).Str("email", email).Msg("grant user lookup failed")
		fmt.Fprintf(os.Stderr, "User lookup failed: %v\n", err)
		return 1
	}

	if _, err := pool.EnsureQuota(ctx, user.UserID, cfg.DefaultQuotaLimit); err != nil {
		logger.Error().Err(err).Int64("user_id", user.UserID).Msg("grant ensure quota failed")
		fmt.Fprintf(os.Stderr, "Failed to prepare quota: %v\n", err)
		return 1
	}

	quota, err := pool.GrantQuota(ctx, user.UserID, *credits)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", user.UserID).Msg("grant quota failed")
		fmt.Fprintf(os.Stderr, "Failed to grant credits: %v\n", err)
		return 1
	}

	fmt.Printf("Granted %d credits to %s (used %d of %d)\n", *credits, user.Email, quota.QuotaUsed, quota.QuotaLimit)
	return 0
}
