package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/parrot/internal/cli"
	"horse.fit/parrot/internal/config"
	"horse.fit/parrot/internal/db"
	"horse.fit/parrot/internal/httpapi"
	"horse.fit/parrot/internal/langdetect"
	"horse.fit/parrot/internal/logging"
	"horse.fit/parrot/internal/receipt"
	"horse.fit/parrot/internal/speech"
	"horse.fit/parrot/internal/translation"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8080, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 120*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
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

	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	pool, err := db.NewPool(dbCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	registry := translation.NewRegistryFromEnv()

	var synthesizer translation.Synthesizer
	if speechSynth, speechErr := speech.NewOpenAISynthesizer(cfg); speechErr != nil {
		logger.Warn().Err(speechErr).Msg("speech synthesis disabled")
	} else {
		synthesizer = speechSynth
	}

	receipts, err := receipt.NewGenerator(cfg.ReceiptDir)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to prepare receipt directory")
		fmt.Fprintf(os.Stderr, "Failed to prepare receipt directory: %v\n", err)
		return 1
	}

	orchestrator := translation.NewOrchestrator(
		pool,
		registry,
		synthesizer,
		langdetect.DetectISO6391,
		logger,
		time.Duration(cfg.ProviderTimeoutSeconds)*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	srv := httpapi.NewServer(pool, logger, orchestrator, registry, receipts, httpapi.Options{
		Host:              *host,
		Port:              *port,
		ReadTimeout:       *readTimeout,
		WriteTimeout:      *writeTimeout,
		ShutdownTimeout:   *shutdownTimeout,
		SessionCookie:     cfg.SessionCookieName,
		SessionSecure:     cfg.SessionCookieSecure,
		SessionTTL:        time.Duration(cfg.SessionTTLHours) * time.Hour,
		DefaultQuotaLimit: cfg.DefaultQuotaLimit,
		AudioDir:          cfg.AudioDir,
		ReceiptDir:        cfg.ReceiptDir,
		CORSOrigins:       cfg.CORSAllowedOriginsList(),
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
