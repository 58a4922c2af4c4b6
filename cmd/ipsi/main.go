package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/runixer/ipsi/internal/app"
	"github.com/runixer/ipsi/internal/config"
	"github.com/runixer/ipsi/internal/i18n"
	"github.com/runixer/ipsi/internal/openrouter"
	"github.com/runixer/ipsi/internal/storage"
	"github.com/runixer/ipsi/internal/web"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var Version = "dev"

var buildInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "ipsi",
		Name:      "build_info",
		Help:      "Build information with version and Go runtime details",
	},
	[]string{"version", "go_version"},
)

func init() {
	buildInfo.WithLabelValues(Version, runtime.Version()).Set(1)
}

func runHealthcheck(configPath string) int {
	// A broken config should not hide a running server, so fall back to the
	// env var and then the default port.
	cfg, err := config.Load(configPath)
	port := "9081"
	if err == nil && cfg.Server.ListenPort != "" {
		port = cfg.Server.ListenPort
	} else if envPort := os.Getenv("IPSI_SERVER_PORT"); envPort != "" {
		port = envPort
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Healthcheck returned status: %d\n", resp.StatusCode)
		return 1
	}
	return 0
}

func main() {
	// JSON logging at INFO until the configured level is known.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := app.LoadEnv(); err != nil {
		slog.Warn("failed to load .env, relying on environment variables", "error", err)
	}

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	healthcheck := flag.Bool("healthcheck", false, "run healthcheck and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("ipsi", Version)
		os.Exit(0)
	}

	if *healthcheck {
		os.Exit(runHealthcheck(*configPath))
	}

	if err := run(*configPath); err != nil {
		slog.Error("ipsi exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		slog.Warn("unknown log level, defaulting to info", "level", cfg.Log.Level)
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	logger.Info("Config loaded successfully",
		"institution_field", cfg.Corpus.InstitutionField,
		"track_field", cfg.Corpus.TrackField,
	)

	if cfg.Advisor.Language == "" {
		cfg.Advisor.Language = "ko"
		logger.Warn("Language not specified in config, defaulting to 'ko'")
	}

	store, err := storage.NewSQLiteStore(logger, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("Database initialized successfully.")

	client, err := openrouter.NewClientWithBaseURL(logger, cfg.OpenRouter.APIKey, cfg.OpenRouter.ProxyURL, cfg.OpenRouter.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to create openrouter client: %w", err)
	}

	translator, err := i18n.NewTranslator(cfg.Advisor.Language)
	if err != nil {
		return fmt.Errorf("failed to initialize translator: %w", err)
	}
	logger.Info("Translator initialized", "default_lang", cfg.Advisor.Language)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	services, err := app.SetupServices(ctx, logger, cfg, store, client, translator)
	if err != nil {
		return err
	}
	defer func() {
		if err := services.Stop(); err != nil {
			logger.Warn("failed to stop services cleanly", "error", err)
		}
	}()

	if err := services.Start(ctx); err != nil {
		return err
	}

	deps := web.Deps{
		Advisor: services.Advisor,
		Catalog: services.Catalog,
		Storage: store,
	}
	if services.Transcriber != nil {
		deps.Transcriber = services.Transcriber
	}
	server := web.NewServer(logger, cfg, deps)

	logger.Info("Starting ipsi", "version", Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})

	err = g.Wait()
	logger.Info("Shutting down...")
	if checkpointErr := store.Checkpoint(); checkpointErr != nil {
		logger.Warn("failed to checkpoint database", "error", checkpointErr)
	}
	return err
}
