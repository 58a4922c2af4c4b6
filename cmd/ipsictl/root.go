package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/runixer/ipsi/internal/app"
	"github.com/runixer/ipsi/internal/config"
	"github.com/runixer/ipsi/internal/i18n"
	"github.com/runixer/ipsi/internal/openrouter"
	"github.com/runixer/ipsi/internal/storage"
	"github.com/spf13/cobra"
)

const defaultConfigSubPath = "configs/config.yaml"

// annotationOffline marks commands that never call the reasoning service.
const annotationOffline = "ipsictl/offline"

type contextKey int

const (
	clientKey contextKey = iota
	configKey
)

// ctlClient holds the services a command works against.
type ctlClient struct {
	logger   *slog.Logger
	cfg      *config.Config
	store    *storage.SQLiteStore
	services *app.Services
}

var rootCmd = &cobra.Command{
	Use:   "ipsictl",
	Short: "CLI tool for the ipsi admissions advisor",
	Long: `ipsictl runs the advisor pipeline against a local record database without
starting the HTTP server. It lists the selectable options, asks one-off
questions and classifies scores against a cutoff.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadForCommand(cmd)
		if err != nil {
			return err
		}
		if needsLLM(cmd) && cfg.OpenRouter.APIKey == "" {
			return fmt.Errorf("IPSI_OPENROUTER_API_KEY not set in config/env")
		}

		c, err := setupClient(cmd.Context(), cfg, logger, mustGetString(cmd, "db"))
		if err != nil {
			return fmt.Errorf("failed to setup ipsictl: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), clientKey, c)
		ctx = context.WithValue(ctx, configKey, cfg)
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if c := getClient(cmd); c != nil {
			if err := c.close(); err != nil {
				return fmt.Errorf("failed to close ipsictl: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: auto-detect)")
	rootCmd.PersistentFlags().String("db", "", "Database path (default: from config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose debug output (shows all logs)")
}

// needsLLM reports whether cmd talks to OpenRouter and so needs an API key.
func needsLLM(cmd *cobra.Command) bool {
	return cmd.Annotations[annotationOffline] != "true"
}

// loadForCommand resolves .env, config and logger from the persistent flags.
func loadForCommand(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfgFile := mustGetString(cmd, "config")

	if err := app.LoadEnv(); err != nil {
		if cfgFile != "" {
			return nil, nil, fmt.Errorf("failed to load .env: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	path, err := findConfigPath(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find config: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	var out io.Writer = io.Discard
	if mustGetBool(cmd, "verbose") {
		out = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return cfg, logger, nil
}

func setupClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, dbPath string) (*ctlClient, error) {
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	// One-off commands read the corpus once.
	cfg.Catalog.RefreshInterval = ""

	c := &ctlClient{logger: logger, cfg: cfg}

	var success bool
	defer func() {
		if !success {
			_ = c.close()
		}
	}()

	var err error
	c.store, err = storage.NewSQLiteStore(logger, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := c.store.Init(); err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	translator, err := i18n.NewTranslator(cfg.Advisor.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to create translator: %w", err)
	}

	client, err := openrouter.NewClientWithBaseURL(logger, cfg.OpenRouter.APIKey, cfg.OpenRouter.ProxyURL, cfg.OpenRouter.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenRouter client: %w", err)
	}

	c.services, err = app.SetupServices(ctx, logger, cfg, c.store, client, translator)
	if err != nil {
		return nil, fmt.Errorf("failed to setup services: %w", err)
	}

	// Load the index without starting the reload loop.
	if err := c.services.Engine.ReloadVectors(ctx); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	success = true
	return c, nil
}

func (c *ctlClient) close() error {
	var errs []error
	if c.services != nil {
		if err := c.services.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("services.Stop: %w", err))
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store.Close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func getClient(cmd *cobra.Command) *ctlClient {
	if c := cmd.Context().Value(clientKey); c != nil {
		return c.(*ctlClient)
	}
	return nil
}

// findConfigPath resolves the config file path.
// Searches in order: provided path, CWD/configs/config.yaml, then defaults.
func findConfigPath(providedPath string) (string, error) {
	if providedPath != "" {
		if _, err := os.Stat(providedPath); err == nil {
			return providedPath, nil
		}
		return "", fmt.Errorf("config file not found: %s", providedPath)
	}

	if _, err := os.Stat(defaultConfigSubPath); err == nil {
		return defaultConfigSubPath, nil
	}
	return "", nil
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// mustGetString retrieves a string flag value. Panics on error (indicates bug in flag name).
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("bug: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetFloat retrieves a float64 flag value. Panics on error (indicates bug in flag name).
func mustGetFloat(cmd *cobra.Command, name string) float64 {
	val, err := cmd.Flags().GetFloat64(name)
	if err != nil {
		panic(fmt.Sprintf("bug: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetBool retrieves a bool flag value. Panics on error (indicates bug in flag name).
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("bug: failed to get flag %q: %v", name, err))
	}
	return val
}
