package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/runixer/ipsi/internal/advisor"
	"github.com/runixer/ipsi/internal/cache"
	"github.com/runixer/ipsi/internal/catalog"
	"github.com/runixer/ipsi/internal/config"
	"github.com/runixer/ipsi/internal/filter"
	"github.com/runixer/ipsi/internal/i18n"
	"github.com/runixer/ipsi/internal/openrouter"
	"github.com/runixer/ipsi/internal/policy"
	"github.com/runixer/ipsi/internal/prompt"
	"github.com/runixer/ipsi/internal/rag"
	"github.com/runixer/ipsi/internal/retrieval"
	"github.com/runixer/ipsi/internal/storage"
	"github.com/runixer/ipsi/internal/yandex"
)

const (
	memoryCacheSize   = 256
	memoryCacheSweep  = 5 * time.Minute
	sessionSweepEvery = time.Minute
)

// Services holds all initialized services.
// This struct is returned by SetupServices so that the server and ipsictl
// share one wiring path.
type Services struct {
	Cache       cache.Client
	Catalog     *catalog.Service
	Engine      *rag.Engine
	Conditioner *retrieval.Conditioner
	Sessions    *advisor.SessionStore
	Advisor     *advisor.Service
	Transcriber *yandex.SpeechKitClient // nil when voice is disabled
	Translator  *i18n.Translator
}

// SetupServices initializes all core services.
//
// The caller is responsible for:
// - Starting background work (services.Start(ctx))
// - Stopping services when done (services.Stop(), store.Close())
func SetupServices(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	store *storage.SQLiteStore,
	client openrouter.Client,
	translator *i18n.Translator,
) (*Services, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if client == nil {
		return nil, fmt.Errorf("OpenRouter client is required")
	}
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}

	services := &Services{Translator: translator}
	fields := catalog.Fields{Institution: cfg.Corpus.InstitutionField, Track: cfg.Corpus.TrackField}
	lang := cfg.Advisor.Language

	c, err := newCache(ctx, logger, cfg.Catalog.Redis)
	if err != nil {
		return nil, err
	}
	services.Cache = c

	services.Catalog = catalog.NewService(logger, store, catalog.Options{
		Fields:          fields,
		Cache:           c,
		CacheTTL:        cfg.Catalog.Redis.GetTTL(),
		RefreshInterval: cfg.Catalog.GetRefreshInterval(),
	})

	services.Engine = rag.NewEngine(logger, store, client, cfg.Embedding.Model, cfg.Corpus.GetReloadInterval())

	services.Conditioner = retrieval.NewConditioner(
		logger,
		services.Engine,
		fields,
		cfg.Advisor.ResultLimit,
		translator.Get(lang, "advisor.fallback_context"),
	)

	rules := policy.FromConfig(cfg.Policy)
	assembler := prompt.NewAssembler(translator, lang, rules, fields, cfg.Advisor.HistoryWindow)

	services.Sessions = advisor.NewSessionStore(logger, cfg.Session.GetIdleTTL(), cfg.Session.MaxSessions)

	services.Advisor = advisor.NewService(
		logger,
		advisor.Config{
			Model:       cfg.Agents.Advisor.GetModel(cfg.Agents.Default.Model),
			Temperature: cfg.Advisor.Temperature,
			Language:    lang,
			Greeting:    cfg.Advisor.Greeting,
		},
		services.Catalog,
		filter.Compiler{InstitutionField: fields.Institution, TrackField: fields.Track},
		services.Conditioner,
		assembler,
		client,
		translator,
		services.Sessions,
	)

	if cfg.Yandex.Enabled {
		stt, err := yandex.NewSpeechKitClient(logger, yandex.Options{
			APIKey:      cfg.Yandex.APIKey,
			FolderID:    cfg.Yandex.FolderID,
			Language:    cfg.Yandex.Language,
			AudioFormat: cfg.Yandex.AudioFormat,
			SampleRate:  cfg.Yandex.SampleRate,
		})
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to create speech client: %w", err)
		}
		services.Transcriber = stt
		logger.Info("Voice questions enabled", "language", cfg.Yandex.Language)
	}

	return services, nil
}

func newCache(ctx context.Context, logger *slog.Logger, cfg config.RedisConfig) (cache.Client, error) {
	if !cfg.Enabled {
		logger.Info("Using in-memory snapshot cache")
		return cache.NewMemoryClient(memoryCacheSize, memoryCacheSweep), nil
	}

	rc, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Using redis snapshot cache", "addr", cfg.Addr)
	return rc, nil
}

// Start launches the background loops: index reload, catalog poll and
// session eviction.
func (s *Services) Start(ctx context.Context) error {
	if err := s.Engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start search engine: %w", err)
	}
	s.Catalog.Start(ctx)
	s.Sessions.Start(sessionSweepEvery)
	return nil
}

// Stop stops background loops and releases connections.
func (s *Services) Stop() error {
	s.Sessions.Stop()
	s.Catalog.Stop()
	s.Engine.Stop()

	var errs []error
	if s.Transcriber != nil {
		errs = append(errs, s.Transcriber.Close())
	}
	errs = append(errs, s.Cache.Close())
	return errors.Join(errs...)
}
