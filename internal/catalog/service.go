package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/runixer/ipsi/internal/cache"
	"github.com/runixer/ipsi/internal/storage"
)

// Source is the corpus the options are derived from.
type Source interface {
	Identity() string
	GetAllMetadata(ctx context.Context) ([]storage.RecordMetadata, error)
	GetCorpusVersion(ctx context.Context) (storage.CorpusVersion, error)
}

// Service keeps one snapshot per corpus version and rebuilds it only when
// the version changes or the snapshot is invalidated.
type Service struct {
	logger  *slog.Logger
	source  Source
	fields  Fields
	cache   cache.Client
	ttl     time.Duration
	refresh time.Duration
	now     func() time.Time

	mu      sync.Mutex
	current *Snapshot

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Options configures a Service.
type Options struct {
	Fields Fields
	// Cache is optional. When set, snapshots are shared through it.
	Cache    cache.Client
	CacheTTL time.Duration
	// RefreshInterval enables the background version poll when positive.
	RefreshInterval time.Duration
}

func NewService(logger *slog.Logger, source Source, opts Options) *Service {
	return &Service{
		logger:   logger.With("component", "catalog"),
		source:   source,
		fields:   opts.Fields,
		cache:    opts.Cache,
		ttl:      opts.CacheTTL,
		refresh:  opts.RefreshInterval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Snapshot returns the current options. It never fails: a read failure
// yields an empty snapshot with StatusUnavailable, which is not retained
// so the next call retries the read.
func (s *Service) Snapshot(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return *s.current
	}

	version, err := s.source.GetCorpusVersion(ctx)
	if err != nil {
		return s.unavailable(err)
	}
	return s.buildLocked(ctx, version)
}

// Refresh rebuilds the snapshot if the corpus version changed since it was
// built. It reports whether a rebuild happened.
func (s *Service) Refresh(ctx context.Context) (bool, error) {
	version, err := s.source.GetCorpusVersion(ctx)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.Version == version.String() {
		return false, nil
	}

	snap := s.buildLocked(ctx, version)
	if snap.Status == StatusUnavailable {
		return false, errors.New("corpus metadata unavailable")
	}
	return true, nil
}

// Invalidate drops the retained snapshot and its shared copy. The next
// Snapshot call rescans the corpus.
func (s *Service) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.DeleteByPrefix(ctx, s.cachePrefix()+":"); err != nil {
			s.logger.Warn("failed to drop shared catalog snapshot", "error", err)
		}
	}
	s.logger.Info("catalog snapshot invalidated")
}

// Start launches the background refresh loop when an interval is configured.
func (s *Service) Start(ctx context.Context) {
	if s.refresh <= 0 {
		s.logger.Info("catalog refresh loop disabled")
		return
	}
	s.wg.Add(1)
	go s.refreshLoop(ctx)
}

// Stop terminates the refresh loop and waits for it to exit.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *Service) refreshLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			changed, err := s.Refresh(ctx)
			if err != nil {
				s.logger.Warn("catalog refresh failed", "error", err)
				continue
			}
			if changed {
				s.logger.Info("catalog refreshed after corpus change")
			}
		}
	}
}

// buildLocked loads or computes the snapshot for version. Caller holds mu.
func (s *Service) buildLocked(ctx context.Context, version storage.CorpusVersion) Snapshot {
	start := s.now()
	key := cache.Key(s.cachePrefix(), version.String())

	if snap, ok := s.fromCache(ctx, key); ok {
		s.current = &snap
		recordSnapshot(snap, "cache")
		return snap
	}

	records, err := s.source.GetAllMetadata(ctx)
	if err != nil {
		return s.unavailable(err)
	}

	metas := make([]map[string]any, 0, len(records))
	for _, r := range records {
		metas = append(metas, r.Metadata)
	}

	snap := Build(metas, s.fields)
	snap.Version = version.String()
	snap.BuiltAt = s.now()
	s.current = &snap

	RecordBuildDuration(s.now().Sub(start).Seconds())
	recordSnapshot(snap, "scan")

	if snap.Status == StatusEmpty {
		s.logger.Warn("catalog built from corpus without usable metadata",
			"version", snap.Version,
			"records", len(records),
		)
	} else {
		s.logger.Info("catalog built",
			"version", snap.Version,
			"records", len(records),
			"institutions", len(snap.Institutions),
			"tracks", len(snap.Tracks),
		)
	}

	s.toCache(ctx, key, snap)
	return snap
}

func (s *Service) unavailable(err error) Snapshot {
	s.logger.Error("corpus metadata unavailable, serving empty options", "error", err)
	snap := unavailableSnapshot(s.now())
	recordSnapshot(snap, "scan")
	return snap
}

func (s *Service) cachePrefix() string {
	return cache.Key("catalog", s.source.Identity())
}

func (s *Service) fromCache(ctx context.Context, key string) (Snapshot, bool) {
	if s.cache == nil {
		return Snapshot{}, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("shared catalog cache read failed", "key", key, "error", err)
		}
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("discarding malformed shared catalog snapshot", "key", key, "error", err)
		return Snapshot{}, false
	}
	if snap.Tracks == nil {
		snap.Tracks = TrackVariantMap{}
	}
	return snap, true
}

func (s *Service) toCache(ctx context.Context, key string, snap Snapshot) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("failed to encode catalog snapshot", "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("shared catalog cache write failed", "key", key, "error", err)
	}
}
