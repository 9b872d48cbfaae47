package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/starlight/internal/acquire"
	"github.com/mmcdole/starlight/internal/domain"
)

// VersionService answers version questions without fetching artifacts.
type VersionService struct {
	resolver acquire.Resolver
	versions domain.VersionStore
	store    domain.Store
	logger   *slog.Logger
	now      func() time.Time
}

// NewVersionService creates a new version service
func NewVersionService(resolver acquire.Resolver, versions domain.VersionStore, store domain.Store, logger *slog.Logger) *VersionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VersionService{
		resolver: resolver,
		versions: versions,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Check resolves the current resource version starting from the cached one.
func (s *VersionService) Check(ctx context.Context, onProgress domain.DiscoveryProgressFunc) (domain.ResourceVersion, error) {
	cached := s.versions.LatestVersion()
	v, err := s.resolver.Discover(ctx, cached, onProgress)
	if err != nil {
		return 0, err
	}
	if s.store != nil && v == s.versions.LatestVersion() {
		// Only confirmed versions are persisted by discovery.
		if err := s.store.RecordVersion(domain.VersionRecord{Version: v, Source: domain.SourceDiscovery, ConfirmedAt: s.now()}); err != nil {
			s.logger.Warn("failed to record version", "version", v, "error", err)
		}
	}
	return v, nil
}

// Latest returns the last confirmed version.
func (s *VersionService) Latest() domain.ResourceVersion {
	return s.versions.LatestVersion()
}

// Reset forgets the version history and every stored manifest index. The
// configured latest version is kept.
func (s *VersionService) Reset() {
	if s.store == nil {
		return
	}
	s.store.InvalidateAll()
	s.logger.Info("version history and manifest index cleared")
}

// History returns the confirmed versions, newest first.
func (s *VersionService) History() ([]domain.VersionRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	recs, err := s.store.Versions()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}
