package adapter

import (
	"fmt"
	"sync"

	"github.com/mmcdole/starlight/internal/domain"
)

// VersionStore implements domain.VersionStore on top of the config file.
type VersionStore struct {
	mu  sync.RWMutex
	cfg *Config
}

func NewVersionStore(cfg *Config) *VersionStore {
	return &VersionStore{cfg: cfg}
}

func (s *VersionStore) PinnedVersion() domain.ResourceVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ResourceVersion(s.cfg.Resource.PinnedVersion)
}

func (s *VersionStore) LatestVersion() domain.ResourceVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ResourceVersion(s.cfg.Resource.LatestVersion)
}

// SaveLatestVersion records v and writes the config file back.
func (s *VersionStore) SaveLatestVersion(v domain.ResourceVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cfg.set("resource.latest_version", int(v)); err != nil {
		return fmt.Errorf("save latest version: %w", err)
	}
	s.cfg.Resource.LatestVersion = int(v)
	return nil
}

var _ domain.VersionStore = (*VersionStore)(nil)
