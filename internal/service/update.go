package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/starlight/internal/acquire"
	"github.com/mmcdole/starlight/internal/domain"
)

// UpdateService runs acquisition sessions and records what they confirm.
type UpdateService struct {
	orchestrator *acquire.Orchestrator
	store        domain.Store
	lockPath     string
	logger       *slog.Logger
	now          func() time.Time
}

// NewUpdateService creates a new update service. lockPath may be empty.
func NewUpdateService(orchestrator *acquire.Orchestrator, store domain.Store, lockPath string, logger *slog.Logger) *UpdateService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateService{
		orchestrator: orchestrator,
		store:        store,
		lockPath:     lockPath,
		logger:       logger,
		now:          time.Now,
	}
}

// Start runs one session in the background. The returned channel carries
// the session's events and is closed after the terminal one; the caller
// must drain it or cancel ctx. The data directory stays locked until then.
func (s *UpdateService) Start(ctx context.Context, req acquire.Request) (<-chan acquire.Event, error) {
	unlock, err := lockDataDir(s.lockPath)
	if err != nil {
		return nil, err
	}

	ch := make(chan acquire.Event, 64)
	go func() {
		defer close(ch)
		defer unlock()
		s.run(ctx, req, func(e acquire.Event) {
			select {
			case ch <- e:
			case <-ctx.Done():
			}
		})
	}()
	return ch, nil
}

// Run executes one session in the foreground, forwarding events to emit.
func (s *UpdateService) Run(ctx context.Context, req acquire.Request, emit func(acquire.Event)) (*acquire.Result, error) {
	unlock, err := lockDataDir(s.lockPath)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.run(ctx, req, emit)
}

// run records the result before the ready event leaves the session.
func (s *UpdateService) run(ctx context.Context, req acquire.Request, emit func(acquire.Event)) (*acquire.Result, error) {
	return s.orchestrator.Run(ctx, req, func(e acquire.Event) {
		if e.State == acquire.StateReady && e.Result != nil {
			s.record(e.Result)
		}
		if emit != nil {
			emit(e)
		}
	})
}

// record stores the confirmed version and the manifest index.
func (s *UpdateService) record(res *acquire.Result) {
	if s.store == nil {
		return
	}
	rec := domain.VersionRecord{Version: res.Version, Source: res.Source, ConfirmedAt: s.now()}
	if err := s.store.RecordVersion(rec); err != nil {
		s.logger.Warn("failed to record version", "version", res.Version, "error", err)
	}
	if res.Manifest != nil {
		if err := s.store.SaveManifestEntries(res.Version, res.Manifest.Entries); err != nil {
			s.logger.Warn("failed to index manifest", "version", res.Version, "error", err)
		}
	}
}
