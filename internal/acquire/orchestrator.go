// Package acquire runs an acquisition session: it resolves the resource
// version, fetches the manifest and master database, then fetches whatever
// derived assets the master data asks for.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mmcdole/starlight/internal/domain"
	"github.com/mmcdole/starlight/internal/progress"
)

// Phase weights of the overall session value. Derived assets share the
// last slot evenly.
var phaseWeights = []float64{0.1, 0.3, 0.3, 0.3}

const packedExt = ".db"

// Resolver resolves the current resource version.
type Resolver interface {
	Discover(ctx context.Context, cached domain.ResourceVersion, onProgress domain.DiscoveryProgressFunc) (domain.ResourceVersion, error)
}

// Layout maps artifacts to local paths.
type Layout interface {
	Manifest(v domain.ResourceVersion, ext string) string
	Master(v domain.ResourceVersion, ext string) string
	BGM(name string) string
	Card(name string) string
}

// Request parameterizes one session.
type Request struct {
	// Version skips discovery when nonzero.
	Version domain.ResourceVersion
	// Background is the configured background card id; 0 follows the event.
	Background int
}

// Deps are the collaborators of an Orchestrator. Connectivity may be nil, in
// which case the session always assumes the network is up.
type Deps struct {
	Resolver     Resolver
	Versions     domain.VersionStore
	Downloader   domain.Downloader
	Transcoder   domain.Transcoder
	Catalog      domain.CatalogReader
	Connectivity domain.Connectivity
	Layout       Layout
	// Exists reports whether a local artifact is present. Defaults to os.Stat.
	Exists func(path string) bool
}

// Orchestrator sequences the phases of an acquisition session. Sessions
// are independent; an Orchestrator may run several one after another.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
}

// New creates an orchestrator.
func New(deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Exists == nil {
		deps.Exists = fileExists
	}
	return &Orchestrator{deps: deps, logger: logger}
}

// Run executes one session, reporting every transition and progress change
// through emit. The last event is StateReady or StateFailed. A failure
// returns a *PhaseError.
func (o *Orchestrator) Run(ctx context.Context, req Request, emit func(Event)) (*Result, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	s := &session{
		Orchestrator: o,
		emit:         emit,
		tracker:      progress.NewTracker(phaseWeights[:3]...),
		logger:       o.logger.With("session", uuid.NewString()),
		req:          req,
	}
	return s.run(ctx)
}

type session struct {
	*Orchestrator
	emit    func(Event)
	tracker *progress.Tracker
	logger  *slog.Logger
	req     Request

	state   State
	text    string
	loading float64
	offline bool
}

func (s *session) run(ctx context.Context) (*Result, error) {
	res := &Result{}

	s.enter(StateCheckingVersion, "Checking resource version")
	if s.deps.Connectivity != nil && !s.deps.Connectivity.Online(ctx) {
		v := s.deps.Versions.LatestVersion()
		s.logger.Warn("network unreachable, using cached version", "version", v)
		if !s.deps.Exists(s.deps.Layout.Manifest(v, packedExt)) || !s.deps.Exists(s.deps.Layout.Master(v, packedExt)) {
			return nil, s.fail(domain.ErrNoNetwork)
		}
		s.offline = true
		res.Version, res.Source, res.Offline = v, domain.SourceCache, true
	} else {
		v, source, err := s.resolve(ctx)
		if err != nil {
			return nil, s.fail(err)
		}
		res.Version, res.Source = v, source
	}
	s.advance()

	manifestPath, err := s.fetchManifest(ctx, res.Version)
	if err != nil {
		return nil, s.fail(err)
	}
	manifest, err := s.deps.Catalog.ReadManifest(ctx, manifestPath)
	if err != nil {
		return nil, s.fail(fmt.Errorf("read manifest: %w", err))
	}
	manifest.Version = res.Version
	res.ManifestPath, res.Manifest = manifestPath, manifest
	s.advance()

	masterPath, err := s.fetchDatabase(ctx, res.Version, manifest.MasterHash)
	if err != nil {
		return nil, s.fail(err)
	}
	master, err := s.deps.Catalog.ReadMaster(ctx, masterPath)
	if err != nil {
		return nil, s.fail(fmt.Errorf("read master: %w", err))
	}
	res.MasterPath, res.Master = masterPath, master
	if master.EventHappening {
		res.RewardCards = master.RewardCards()
	}
	s.advance()

	assets, err := s.fetchDerived(ctx, manifest, master, res.RewardCards)
	if err != nil {
		return nil, s.fail(err)
	}
	res.Assets = assets

	s.state, s.text, s.loading = StateReady, "Ready", 100
	s.logger.Info("acquisition ready", "version", res.Version, "offline", res.Offline)
	s.emit(Event{State: StateReady, Text: s.text, Loading: 100, Overall: 100, Result: res})
	return res, nil
}

func (s *session) resolve(ctx context.Context) (domain.ResourceVersion, domain.VersionSource, error) {
	if s.req.Version > 0 {
		s.logger.Info("resource version override", "version", s.req.Version)
		return s.req.Version, domain.SourceOverride, nil
	}
	cached := s.deps.Versions.LatestVersion()
	v, err := s.deps.Resolver.Discover(ctx, cached, func(current, max int) {
		var loading float64
		if max > 0 {
			loading = 100 * float64(current) / float64(max)
		}
		s.report(fmt.Sprintf("Checking resource version %d/%d", current, max), loading)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountBanned) {
			return 0, "", err
		}
		s.logger.Warn("version discovery failed, using cached version", "version", cached, "error", err)
		return cached, domain.SourceCache, nil
	}
	return v, domain.SourceDiscovery, nil
}

func (s *session) fetchManifest(ctx context.Context, v domain.ResourceVersion) (string, error) {
	s.enter(StateFetchingManifest, "Fetching manifest")
	target := s.deps.Layout.Manifest(v, packedExt)
	if s.cached(target) {
		return target, nil
	}
	task := domain.AcquisitionTask{
		TargetPath: s.deps.Layout.Manifest(v, ""),
		RemoteKey:  strconv.Itoa(int(v)),
		Kind:       domain.KindManifest,
	}
	path, err := s.deps.Downloader.DownloadManifest(ctx, v, task.TargetPath, s.byteProgress("Fetching manifest"))
	return s.finish(task, path, err)
}

func (s *session) fetchDatabase(ctx context.Context, v domain.ResourceVersion, hash string) (string, error) {
	s.enter(StateFetchingDatabase, "Fetching master database")
	target := s.deps.Layout.Master(v, packedExt)
	if s.cached(target) {
		return target, nil
	}
	if hash == "" {
		return "", fmt.Errorf("%w: no master hash in manifest", domain.ErrDownloadFailed)
	}
	task := domain.AcquisitionTask{
		TargetPath: s.deps.Layout.Master(v, ""),
		RemoteKey:  hash,
		Kind:       domain.KindDatabase,
	}
	path, err := s.deps.Downloader.DownloadDatabase(ctx, hash, task.TargetPath, s.byteProgress("Fetching master database"), packedExt)
	return s.finish(task, path, err)
}

// finish interprets a packed download result and drops the raw file.
func (s *session) finish(task domain.AcquisitionTask, path string, err error) (string, error) {
	if err != nil {
		return "", fmt.Errorf("%w: %s %s: %v", domain.ErrDownloadFailed, task.Kind, task.RemoteKey, err)
	}
	if path == "" {
		return "", fmt.Errorf("%w: %s %s not available", domain.ErrDownloadFailed, task.Kind, task.RemoteKey)
	}
	if rmErr := os.Remove(task.TargetPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		s.logger.Warn("failed to remove raw download", "path", task.TargetPath, "error", rmErr)
	}
	s.report(s.text, 100)
	return path, nil
}

// cached short-circuits a phase whose artifact is already present.
func (s *session) cached(target string) bool {
	if !s.deps.Exists(target) {
		return false
	}
	s.logger.Debug("artifact cached", "state", s.state, "path", target)
	s.report(s.text, 100)
	return true
}

func (s *session) enter(state State, text string) {
	s.state, s.text, s.loading = state, text, 0
	s.logger.Info("phase", "state", state)
	s.emit(Event{State: state, Text: text, Overall: s.tracker.Value()})
}

func (s *session) report(text string, loading float64) {
	s.text, s.loading = text, loading
	s.emit(Event{State: s.state, Text: text, Loading: loading, Overall: s.tracker.Set(loading)})
}

func (s *session) advance() {
	s.tracker.Complete()
}

func (s *session) byteProgress(label string) domain.ProgressFunc {
	return func(p domain.ProgressInfo) {
		text := label
		if p.Max > 0 {
			text = fmt.Sprintf("%s %s/%s", label, humanize.Bytes(uint64(p.Current)), humanize.Bytes(uint64(p.Max)))
		}
		s.report(text, p.Loading)
	}
}

func (s *session) fail(err error) error {
	failed := s.state
	s.logger.Error("acquisition failed", "state", failed, "error", err)
	s.emit(Event{
		State:   StateFailed,
		Text:    s.text,
		Loading: s.loading,
		Overall: s.tracker.Value(),
		Alert:   alertFor(err),
	})
	s.state = StateFailed
	return &PhaseError{State: failed, Err: err}
}

func alertFor(err error) *Alert {
	switch {
	case errors.Is(err, domain.ErrAccountBanned):
		return &Alert{Title: "Account banned", Message: "The current account has been banned. Use another account."}
	case errors.Is(err, domain.ErrNoNetwork):
		return &Alert{Title: "No network", Message: "The server is unreachable and no cached resources are available."}
	case errors.Is(err, domain.ErrTranscodeFailed):
		return &Alert{Title: "Transcode failed", Message: err.Error()}
	case errors.Is(err, domain.ErrDownloadFailed):
		return &Alert{Title: "Download failed", Message: err.Error()}
	default:
		return &Alert{Title: "Error", Message: err.Error()}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
