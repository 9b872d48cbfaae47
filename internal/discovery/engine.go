// Package discovery locates the newest resource version when no
// authoritative answer is available, by probing candidate versions in
// bounded concurrent rounds.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mmcdole/starlight/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	// RoundSize is the number of candidates probed concurrently per round.
	RoundSize = 20
	// Step is the spacing between candidates of a round.
	Step = 10
	// Backoff is subtracted from the cached version to get the first base.
	Backoff = 100
)

// Engine resolves the current resource version.
type Engine struct {
	oracle    domain.ProbeOracle
	authority domain.VersionAuthority
	versions  domain.VersionStore
	logger    *slog.Logger
}

// NewEngine creates a discovery engine. authority may be nil, in which case
// discovery always probes.
func NewEngine(oracle domain.ProbeOracle, authority domain.VersionAuthority, versions domain.VersionStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{oracle: oracle, authority: authority, versions: versions, logger: logger}
}

// Discover returns the newest reachable version starting from cached.
//
// A pinned version is returned as is. Otherwise the authoritative check is
// asked first; a nonzero answer is persisted and returned. When it has no
// answer, rounds of RoundSize probes starting at cached-Backoff scan forward
// until a round finds nothing. The only error is a banned account.
func (e *Engine) Discover(ctx context.Context, cached domain.ResourceVersion, onProgress domain.DiscoveryProgressFunc) (domain.ResourceVersion, error) {
	if e.versions != nil {
		if pinned := e.versions.PinnedVersion(); pinned > 0 {
			e.logger.Info("using pinned resource version", "version", pinned)
			return pinned, nil
		}
	}

	v, err := e.check(ctx)
	if err != nil {
		return 0, err
	}
	if v != 0 {
		if v > cached {
			e.logger.Info("new resource version", "from", cached, "to", v)
		} else {
			e.logger.Info("latest resource version", "version", v)
		}
		e.persist(v)
		return v, nil
	}
	e.logger.Info("version check unavailable, probing", "cached", cached)

	v, found := e.probe(ctx, cached, onProgress)
	if found {
		e.persist(v)
	}
	return v, nil
}

func (e *Engine) check(ctx context.Context) (domain.ResourceVersion, error) {
	if e.authority == nil {
		return 0, nil
	}
	v, err := e.authority.Check(ctx)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, domain.ErrAccountBanned) {
		return 0, err
	}
	e.logger.Warn("version check failed", "error", err)
	return 0, nil
}

func (e *Engine) persist(v domain.ResourceVersion) {
	if e.versions == nil {
		return
	}
	if err := e.versions.SaveLatestVersion(v); err != nil {
		e.logger.Error("failed to save resource version", "error", err, "version", v)
	}
}

// counter holds the progress counters of one discovery session.
type counter struct {
	mu         sync.Mutex
	current    int
	max        int
	onProgress domain.DiscoveryProgressFunc
}

func (c *counter) grow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.max += RoundSize
	c.report()
}

func (c *counter) hit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current++
	c.report()
}

func (c *counter) report() {
	if c.onProgress != nil {
		c.onProgress(c.current, c.max)
	}
}

// probe runs rounds until one finds nothing. It returns the best version
// found and whether any probe hit; without hits the result is cached-Backoff.
func (e *Engine) probe(ctx context.Context, cached domain.ResourceVersion, onProgress domain.DiscoveryProgressFunc) (domain.ResourceVersion, bool) {
	base := cached - Backoff
	best := base
	found := false
	progress := &counter{onProgress: onProgress}

	for round := 1; ; round++ {
		progress.grow()
		results := e.runRound(ctx, Candidates(base), progress)

		hit, ok := highestExisting(results)
		e.logger.Debug("probe round settled", "round", round, "base", base, "hit", hit, "found", ok)
		if !ok {
			return best, found
		}
		best = hit
		found = true
		base = results[len(results)-1].Version
	}
}

// runRound probes every candidate concurrently and waits for all of them.
func (e *Engine) runRound(ctx context.Context, candidates []domain.ResourceVersion, progress *counter) []domain.ProbeResult {
	results := make([]domain.ProbeResult, len(candidates))

	var g errgroup.Group
	g.SetLimit(RoundSize)
	for i, v := range candidates {
		g.Go(func() error {
			res := e.oracle.Probe(ctx, v)
			results[i] = domain.ProbeResult{Version: v, Exists: res.Exists}
			if res.Exists {
				progress.hit()
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Candidates returns the RoundSize versions probed for a base:
// base+Step, base+2*Step, ..., base+RoundSize*Step.
func Candidates(base domain.ResourceVersion) []domain.ResourceVersion {
	out := make([]domain.ResourceVersion, RoundSize)
	for k := 1; k <= RoundSize; k++ {
		out[k-1] = base + domain.ResourceVersion(Step*k)
	}
	return out
}

// highestExisting scans results from the highest candidate down.
func highestExisting(results []domain.ProbeResult) (domain.ResourceVersion, bool) {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Exists {
			return results[i].Version, true
		}
	}
	return 0, false
}
