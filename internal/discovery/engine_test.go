package discovery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/starlight/internal/domain"
)

type fakeOracle struct {
	mu       sync.Mutex
	existing map[domain.ResourceVersion]bool
	probed   []domain.ResourceVersion
}

func newFakeOracle(versions ...domain.ResourceVersion) *fakeOracle {
	o := &fakeOracle{existing: make(map[domain.ResourceVersion]bool)}
	for _, v := range versions {
		o.existing[v] = true
	}
	return o
}

func (o *fakeOracle) Probe(_ context.Context, v domain.ResourceVersion) domain.ProbeResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.probed = append(o.probed, v)
	return domain.ProbeResult{Version: v, Exists: o.existing[v]}
}

func (o *fakeOracle) probedSorted() []domain.ResourceVersion {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := append([]domain.ResourceVersion(nil), o.probed...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type fakeAuthority struct {
	version domain.ResourceVersion
	err     error
	calls   int
}

func (a *fakeAuthority) Check(context.Context) (domain.ResourceVersion, error) {
	a.calls++
	return a.version, a.err
}

type fakeVersions struct {
	pinned domain.ResourceVersion
	latest domain.ResourceVersion
	saved  []domain.ResourceVersion
}

func (s *fakeVersions) PinnedVersion() domain.ResourceVersion { return s.pinned }
func (s *fakeVersions) LatestVersion() domain.ResourceVersion { return s.latest }
func (s *fakeVersions) SaveLatestVersion(v domain.ResourceVersion) error {
	s.saved = append(s.saved, v)
	s.latest = v
	return nil
}

func stepVersions(from, to domain.ResourceVersion) []domain.ResourceVersion {
	var out []domain.ResourceVersion
	for v := from; v <= to; v += 10 {
		out = append(out, v)
	}
	return out
}

func TestCandidatesRoundSizing(t *testing.T) {
	got := Candidates(900)
	if len(got) != RoundSize {
		t.Fatalf("expected %d candidates, got %d", RoundSize, len(got))
	}
	for k, v := range got {
		if want := domain.ResourceVersion(900 + 10*(k+1)); v != want {
			t.Fatalf("candidate %d = %d, want %d", k, v, want)
		}
	}
}

func TestDiscoverScansForwardPastHits(t *testing.T) {
	oracle := newFakeOracle(stepVersions(1010, 1200)...)
	versions := &fakeVersions{latest: 1000}
	engine := NewEngine(oracle, &fakeAuthority{}, versions, nil)

	var currents, maxes []int
	got, err := engine.Discover(context.Background(), 1000, func(current, max int) {
		currents = append(currents, current)
		maxes = append(maxes, max)
	})
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if got != 1200 {
		t.Fatalf("Discover = %d, want 1200", got)
	}

	probed := oracle.probedSorted()
	if len(probed) != 3*RoundSize {
		t.Fatalf("expected 3 rounds (%d probes), got %d", 3*RoundSize, len(probed))
	}
	if probed[0] != 910 || probed[len(probed)-1] != 1500 {
		t.Fatalf("unexpected probe range %d..%d", probed[0], probed[len(probed)-1])
	}

	if len(versions.saved) != 1 || versions.saved[0] != 1200 {
		t.Fatalf("expected 1200 to be persisted, got %v", versions.saved)
	}

	for i := 1; i < len(currents); i++ {
		if currents[i] < currents[i-1] {
			t.Fatalf("current decreased: %v", currents)
		}
		if maxes[i] < maxes[i-1] {
			t.Fatalf("max decreased: %v", maxes)
		}
	}
	// 910..1100 has 10 hits, 1110..1300 has 10 hits, the last round none
	if last := currents[len(currents)-1]; last != 20 {
		t.Fatalf("final current = %d, want 20", last)
	}
	if last := maxes[len(maxes)-1]; last != 3*RoundSize {
		t.Fatalf("final max = %d, want %d", last, 3*RoundSize)
	}
}

func TestDiscoverFallsBackToGuessWhenNothingExists(t *testing.T) {
	oracle := newFakeOracle()
	versions := &fakeVersions{latest: 500}
	engine := NewEngine(oracle, &fakeAuthority{}, versions, nil)

	var lastCurrent, lastMax int
	got, err := engine.Discover(context.Background(), 500, func(current, max int) {
		lastCurrent, lastMax = current, max
	})
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if got != 400 {
		t.Fatalf("Discover = %d, want 400", got)
	}
	if n := len(oracle.probedSorted()); n != RoundSize {
		t.Fatalf("expected a single round, got %d probes", n)
	}
	if lastCurrent != 0 || lastMax != RoundSize {
		t.Fatalf("progress = %d/%d, want 0/%d", lastCurrent, lastMax, RoundSize)
	}
	if len(versions.saved) != 0 {
		t.Fatalf("fallback guess must not be persisted, saved %v", versions.saved)
	}
}

func TestDiscoverTrustsAuthority(t *testing.T) {
	oracle := newFakeOracle(stepVersions(1010, 1500)...)
	versions := &fakeVersions{latest: 1000}
	engine := NewEngine(oracle, &fakeAuthority{version: 1234}, versions, nil)

	got, err := engine.Discover(context.Background(), 1000, nil)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if got != 1234 {
		t.Fatalf("Discover = %d, want 1234", got)
	}
	if n := len(oracle.probedSorted()); n != 0 {
		t.Fatalf("expected no probes, got %d", n)
	}
	if versions.latest != 1234 {
		t.Fatalf("expected authority answer persisted, latest = %d", versions.latest)
	}
}

func TestDiscoverReturnsPinnedVersion(t *testing.T) {
	authority := &fakeAuthority{version: 1234}
	oracle := newFakeOracle()
	engine := NewEngine(oracle, authority, &fakeVersions{pinned: 777}, nil)

	got, err := engine.Discover(context.Background(), 1000, nil)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if got != 777 {
		t.Fatalf("Discover = %d, want 777", got)
	}
	if authority.calls != 0 {
		t.Fatal("authority must not be called for a pinned version")
	}
}

func TestDiscoverBannedAccount(t *testing.T) {
	authority := &fakeAuthority{err: &domain.ResultCodeError{Code: domain.ResultCodeBanned}}
	oracle := newFakeOracle(1010)
	engine := NewEngine(oracle, authority, &fakeVersions{}, nil)

	_, err := engine.Discover(context.Background(), 1000, nil)
	if !errors.Is(err, domain.ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
	if n := len(oracle.probedSorted()); n != 0 {
		t.Fatalf("expected no probes after ban, got %d", n)
	}
}

func TestDiscoverProbesWhenAuthorityErrors(t *testing.T) {
	authority := &fakeAuthority{err: errors.New("connection reset")}
	oracle := newFakeOracle(1050)
	engine := NewEngine(oracle, authority, &fakeVersions{}, nil)

	got, err := engine.Discover(context.Background(), 1000, nil)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if got != 1050 {
		t.Fatalf("Discover = %d, want 1050", got)
	}
}

func TestDiscoverHighestHitWinsWithinRound(t *testing.T) {
	// sparse hits: only the highest existing one in the round matters
	oracle := newFakeOracle(920, 1010, 1070)
	engine := NewEngine(oracle, nil, nil, nil)

	got, err := engine.Discover(context.Background(), 1000, nil)
	if err != nil {
		t.Fatalf("Discover returned error: %v", err)
	}
	if got != 1070 {
		t.Fatalf("Discover = %d, want 1070", got)
	}
}

// gatedOracle holds every probe until the whole round is in flight.
type gatedOracle struct {
	mu       sync.Mutex
	existing map[domain.ResourceVersion]bool
	started  int
	returned int
	gates    map[int]chan struct{}
	arrived  map[int]int
	timedOut bool
	overlap  bool
}

func newGatedOracle(versions ...domain.ResourceVersion) *gatedOracle {
	o := &gatedOracle{
		existing: make(map[domain.ResourceVersion]bool),
		gates:    make(map[int]chan struct{}),
		arrived:  make(map[int]int),
	}
	for _, v := range versions {
		o.existing[v] = true
	}
	return o
}

func (o *gatedOracle) Probe(ctx context.Context, v domain.ResourceVersion) domain.ProbeResult {
	o.mu.Lock()
	round := o.started / RoundSize
	if o.returned < round*RoundSize {
		o.overlap = true
	}
	o.started++
	gate, ok := o.gates[round]
	if !ok {
		gate = make(chan struct{})
		o.gates[round] = gate
	}
	o.arrived[round]++
	if o.arrived[round] == RoundSize {
		close(gate)
	}
	o.mu.Unlock()

	select {
	case <-gate:
	case <-time.After(2 * time.Second):
		o.mu.Lock()
		o.timedOut = true
		o.mu.Unlock()
	}

	o.mu.Lock()
	o.returned++
	o.mu.Unlock()
	return domain.ProbeResult{Version: v, Exists: o.existing[v]}
}

func TestDiscoverRoundsRunConcurrentlyAndInOrder(t *testing.T) {
	oracle := newGatedOracle(stepVersions(910, 1100)...)
	engine := NewEngine(oracle, &fakeAuthority{}, &fakeVersions{latest: 1000}, nil)

	got, err := engine.Discover(context.Background(), 1000, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got != 1100 {
		t.Errorf("expected 1100, got %d", got)
	}

	oracle.mu.Lock()
	defer oracle.mu.Unlock()
	if oracle.timedOut {
		t.Error("a round never had all of its probes in flight at once")
	}
	if oracle.overlap {
		t.Error("a round started before the previous round settled")
	}
	if oracle.started != 2*RoundSize {
		t.Errorf("expected %d probes, got %d", 2*RoundSize, oracle.started)
	}
}
