package batch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mmcdole/starlight/internal/domain"
)

type fakeDownloader struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]error
	empty    map[string]bool
	block    chan struct{}
	started  chan string
	inFlight int
	maxSeen  int
}

func (d *fakeDownloader) do(ctx context.Context, kind, hash, dest string, onProgress domain.ProgressFunc) (string, error) {
	d.mu.Lock()
	d.calls = append(d.calls, kind+":"+hash)
	d.inFlight++
	if d.inFlight > d.maxSeen {
		d.maxSeen = d.inFlight
	}
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
	}()

	if d.started != nil {
		d.started <- hash
	}
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if onProgress != nil {
		onProgress(domain.ProgressInfo{Current: 50, Max: 100, Loading: 50, Name: hash})
		onProgress(domain.ProgressInfo{Current: 100, Max: 100, Loading: 100, Name: hash})
	}
	if err := d.fail[hash]; err != nil {
		return "", err
	}
	if d.empty[hash] {
		return "", nil
	}
	return dest, nil
}

func (d *fakeDownloader) DownloadManifest(ctx context.Context, v domain.ResourceVersion, dest string, onProgress domain.ProgressFunc) (string, error) {
	return d.do(ctx, "manifest", "", dest, onProgress)
}

func (d *fakeDownloader) DownloadDatabase(ctx context.Context, hash, dest string, onProgress domain.ProgressFunc, ext string) (string, error) {
	p, err := d.do(ctx, "database", hash, dest, onProgress)
	if p != "" {
		p += ext
	}
	return p, err
}

func (d *fakeDownloader) DownloadSound(ctx context.Context, soundType, hash, dest string, onProgress domain.ProgressFunc) (string, error) {
	return d.do(ctx, "sound/"+soundType, hash, dest, onProgress)
}

func (d *fakeDownloader) DownloadAsset(ctx context.Context, hash, dest string, onProgress domain.ProgressFunc) (string, error) {
	return d.do(ctx, "asset", hash, dest, onProgress)
}

func targets() []domain.ManifestEntry {
	return []domain.ManifestEntry{
		{Name: "b/song_1001.acb", Hash: "h1"},
		{Name: "musicscores_m001.bdb", Hash: "h2"},
		{Name: "card_bg_100001.unity3d", Hash: "h3"},
		{Name: "l/song_1001_part.awb", Hash: "h4"},
	}
}

func TestBatchDownloadDispatchesInOrder(t *testing.T) {
	dl := &fakeDownloader{}
	c := NewCoordinator(dl, nil)
	dir := t.TempDir()

	var (
		starts []int
		done   []string
		loads  []float64
		final  Snapshot
	)
	errs := c.BatchDownload(context.Background(), targets(), dir, Handlers{
		OnItemStart: func(target domain.ManifestEntry, dest string, s Snapshot) {
			starts = append(starts, s.Index)
		},
		OnItemProgress: func(info domain.ProgressInfo, s Snapshot) {
			loads = append(loads, s.Loading)
		},
		OnItemDone: func(target domain.ManifestEntry, path string, err error, s Snapshot) {
			done = append(done, path)
		},
		OnAllDone: func(s Snapshot) { final = s },
	})

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []string{"sound/b:h1", "database:h2", "asset:h3", "sound/l:h4"}
	for i, call := range dl.calls {
		if call != want[i] {
			t.Fatalf("call %d = %q, want %q", i, call, want[i])
		}
	}
	if dl.maxSeen != 1 {
		t.Fatalf("expected a single active transfer, saw %d", dl.maxSeen)
	}
	if len(starts) != 4 || starts[0] != 1 || starts[3] != 4 {
		t.Fatalf("unexpected start indexes %v", starts)
	}
	if done[1] != filepath.Join(dir, "musicscores_m001.bdb") {
		t.Fatalf("database path = %q", done[1])
	}
	for i := 1; i < len(loads); i++ {
		if loads[i] < loads[i-1] {
			t.Fatalf("queue progress decreased: %v", loads)
		}
	}
	// second item at 50%: 100*1/4 + 50/4
	if loads[2] != 37.5 {
		t.Fatalf("nested progress = %v, want 37.5", loads[2])
	}
	if final.Index != 4 || final.Loading != 100 {
		t.Fatalf("final snapshot = %+v", final)
	}
}

func TestBatchDownloadContinuesAfterFailure(t *testing.T) {
	dl := &fakeDownloader{
		fail:  map[string]error{"h2": errors.New("connection reset")},
		empty: map[string]bool{"h3": true},
	}
	c := NewCoordinator(dl, nil)

	doneCount := 0
	allDone := false
	errs := c.BatchDownload(context.Background(), targets(), t.TempDir(), Handlers{
		OnItemDone: func(domain.ManifestEntry, string, error, Snapshot) { doneCount++ },
		OnAllDone:  func(Snapshot) { allDone = true },
	})

	if doneCount != 4 {
		t.Fatalf("expected completion callbacks for all 4 items, got %d", doneCount)
	}
	if !allDone {
		t.Fatal("OnAllDone did not fire")
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	for _, err := range errs {
		if !errors.Is(err, domain.ErrBatchItemFailed) {
			t.Fatalf("expected ErrBatchItemFailed, got %v", err)
		}
	}
	if !errors.Is(errs[1], domain.ErrDownloadFailed) {
		t.Fatalf("clean failure should map to ErrDownloadFailed, got %v", errs[1])
	}
	var itemErr *ItemError
	if !errors.As(errs[0], &itemErr) || itemErr.Target.Hash != "h2" {
		t.Fatalf("expected ItemError for h2, got %v", errs[0])
	}
}

func TestStopCancelsActiveItemAndAbandonsQueue(t *testing.T) {
	dl := &fakeDownloader{block: make(chan struct{}), started: make(chan string, 4)}
	c := NewCoordinator(dl, nil)

	allDone := make(chan Snapshot, 1)
	result := make(chan []error, 1)
	go func() {
		result <- c.BatchDownload(context.Background(), targets(), t.TempDir(), Handlers{
			OnAllDone: func(s Snapshot) { allDone <- s },
		})
	}()

	<-dl.started
	if !c.Stop() {
		t.Fatal("Stop reported no running batch")
	}

	errs := <-result
	snap := <-allDone
	if snap.Index != 1 {
		t.Fatalf("expected only the first item to start, got index %d", snap.Index)
	}
	if len(errs) != 1 || !errors.Is(errs[0], context.Canceled) {
		t.Fatalf("expected the in-flight item to be cancelled, got %v", errs)
	}
	if len(dl.calls) != 1 {
		t.Fatalf("expected no further downloads, got %v", dl.calls)
	}
	if c.Stop() {
		t.Fatal("Stop reported a running batch after completion")
	}
}

func TestBatchDownloadRejectsConcurrentUse(t *testing.T) {
	dl := &fakeDownloader{block: make(chan struct{}), started: make(chan string, 4)}
	c := NewCoordinator(dl, nil)

	result := make(chan []error, 1)
	go func() {
		result <- c.BatchDownload(context.Background(), targets()[:1], t.TempDir(), Handlers{})
	}()
	<-dl.started

	errs := c.BatchDownload(context.Background(), targets(), t.TempDir(), Handlers{})
	if len(errs) != 1 || !errors.Is(errs[0], ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", errs)
	}

	close(dl.block)
	if errs := <-result; len(errs) != 0 {
		t.Fatalf("first batch failed: %v", errs)
	}
}

func TestDestination(t *testing.T) {
	dir := "/tmp/dl"
	cases := map[string]string{
		"b/song_1001.acb":        filepath.Join(dir, "song_1001.acb"),
		"master.mdb":             filepath.Join(dir, "master"),
		"card_bg_100001.unity3d": filepath.Join(dir, "card_bg_100001.unity3d"),
	}
	for name, want := range cases {
		if got := Destination(dir, domain.ManifestEntry{Name: name}); got != want {
			t.Fatalf("Destination(%q) = %q, want %q", name, got, want)
		}
	}
}
