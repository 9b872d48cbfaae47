// Package batch downloads a queue of manifest entries one at a time.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mmcdole/starlight/internal/domain"
	"github.com/mmcdole/starlight/internal/progress"
)

// ErrBusy is returned when a coordinator is asked to run a second batch
// while one is in flight. Use one coordinator per concern.
var ErrBusy = errors.New("batch already running on this coordinator")

// ItemError records the failure of one queue item.
type ItemError struct {
	Target domain.ManifestEntry
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Target.Name, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Is matches domain.ErrBatchItemFailed.
func (e *ItemError) Is(target error) bool {
	return target == domain.ErrBatchItemFailed
}

// Snapshot is the queue state handed to every callback.
type Snapshot struct {
	Index   int     // 1-based count of items started so far
	Total   int     // queue length
	Item    float64 // active item progress, 0..100
	Loading float64 // queue progress, 0..100
}

// Handlers receive queue events. Any of them may be nil.
type Handlers struct {
	OnItemStart    func(target domain.ManifestEntry, dest string, s Snapshot)
	OnItemProgress func(info domain.ProgressInfo, s Snapshot)
	OnItemDone     func(target domain.ManifestEntry, path string, err error, s Snapshot)
	OnAllDone      func(s Snapshot)
}

// Coordinator owns one download queue and its single active transfer.
type Coordinator struct {
	downloader domain.Downloader
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
}

// NewCoordinator creates a coordinator driving downloader.
func NewCoordinator(downloader domain.Downloader, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{downloader: downloader, logger: logger}
}

// BatchDownload downloads targets into destDir strictly in order, one at a
// time. A failing item is recorded and the queue moves on; the returned
// list holds one *ItemError per failed item. OnAllDone always fires, also
// after Stop.
func (c *Coordinator) BatchDownload(ctx context.Context, targets []domain.ManifestEntry, destDir string, h Handlers) []error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return []error{ErrBusy}
	}
	c.running = true
	c.stopped = false
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	logger := c.logger.With("batch", uuid.NewString())
	logger.Info("batch started", "items", len(targets), "dest", destDir)

	var errs []error
	snap := Snapshot{Total: len(targets)}

	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		itemCtx, ok := c.begin(ctx)
		if !ok {
			break
		}

		snap.Index++
		snap.Item = 0
		snap.Loading = progress.Nested(snap.Index-1, snap.Total, 0)
		dest := Destination(destDir, target)
		if h.OnItemStart != nil {
			h.OnItemStart(target, dest, snap)
		}

		path, err := c.fetch(itemCtx, target, dest, func(info domain.ProgressInfo) {
			snap.Item = info.Loading
			snap.Loading = progress.Nested(snap.Index-1, snap.Total, info.Loading)
			if h.OnItemProgress != nil {
				h.OnItemProgress(info, snap)
			}
		})
		c.end()

		if err != nil {
			itemErr := &ItemError{Target: target, Err: err}
			errs = append(errs, itemErr)
			logger.Warn("batch item failed", "name", target.Name, "error", err)
		} else {
			logger.Debug("batch item done", "name", target.Name, "path", path)
		}

		snap.Item = 0
		snap.Loading = progress.Nested(snap.Index, snap.Total, 0)
		if h.OnItemDone != nil {
			h.OnItemDone(target, path, err, snap)
		}
	}

	logger.Info("batch finished", "started", snap.Index, "items", snap.Total, "failed", len(errs))
	if h.OnAllDone != nil {
		h.OnAllDone(snap)
	}
	return errs
}

// Stop cancels the in-flight item and abandons the rest of the queue.
// It reports false when no batch is running.
func (c *Coordinator) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	return true
}

// Running reports whether a batch is in flight.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Coordinator) begin(ctx context.Context) (context.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil, false
	}
	itemCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return itemCtx, true
}

func (c *Coordinator) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Coordinator) fetch(ctx context.Context, target domain.ManifestEntry, dest string, onProgress domain.ProgressFunc) (string, error) {
	var (
		path string
		err  error
	)
	switch target.Kind() {
	case domain.KindSound:
		path, err = c.downloader.DownloadSound(ctx, target.SoundType(), target.Hash, dest, onProgress)
	case domain.KindDatabase:
		path, err = c.downloader.DownloadDatabase(ctx, target.Hash, dest, onProgress, filepath.Ext(target.Name))
	default:
		path, err = c.downloader.DownloadAsset(ctx, target.Hash, dest, onProgress)
	}
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", domain.ErrDownloadFailed
	}
	return path, nil
}

// Destination returns where target is written inside destDir. Database
// entries drop their extension; the downloader appends it after unpacking.
func Destination(destDir string, target domain.ManifestEntry) string {
	base := target.Base()
	if target.Kind() == domain.KindDatabase {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return filepath.Join(destDir, base)
}
