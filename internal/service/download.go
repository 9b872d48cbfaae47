package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mmcdole/starlight/internal/batch"
	"github.com/mmcdole/starlight/internal/domain"
	"github.com/shirou/gopsutil/v3/disk"
)

// DownloadService batch-downloads manifest entries into a directory.
type DownloadService struct {
	downloader domain.Downloader
	dir        string
	lockPath   string
	minFree    uint64 // bytes
	logger     *slog.Logger

	freeSpace func(path string) (uint64, error)
}

// NewDownloadService creates a new download service writing into dir.
func NewDownloadService(downloader domain.Downloader, dir, lockPath string, minFreeMB uint64, logger *slog.Logger) *DownloadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownloadService{
		downloader: downloader,
		dir:        dir,
		lockPath:   lockPath,
		minFree:    minFreeMB * 1024 * 1024,
		logger:     logger,
		freeSpace: func(path string) (uint64, error) {
			usage, err := disk.Usage(path)
			if err != nil {
				return 0, err
			}
			return usage.Free, nil
		},
	}
}

// Dir returns the download destination.
func (s *DownloadService) Dir() string { return s.dir }

// NewBatch returns a fresh coordinator. Every independent concern gets its
// own; the caller keeps it to Stop the batch.
func (s *DownloadService) NewBatch() *batch.Coordinator {
	return batch.NewCoordinator(s.downloader, s.logger)
}

// Preflight makes sure the destination exists and has room.
func (s *DownloadService) Preflight() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	if s.minFree == 0 {
		return nil
	}
	free, err := s.freeSpace(s.dir)
	if err != nil {
		s.logger.Warn("free space check failed", "dir", s.dir, "error", err)
		return nil
	}
	if free < s.minFree {
		return fmt.Errorf("%w: %s free in %s, need %s", domain.ErrInsufficientSpace,
			humanize.IBytes(free), s.dir, humanize.IBytes(s.minFree))
	}
	return nil
}

// Run downloads entries on c. The returned list holds one error per failed
// item; the error is set when the batch could not start.
func (s *DownloadService) Run(ctx context.Context, c *batch.Coordinator, entries []domain.ManifestEntry, h batch.Handlers) ([]error, error) {
	if err := s.Preflight(); err != nil {
		return nil, err
	}
	unlock, err := lockDataDir(s.lockPath)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s.logger.Info("batch download", "items", len(entries), "dir", s.dir)
	errs := c.BatchDownload(ctx, entries, s.dir, h)
	s.logger.Info("batch download finished", "items", len(entries), "failed", len(errs))
	return errs, nil
}
