package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/mmcdole/starlight/internal/acquire"
	"github.com/mmcdole/starlight/internal/adapter"
	"github.com/mmcdole/starlight/internal/catalog"
	"github.com/mmcdole/starlight/internal/discovery"
	"github.com/mmcdole/starlight/internal/remote"
	"github.com/mmcdole/starlight/internal/service"
	"github.com/mmcdole/starlight/internal/store"
)

// appContext builds the configuration and services once per invocation.
type appContext struct {
	configDir string // --config
	plain     bool   // --plain

	once sync.Once
	err  error

	cfg      *adapter.Config
	logger   *slog.Logger
	paths    adapter.Paths
	store    *store.CacheStore
	client   *remote.Client
	versions *adapter.VersionStore

	update   *service.UpdateService
	check    *service.VersionService
	search   *service.SearchService
	download *service.DownloadService
}

func (a *appContext) ensure() error {
	a.once.Do(func() { a.err = a.build() })
	return a.err
}

func (a *appContext) build() error {
	var (
		cfg *adapter.Config
		err error
	)
	if dir := strings.TrimSpace(a.configDir); dir != "" {
		cfg, err = adapter.LoadConfigFrom(dir)
	} else {
		cfg, err = adapter.LoadConfig()
	}
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)
	a.logger = logger
	logger.Info("starting starlight", "version", Version)

	a.paths = adapter.NewPaths(cfg)
	a.store, err = store.NewCacheStore(a.paths.Cache())
	if err != nil {
		logger.Warn("cache unavailable, using memory", "error", err)
		a.store, _ = store.NewCacheStore("")
	}

	a.client = remote.NewClient(remote.Options{
		Host:     cfg.Server.Host,
		CheckURL: cfg.Server.CheckURL,
		Account:  cfg.Server.Account,
		Timeout:  cfg.Server.Timeout,
	}, logger)
	a.versions = adapter.NewVersionStore(cfg)

	engine := discovery.NewEngine(a.client, a.client, a.versions, logger)
	reader := catalog.NewReader(logger)
	orchestrator := acquire.New(acquire.Deps{
		Resolver:     engine,
		Versions:     a.versions,
		Downloader:   a.client,
		Transcoder:   adapter.NewTranscoder(cfg.Transcode, logger),
		Catalog:      reader,
		Connectivity: a.client,
		Layout:       a.paths,
	}, logger)

	a.update = service.NewUpdateService(orchestrator, a.store, a.paths.Lock(), logger)
	a.check = service.NewVersionService(engine, a.versions, a.store, logger)
	a.search = service.NewSearchService(a.store, reader, a.paths, logger)
	a.download = service.NewDownloadService(a.client, a.paths.Download(), a.paths.Lock(), cfg.Download.MinFreeMB, logger)
	return nil
}

func (a *appContext) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		a.logger.Info("shutting down")
	}
}
