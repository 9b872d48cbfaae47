package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mmcdole/starlight/internal/domain"
)

type fakeResolver struct {
	version domain.ResourceVersion
	err     error
}

func (f *fakeResolver) Discover(ctx context.Context, cached domain.ResourceVersion, onProgress domain.DiscoveryProgressFunc) (domain.ResourceVersion, error) {
	if onProgress != nil {
		onProgress(1, 20)
	}
	return f.version, f.err
}

type fakeVersions struct {
	mu     sync.Mutex
	latest domain.ResourceVersion
}

func (f *fakeVersions) PinnedVersion() domain.ResourceVersion { return 0 }

func (f *fakeVersions) LatestVersion() domain.ResourceVersion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

func (f *fakeVersions) SaveLatestVersion(v domain.ResourceVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = v
	return nil
}

// fakeDownloader writes the hash into dest and fails for hashes in fail.
type fakeDownloader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeDownloader) write(hash, dest string, onProgress domain.ProgressFunc) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, hash)
	fail := f.fail[hash]
	f.mu.Unlock()
	if fail {
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(domain.ProgressInfo{Current: 1, Max: 1, Loading: 100, Name: filepath.Base(dest)})
	}
	return dest, os.WriteFile(dest, []byte(hash), 0644)
}

func (f *fakeDownloader) DownloadManifest(ctx context.Context, v domain.ResourceVersion, dest string, onProgress domain.ProgressFunc) (string, error) {
	return f.write(fmt.Sprintf("manifest-%d", v), dest+".db", onProgress)
}

func (f *fakeDownloader) DownloadDatabase(ctx context.Context, hash, dest string, onProgress domain.ProgressFunc, ext string) (string, error) {
	return f.write(hash, dest+ext, onProgress)
}

func (f *fakeDownloader) DownloadSound(ctx context.Context, soundType, hash, dest string, onProgress domain.ProgressFunc) (string, error) {
	return f.write(hash, dest, onProgress)
}

func (f *fakeDownloader) DownloadAsset(ctx context.Context, hash, dest string, onProgress domain.ProgressFunc) (string, error) {
	return f.write(hash, dest, onProgress)
}

type fakeCatalog struct {
	manifest *domain.Manifest
	reads    int
}

func (f *fakeCatalog) ReadManifest(ctx context.Context, path string) (*domain.Manifest, error) {
	f.reads++
	m := *f.manifest
	return &m, nil
}

func (f *fakeCatalog) ReadMaster(ctx context.Context, path string) (*domain.MasterData, error) {
	return &domain.MasterData{}, nil
}

type dirLayout string

func (d dirLayout) Manifest(v domain.ResourceVersion, ext string) string {
	return filepath.Join(string(d), fmt.Sprintf("manifest_%d%s", v, ext))
}

func (d dirLayout) Master(v domain.ResourceVersion, ext string) string {
	return filepath.Join(string(d), fmt.Sprintf("master_%d%s", v, ext))
}

func (d dirLayout) BGM(name string) string  { return filepath.Join(string(d), "bgm", name) }
func (d dirLayout) Card(name string) string { return filepath.Join(string(d), "card", name) }

var testEntries = []domain.ManifestEntry{
	{Name: "master.mdb", Hash: "masterhash"},
	{Name: "b/bgm_event_3001.acb", Hash: "h3001"},
	{Name: "b/bgm_event_3002.acb", Hash: "h3002"},
	{Name: "l/song_1001.acb", Hash: "h1001"},
	{Name: "card_bg_100001.unity3d", Hash: "hcard"},
	{Name: "musicscores_m001.bdb", Hash: "hscore"},
}
