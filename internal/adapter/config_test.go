package adapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if cfg.Server.Host != DefaultHost || cfg.Server.Timeout != 30*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Resource.LatestVersion == 0 || cfg.Resource.PinnedVersion != 0 {
		t.Errorf("resource = %+v", cfg.Resource)
	}
	if !cfg.IsConfigured() {
		t.Error("default config not configured")
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
server:
  host: https://cdn.example
  account: "123:456"
  timeout: 5s
resource:
  pinned_version: 10040000
paths:
  data_dir: /srv/starlight
transcode:
  command: acb2mp3
  args: ["-i", "{src}", "-o", "{dst}"]
ui:
  background: 100200
`)
	t.Setenv("STARLIGHT_LOGGING_LEVEL", "DEBUG")

	cfg, err := LoadConfigFrom(dir)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if cfg.Server.Host != "https://cdn.example" || cfg.Server.Account != "123:456" || cfg.Server.Timeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Resource.PinnedVersion != 10040000 {
		t.Errorf("pinned = %d", cfg.Resource.PinnedVersion)
	}
	if cfg.Paths.DataDir != "/srv/starlight" {
		t.Errorf("data dir = %q", cfg.Paths.DataDir)
	}
	if cfg.Transcode.Command != "acb2mp3" || len(cfg.Transcode.Args) != 4 {
		t.Errorf("transcode = %+v", cfg.Transcode)
	}
	if cfg.UI.Background != 100200 {
		t.Errorf("background = %d", cfg.UI.Background)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("env override not applied: level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfigRejectsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "server: [unterminated\n")
	if _, err := LoadConfigFrom(dir); err == nil {
		t.Error("broken config loaded")
	}
}

func TestVersionStoreSavesLatest(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "resource:\n  latest_version: 1000\n")
	cfg, err := LoadConfigFrom(dir)
	if err != nil {
		t.Fatal(err)
	}

	vs := NewVersionStore(cfg)
	if vs.LatestVersion() != 1000 {
		t.Fatalf("latest = %d", vs.LatestVersion())
	}
	if err := vs.SaveLatestVersion(1200); err != nil {
		t.Fatalf("SaveLatestVersion: %v", err)
	}
	if vs.LatestVersion() != 1200 {
		t.Errorf("latest after save = %d", vs.LatestVersion())
	}

	reloaded, err := LoadConfigFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Resource.LatestVersion != 1200 {
		t.Errorf("persisted latest = %d, want 1200", reloaded.Resource.LatestVersion)
	}
}

func TestVersionStoreWithoutFileLocation(t *testing.T) {
	vs := NewVersionStore(DefaultConfig())
	if err := vs.SaveLatestVersion(5); err == nil {
		t.Error("save without a loaded config succeeded")
	}
	if vs.LatestVersion() == 5 {
		t.Error("failed save changed the latest version")
	}
}

func TestPaths(t *testing.T) {
	p := Paths{DataDir: "/data"}
	cases := map[string]string{
		p.Manifest(1200, ""):        "/data/manifest_1200",
		p.Manifest(1200, ".db"):     "/data/manifest_1200.db",
		p.Master(1200, ".db"):       "/data/master_1200.db",
		p.BGM("bgm_event_1.mp3"):    "/data/bgm/bgm_event_1.mp3",
		p.Card("card_bg_2.unity3d"): "/data/card/card_bg_2.unity3d",
		p.Download():                "/data/download",
	}
	for got, want := range cases {
		if filepath.ToSlash(got) != want {
			t.Errorf("path = %q, want %q", got, want)
		}
	}
}
