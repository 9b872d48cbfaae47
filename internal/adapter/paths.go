package adapter

import (
	"fmt"
	"path/filepath"

	"github.com/mmcdole/starlight/internal/domain"
)

// Paths derives artifact locations from the data directory.
type Paths struct {
	DataDir string
}

func NewPaths(cfg *Config) Paths {
	return Paths{DataDir: cfg.Paths.DataDir}
}

// Manifest returns manifest_{v}{ext}.
func (p Paths) Manifest(v domain.ResourceVersion, ext string) string {
	return filepath.Join(p.DataDir, fmt.Sprintf("manifest_%d%s", v, ext))
}

// Master returns master_{v}{ext}.
func (p Paths) Master(v domain.ResourceVersion, ext string) string {
	return filepath.Join(p.DataDir, fmt.Sprintf("master_%d%s", v, ext))
}

func (p Paths) BGM(name string) string {
	return filepath.Join(p.DataDir, "bgm", name)
}

func (p Paths) Card(name string) string {
	return filepath.Join(p.DataDir, "card", name)
}

// Download is the batch download destination.
func (p Paths) Download() string {
	return filepath.Join(p.DataDir, "download")
}

// Cache holds the bolt store.
func (p Paths) Cache() string {
	return filepath.Join(p.DataDir, "cache")
}

// Lock is the file guarding the data directory against concurrent writers.
func (p Paths) Lock() string {
	return filepath.Join(p.DataDir, ".lock")
}
