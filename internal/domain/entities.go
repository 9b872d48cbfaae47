package domain

import (
	"path"
	"sort"
	"strings"
	"time"
)

// ResourceVersion identifies a server-side resource generation.
// Versions increase over time but not every integer exists.
type ResourceVersion int

// ProbeResult is the answer of a single oracle call.
type ProbeResult struct {
	Version ResourceVersion
	Exists  bool
}

// VersionSource records how a version was confirmed.
type VersionSource string

const (
	SourceDiscovery VersionSource = "discovery"
	SourceOverride  VersionSource = "override"
	SourceCache     VersionSource = "cache"
)

// VersionRecord is one entry of the confirmed version history.
type VersionRecord struct {
	Version     ResourceVersion `json:"version"`
	Source      VersionSource   `json:"source"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}

// TaskKind distinguishes how an artifact is fetched.
type TaskKind string

const (
	KindManifest TaskKind = "manifest"
	KindDatabase TaskKind = "database"
	KindSound    TaskKind = "sound"
	KindGeneric  TaskKind = "generic"
)

// AcquisitionTask describes one artifact fetched during a phase.
type AcquisitionTask struct {
	TargetPath string
	RemoteKey  string
	Kind       TaskKind
}

// ManifestEntry is one row of a resource manifest.
type ManifestEntry struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// Base returns the file name of the entry without its directory prefix.
func (e ManifestEntry) Base() string {
	return path.Base(e.Name)
}

// Kind classifies the entry for download dispatch.
func (e ManifestEntry) Kind() TaskKind {
	switch path.Ext(e.Name) {
	case ".acb", ".awb":
		return KindSound
	case ".bdb", ".mdb":
		return KindDatabase
	default:
		return KindGeneric
	}
}

// SoundType returns the sound directory ("b", "l", "r", "v") of a sound entry.
func (e ManifestEntry) SoundType() string {
	if i := strings.Index(e.Name, "/"); i > 0 {
		return e.Name[:i]
	}
	return ""
}

// Manifest is the decoded index of a resource version.
type Manifest struct {
	Version    ResourceVersion
	MasterHash string
	Entries    []ManifestEntry
}

// Lookup returns the entry with the given name.
func (m *Manifest) Lookup(name string) (ManifestEntry, bool) {
	for _, e := range m.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

// EventData describes a server-side event read from the master database.
type EventData struct {
	ID    int
	Type  int
	Name  string
	Start time.Time
	End   time.Time
	BgID  int
}

// EventReward is a card offered by the current event.
type EventReward struct {
	RewardID       int
	RecommendOrder int
}

// MasterData is the part of the master database the client acts on.
type MasterData struct {
	EventHappening bool
	Event          EventData
	Available      []EventReward
}

// RewardCards returns the card ids advertised by the current event: the
// background card when nothing is available, otherwise the first and last
// reward by recommend order.
func (m *MasterData) RewardCards() []int {
	if len(m.Available) == 0 {
		return []int{m.Event.BgID - 1}
	}
	rewards := append([]EventReward(nil), m.Available...)
	sort.SliceStable(rewards, func(i, j int) bool {
		return rewards[i].RecommendOrder < rewards[j].RecommendOrder
	})
	return []int{rewards[0].RewardID, rewards[len(rewards)-1].RewardID}
}
