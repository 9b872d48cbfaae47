package acquire

import (
	"fmt"

	"github.com/mmcdole/starlight/internal/domain"
)

// State is the position of an acquisition session in its chain.
type State int

const (
	StateIdle State = iota
	StateCheckingVersion
	StateFetchingManifest
	StateFetchingDatabase
	StateFetchingDerivedAssets
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingVersion:
		return "checking-version"
	case StateFetchingManifest:
		return "fetching-manifest"
	case StateFetchingDatabase:
		return "fetching-database"
	case StateFetchingDerivedAssets:
		return "fetching-derived-assets"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further events follow s.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// Alert is a user-facing failure notice.
type Alert struct {
	Title   string
	Message string
}

// Event is one entry of a session's progress stream.
type Event struct {
	State   State
	Text    string
	Loading float64 // active phase, 0..100
	Overall float64 // whole session, 0..100
	Alert   *Alert  // set on StateFailed
	Result  *Result // set on StateReady
}

// Result is what a successful session produced.
type Result struct {
	Version      domain.ResourceVersion
	Source       domain.VersionSource
	Offline      bool
	ManifestPath string
	MasterPath   string
	Manifest     *domain.Manifest
	Master       *domain.MasterData
	RewardCards  []int
	Assets       []string
}

// PhaseError is the failure of one phase; it halts the session.
type PhaseError struct {
	State State
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
