package domain

// Store handles the local cache (BoltDB + memory).
type Store interface {
	// === Versions ===
	RecordVersion(rec VersionRecord) error
	Versions() ([]VersionRecord, error)

	// === Manifest index ===
	GetManifestEntries(v ResourceVersion) ([]ManifestEntry, bool)
	SaveManifestEntries(v ResourceVersion, entries []ManifestEntry) error
	InvalidateManifest(v ResourceVersion)

	InvalidateAll()
	Close() error
}
