package domain

import "context"

// ProbeOracle answers whether a resource version exists.
// Failures are folded into a false answer; it never returns an error.
type ProbeOracle interface {
	Probe(ctx context.Context, version ResourceVersion) ProbeResult
}

// VersionAuthority is the single-shot authoritative version check.
// It returns 0 when no answer is available and a *ResultCodeError when the
// server rejects the account.
type VersionAuthority interface {
	Check(ctx context.Context) (ResourceVersion, error)
}

// VersionStore persists the confirmed resource version.
type VersionStore interface {
	PinnedVersion() ResourceVersion
	LatestVersion() ResourceVersion
	SaveLatestVersion(v ResourceVersion) error
}

// Downloader fetches artifacts. Every method returns the final path on
// success, an empty path with a nil error on a clean failure, and an error
// when the transfer itself broke.
type Downloader interface {
	DownloadManifest(ctx context.Context, version ResourceVersion, dest string, onProgress ProgressFunc) (string, error)
	DownloadDatabase(ctx context.Context, hash, dest string, onProgress ProgressFunc, ext string) (string, error)
	DownloadSound(ctx context.Context, soundType, hash, dest string, onProgress ProgressFunc) (string, error)
	DownloadAsset(ctx context.Context, hash, dest string, onProgress ProgressFunc) (string, error)
}

// Transcoder converts a downloaded sound container into a playable file.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string, onProgress TranscodeFunc) (string, error)
}

// CatalogReader decodes downloaded manifest and master databases.
type CatalogReader interface {
	ReadManifest(ctx context.Context, path string) (*Manifest, error)
	ReadMaster(ctx context.Context, path string) (*MasterData, error)
}

// Connectivity reports whether the remote service is reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}
