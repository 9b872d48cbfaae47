package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrOracleUnavailable indicates the authoritative version check returned no answer
	ErrOracleUnavailable = errors.New("version check unavailable")

	// ErrAccountBanned indicates the account used for the version check is banned
	ErrAccountBanned = errors.New("current account has been banned")

	// ErrNoNetwork indicates the network is unreachable and no usable local copy exists
	ErrNoNetwork = errors.New("network is unreachable")

	// ErrDownloadFailed indicates an artifact could not be downloaded
	ErrDownloadFailed = errors.New("download failed")

	// ErrTranscodeFailed indicates a downloaded sound could not be converted
	ErrTranscodeFailed = errors.New("transcode failed")

	// ErrBatchItemFailed indicates a single item of a batch download failed
	ErrBatchItemFailed = errors.New("batch item failed")

	// ErrEntryNotFound indicates the manifest has no entry with the requested name
	ErrEntryNotFound = errors.New("manifest entry not found")

	// ErrDataDirBusy indicates another process holds the data directory lock
	ErrDataDirBusy = errors.New("data directory is in use by another process")

	// ErrInsufficientSpace indicates the download destination is low on free space
	ErrInsufficientSpace = errors.New("insufficient free disk space")
)

// ResultCodeBanned is the result code the version check uses for banned accounts.
const ResultCodeBanned = 203

// ResultCodeError carries a numeric result code reported by the version check.
type ResultCodeError struct {
	Code int
}

func (e *ResultCodeError) Error() string {
	return fmt.Sprintf("version check result code %d", e.Code)
}

// Is reports ErrAccountBanned for the banned result code.
func (e *ResultCodeError) Is(target error) bool {
	return target == ErrAccountBanned && e.Code == ResultCodeBanned
}
