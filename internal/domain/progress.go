package domain

// ProgressInfo is reported repeatedly while a download is in flight.
// Current and Max are byte counts; Loading is 0..100.
type ProgressInfo struct {
	Current int64
	Max     int64
	Loading float64
	Name    string
}

// ProgressFunc receives download progress.
type ProgressFunc func(ProgressInfo)

// TranscodeProgress is reported by a Transcoder while converting a file.
type TranscodeProgress struct {
	Current  int
	Total    int
	Progress float64 // 0..100
	Name     string
}

// TranscodeFunc receives transcode progress.
type TranscodeFunc func(TranscodeProgress)

// DiscoveryProgressFunc receives the probe counters of a discovery session.
// current counts probes that found a version; max grows by one round at a time.
type DiscoveryProgressFunc func(current, max int)
