package acquire

import (
	"context"
	"fmt"

	"github.com/mmcdole/starlight/internal/domain"
	"github.com/mmcdole/starlight/internal/progress"
)

// Event types that ship without their own BGM.
var silentEventTypes = map[int]bool{2: true, 6: true}

// derivedAsset is one artifact the master data asks for.
type derivedAsset struct {
	name   string
	entry  string // manifest entry name
	task   domain.AcquisitionTask
	output string // transcode destination, empty for single-phase assets
}

// plan lists the derived assets that are not present locally.
func (s *session) plan(master *domain.MasterData, cards []int) []derivedAsset {
	var out []derivedAsset

	if master.EventHappening && !silentEventTypes[master.Event.Type] {
		name := fmt.Sprintf("bgm_event_%d", master.Event.ID)
		mp3 := s.deps.Layout.BGM(name + ".mp3")
		if !s.deps.Exists(mp3) {
			out = append(out, derivedAsset{
				name:  name,
				entry: "b/" + name + ".acb",
				task: domain.AcquisitionTask{
					TargetPath: s.deps.Layout.BGM(name + ".acb"),
					Kind:       domain.KindSound,
				},
				output: mp3,
			})
		}
	}

	card := s.req.Background
	if card == 0 && master.EventHappening && len(cards) > 0 {
		card = cards[0] + 1
	}
	if card > 0 {
		name := fmt.Sprintf("card_bg_%d", card)
		target := s.deps.Layout.Card(name + ".unity3d")
		if !s.deps.Exists(target) {
			out = append(out, derivedAsset{
				name:  name,
				entry: name + ".unity3d",
				task: domain.AcquisitionTask{
					TargetPath: target,
					Kind:       domain.KindGeneric,
				},
			})
		}
	}
	return out
}

func (s *session) fetchDerived(ctx context.Context, manifest *domain.Manifest, master *domain.MasterData, cards []int) ([]string, error) {
	assets := s.plan(master, cards)
	if s.offline && len(assets) > 0 {
		s.logger.Info("offline, skipping derived assets", "count", len(assets))
		return nil, nil
	}
	if len(assets) == 0 {
		return nil, nil
	}

	share := phaseWeights[3] / float64(len(assets))
	for range assets {
		s.tracker.Add(share)
	}

	var done []string
	for _, a := range assets {
		s.enter(StateFetchingDerivedAssets, "Fetching "+a.name)
		path, err := s.fetchAsset(ctx, manifest, a)
		if err != nil {
			return done, err
		}
		done = append(done, path)
		s.advance()
	}
	return done, nil
}

func (s *session) fetchAsset(ctx context.Context, manifest *domain.Manifest, a derivedAsset) (string, error) {
	entry, ok := manifest.Lookup(a.entry)
	if !ok {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrDownloadFailed, a.entry, domain.ErrEntryNotFound)
	}
	a.task.RemoteKey = entry.Hash

	transcode := a.output != ""
	onProgress := func(p domain.ProgressInfo) {
		loading := p.Loading
		if transcode {
			loading = progress.Split(false, p.Loading)
		}
		s.report("Fetching "+a.name, loading)
	}

	var (
		path string
		err  error
	)
	switch a.task.Kind {
	case domain.KindSound:
		path, err = s.deps.Downloader.DownloadSound(ctx, entry.SoundType(), entry.Hash, a.task.TargetPath, onProgress)
	default:
		path, err = s.deps.Downloader.DownloadAsset(ctx, entry.Hash, a.task.TargetPath, onProgress)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrDownloadFailed, a.entry, err)
	}
	if path == "" {
		return "", fmt.Errorf("%w: %s not available", domain.ErrDownloadFailed, a.entry)
	}
	if !transcode {
		s.report("Fetching "+a.name, 100)
		return path, nil
	}

	s.report("Decoding "+a.name, progress.Split(true, 0))
	out, err := s.deps.Transcoder.Transcode(ctx, path, a.output, func(p domain.TranscodeProgress) {
		s.report("Decoding "+a.name, progress.Split(true, p.Progress))
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrTranscodeFailed, a.name, err)
	}
	if out == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrTranscodeFailed, a.name)
	}
	s.report("Decoding "+a.name, 100)
	return out, nil
}
