package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/starlight/internal/batch"
	"github.com/mmcdole/starlight/internal/domain"
	"github.com/sahilm/fuzzy"
)

// ManifestLocator resolves the local manifest database of a version.
type ManifestLocator interface {
	Manifest(v domain.ResourceVersion, ext string) string
}

// SearchOptions narrows a manifest search.
type SearchOptions struct {
	NotDownloaded bool   // drop entries already present in DownloadDir
	DownloadDir   string // batch download destination
	Limit         int    // 0 = unlimited
	Refresh       bool   // drop the stored index and reread the manifest
}

// SearchResult represents a matching entry with match metadata for highlighting
type SearchResult struct {
	Entry          domain.ManifestEntry
	MatchedIndexes []int // Character positions that matched
	Score          int   // Match score (higher is better)
	Downloaded     bool
}

// entryIndex implements sahilm/fuzzy.Source over lowercase entry names
type entryIndex struct {
	entries    []domain.ManifestEntry
	lowerNames []string
}

func (idx *entryIndex) String(i int) string { return idx.lowerNames[i] }

func (idx *entryIndex) Len() int { return len(idx.entries) }

// SearchService handles fuzzy search over the manifest of a version
type SearchService struct {
	store   domain.Store
	catalog domain.CatalogReader
	paths   ManifestLocator
	logger  *slog.Logger
	exists  func(path string) bool
}

// NewSearchService creates a new search service
func NewSearchService(store domain.Store, catalog domain.CatalogReader, paths ManifestLocator, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		store:   store,
		catalog: catalog,
		paths:   paths,
		logger:  logger,
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// Entries returns the manifest entries of v, from the store when indexed and
// from the local manifest database otherwise.
func (s *SearchService) Entries(ctx context.Context, v domain.ResourceVersion) ([]domain.ManifestEntry, error) {
	if entries, ok := s.store.GetManifestEntries(v); ok {
		return entries, nil
	}

	path := s.paths.Manifest(v, ".db")
	if !s.exists(path) {
		return nil, fmt.Errorf("manifest of version %d: %w", v, domain.ErrEntryNotFound)
	}
	m, err := s.catalog.ReadManifest(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read manifest of version %d: %w", v, err)
	}
	if err := s.store.SaveManifestEntries(v, m.Entries); err != nil {
		s.logger.Warn("failed to index manifest", "version", v, "error", err)
	}
	s.logger.Debug("indexed manifest", "version", v, "entries", len(m.Entries))
	return m.Entries, nil
}

// Search returns entries of v whose names match every whitespace separated
// term of query, best match first. An empty query matches everything.
func (s *SearchService) Search(ctx context.Context, v domain.ResourceVersion, query string, opts SearchOptions) ([]SearchResult, error) {
	if opts.Refresh {
		s.store.InvalidateManifest(v)
	}
	entries, err := s.Entries(ctx, v)
	if err != nil {
		return nil, err
	}

	results := rank(entries, strings.Fields(strings.ToLower(query)))

	out := results[:0]
	for _, r := range results {
		if opts.DownloadDir != "" {
			r.Downloaded = s.exists(downloadedPath(opts.DownloadDir, r.Entry))
		}
		if opts.NotDownloaded && r.Downloaded {
			continue
		}
		out = append(out, r)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	s.logger.Debug("search complete", "version", v, "query", query, "results", len(out))
	return out, nil
}

// Lookup returns the entries named exactly by names, in order.
func (s *SearchService) Lookup(ctx context.Context, v domain.ResourceVersion, names []string) ([]domain.ManifestEntry, error) {
	entries, err := s.Entries(ctx, v)
	if err != nil {
		return nil, err
	}
	m := &domain.Manifest{Entries: entries}
	out := make([]domain.ManifestEntry, 0, len(names))
	var missing []error
	for _, name := range names {
		e, ok := m.Lookup(name)
		if !ok {
			missing = append(missing, fmt.Errorf("%s: %w", name, domain.ErrEntryNotFound))
			continue
		}
		out = append(out, e)
	}
	return out, errors.Join(missing...)
}

// downloadedPath is where a finished batch download of e lands.
func downloadedPath(dir string, e domain.ManifestEntry) string {
	p := batch.Destination(dir, e)
	if e.Kind() == domain.KindDatabase {
		p += filepath.Ext(e.Name)
	}
	return p
}

// rank prefilters with every term and orders by the longest one.
func rank(entries []domain.ManifestEntry, terms []string) []SearchResult {
	if len(terms) == 0 {
		out := make([]SearchResult, len(entries))
		for i, e := range entries {
			out[i] = SearchResult{Entry: e}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Entry.Name < out[j].Entry.Name })
		return out
	}

	idx := &entryIndex{}
	for _, e := range entries {
		name := strings.ToLower(e.Name)
		ok := true
		for _, t := range terms {
			if !lfuzzy.MatchFold(t, name) {
				ok = false
				break
			}
		}
		if ok {
			idx.entries = append(idx.entries, e)
			idx.lowerNames = append(idx.lowerNames, name)
		}
	}

	longest := terms[0]
	for _, t := range terms[1:] {
		if len(t) > len(longest) {
			longest = t
		}
	}

	matches := fuzzy.FindFrom(longest, idx)
	out := make([]SearchResult, len(matches))
	for i, m := range matches {
		out[i] = SearchResult{
			Entry:          idx.entries[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return out
}
