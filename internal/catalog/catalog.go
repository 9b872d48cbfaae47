// Package catalog reads the sqlite databases the service ships: the
// per-version manifest and the master database.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/starlight/internal/domain"
	_ "modernc.org/sqlite"
)

// MasterName is the manifest entry holding the master database.
const MasterName = "master.mdb"

// timeLayout is the format of event timestamps in the master database.
const timeLayout = "2006-01-02 15:04:05"

// Reader implements domain.CatalogReader.
type Reader struct {
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
}

// NewReader creates a catalog reader. Event times are interpreted in JST.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{now: time.Now, location: jst, logger: logger}
}

var jst = time.FixedZone("JST", 9*60*60)

func open(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	return db, nil
}

// ReadManifest reads every entry of a manifest database.
func (r *Reader) ReadManifest(ctx context.Context, path string) (*domain.Manifest, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT name, hash FROM manifests")
	if err != nil {
		return nil, fmt.Errorf("query manifests: %w", err)
	}
	defer rows.Close()

	m := &domain.Manifest{}
	for rows.Next() {
		var e domain.ManifestEntry
		if err := rows.Scan(&e.Name, &e.Hash); err != nil {
			return nil, fmt.Errorf("scan manifest row: %w", err)
		}
		if e.Name == MasterName {
			m.MasterHash = e.Hash
		}
		m.Entries = append(m.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read manifests: %w", err)
	}
	if m.MasterHash == "" {
		return nil, fmt.Errorf("%s: %w", MasterName, domain.ErrEntryNotFound)
	}

	r.logger.Debug("read manifest", "path", path, "entries", len(m.Entries))
	return m, nil
}

// ReadMaster reads the current event state from a master database.
func (r *Reader) ReadMaster(ctx context.Context, path string) (*domain.MasterData, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	event, ok, err := r.latestEvent(ctx, db)
	if err != nil {
		return nil, err
	}
	data := &domain.MasterData{}
	if !ok {
		return data, nil
	}

	data.Event = event
	now := r.now().In(r.location)
	data.EventHappening = !now.Before(event.Start) && now.Before(event.End)

	data.Available, err = eventRewards(ctx, db, event.ID)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("read master", "path", path, "event", event.ID, "happening", data.EventHappening)
	return data, nil
}

func (r *Reader) latestEvent(ctx context.Context, db *sql.DB) (domain.EventData, bool, error) {
	row := db.QueryRowContext(ctx,
		"SELECT id, type, name, event_start, event_end, bg_id FROM event_data ORDER BY event_start DESC LIMIT 1")

	var (
		e          domain.EventData
		start, end string
	)
	if err := row.Scan(&e.ID, &e.Type, &e.Name, &start, &end, &e.BgID); err != nil {
		if err == sql.ErrNoRows {
			return e, false, nil
		}
		return e, false, fmt.Errorf("query event_data: %w", err)
	}

	var err error
	if e.Start, err = time.ParseInLocation(timeLayout, strings.TrimSpace(start), r.location); err != nil {
		return e, false, fmt.Errorf("parse event_start %q: %w", start, err)
	}
	if e.End, err = time.ParseInLocation(timeLayout, strings.TrimSpace(end), r.location); err != nil {
		return e, false, fmt.Errorf("parse event_end %q: %w", end, err)
	}
	return e, true, nil
}

func eventRewards(ctx context.Context, db *sql.DB, eventID int) ([]domain.EventReward, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT reward_id, recommend_order FROM event_available WHERE event_id = ?", eventID)
	if err != nil {
		return nil, fmt.Errorf("query event_available: %w", err)
	}
	defer rows.Close()

	var out []domain.EventReward
	for rows.Next() {
		var rw domain.EventReward
		if err := rows.Scan(&rw.RewardID, &rw.RecommendOrder); err != nil {
			return nil, fmt.Errorf("scan event_available row: %w", err)
		}
		out = append(out, rw)
	}
	return out, rows.Err()
}
