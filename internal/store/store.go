package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/starlight/internal/domain"
	bolt "go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"
)

// Bucket names
var (
	bucketVersions = []byte("versions")
	bucketManifest = []byte("manifest")

	buckets = [][]byte{bucketVersions, bucketManifest}
)

// CacheStore implements domain.Store using BoltDB.
type CacheStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

// NewCacheStore opens starlight.db in dir. An empty dir gives a memory-only
// store.
func NewCacheStore(dir string) (*CacheStore, error) {
	if dir == "" {
		return &CacheStore{cache: make(map[string][]byte)}, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "starlight.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &CacheStore{db: db, cache: make(map[string][]byte)}, nil
}

func (s *CacheStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *CacheStore) get(bucket []byte, key string, dest interface{}) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *CacheStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
}

func (s *CacheStore) delete(bucket []byte, key string) {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	delete(s.cache, cacheKey)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b != nil {
			b.Delete([]byte(key))
		}
		return nil
	})
}

// scan returns every value of bucket in key order.
func (s *CacheStore) scan(bucket []byte) ([][]byte, error) {
	if s.db == nil {
		prefix := string(bucket) + ":"
		s.mu.RLock()
		keys := make([]string, 0, len(s.cache))
		for k := range s.cache {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		out := make([][]byte, 0, len(keys))
		for _, k := range keys {
			out = append(out, s.cache[k])
		}
		s.mu.RUnlock()
		return out, nil
	}

	var out [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			out = append(out, append([]byte(nil), v...))
			return nil
		})
	})
	return out, err
}

// === Versions ===

// versionKey is zero padded so bucket order is version order.
func versionKey(v domain.ResourceVersion) string {
	return fmt.Sprintf("%010d", int(v))
}

// RecordVersion stores rec, replacing an earlier record of the same version.
func (s *CacheStore) RecordVersion(rec domain.VersionRecord) error {
	if rec.Version <= 0 {
		return fmt.Errorf("record version %d: not a resource version", rec.Version)
	}
	return s.set(bucketVersions, versionKey(rec.Version), rec)
}

// Versions returns the confirmed version history, oldest first.
func (s *CacheStore) Versions() ([]domain.VersionRecord, error) {
	values, err := s.scan(bucketVersions)
	if err != nil {
		return nil, fmt.Errorf("scan versions: %w", err)
	}
	out := make([]domain.VersionRecord, 0, len(values))
	for _, data := range values {
		var rec domain.VersionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode version record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// === Manifest index ===

func (s *CacheStore) GetManifestEntries(v domain.ResourceVersion) ([]domain.ManifestEntry, bool) {
	var entries []domain.ManifestEntry
	ok := s.get(bucketManifest, versionKey(v), &entries)
	return entries, ok
}

func (s *CacheStore) SaveManifestEntries(v domain.ResourceVersion, entries []domain.ManifestEntry) error {
	return s.set(bucketManifest, versionKey(v), entries)
}

func (s *CacheStore) InvalidateManifest(v domain.ResourceVersion) {
	s.delete(bucketManifest, versionKey(v))
}

func (s *CacheStore) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range buckets {
			if err := tx.DeleteBucket(bucket); err != nil && err != bolterrors.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ domain.Store = (*CacheStore)(nil)
