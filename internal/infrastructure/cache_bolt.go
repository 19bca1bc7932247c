package infrastructure

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yourusername/nicedowns-go/internal/domain"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var cacheBuckets = struct {
	Metadata    []byte
	Resolutions []byte
}{
	Metadata:    []byte("__metadata__"),
	Resolutions: []byte("resolutions"),
}

var cacheVersionKey = []byte("version")

const cacheVersion = 1

type cacheEntry struct {
	StoredAt   time.Time          `json:"stored_at"`
	Resolution *domain.Resolution `json:"resolution"`
}

// BoltDescriptorCache keeps recent resolutions on disk for a fixed TTL
type BoltDescriptorCache struct {
	db     *bbolt.DB
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewBoltDescriptorCache opens the cache file, creating buckets as needed.
// A stored version other than the current one drops all entries.
func NewBoltDescriptorCache(path string, ttl time.Duration, logger *zap.Logger) (*BoltDescriptorCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucketIfNotExists(cacheBuckets.Metadata)
		if err != nil {
			return err
		}

		var version int
		if raw := metadata.Get(cacheVersionKey); raw != nil {
			if err := json.Unmarshal(raw, &version); err != nil {
				return err
			}
		}
		if version != cacheVersion && tx.Bucket(cacheBuckets.Resolutions) != nil {
			if err := tx.DeleteBucket(cacheBuckets.Resolutions); err != nil {
				return err
			}
		}
		if _, err := tx.CreateBucketIfNotExists(cacheBuckets.Resolutions); err != nil {
			return err
		}

		raw, err := json.Marshal(cacheVersion)
		if err != nil {
			return err
		}
		return metadata.Put(cacheVersionKey, raw)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise cache: %w", err)
	}

	return &BoltDescriptorCache{db: db, ttl: ttl, now: time.Now, logger: logger}, nil
}

// Get returns a cached resolution that has not expired
func (c *BoltDescriptorCache) Get(input string) (*domain.Resolution, bool) {
	var entry cacheEntry
	found := false
	err := c.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(cacheBuckets.Resolutions).Get([]byte(input))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		c.logger.Warn("Failed to read cache entry", zap.String("input", input), zap.Error(err))
		return nil, false
	}
	if !found || entry.Resolution == nil || entry.Resolution.Descriptor == nil {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.StoredAt) > c.ttl {
		return nil, false
	}
	return entry.Resolution, true
}

// Put stores a resolution. Degraded resolutions are not cached.
func (c *BoltDescriptorCache) Put(input string, resolution *domain.Resolution) error {
	if resolution == nil || resolution.Degraded {
		return nil
	}
	raw, err := json.Marshal(cacheEntry{StoredAt: c.now(), Resolution: resolution})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(cacheBuckets.Resolutions).Put([]byte(input), raw)
	})
}

// Prune removes expired entries and returns how many were dropped
func (c *BoltDescriptorCache) Prune() (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	removed := 0
	err := c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(cacheBuckets.Resolutions)
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var entry cacheEntry
			if err := json.Unmarshal(v, &entry); err != nil || c.now().Sub(entry.StoredAt) > c.ttl {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	return removed, err
}

// Close closes the cache file
func (c *BoltDescriptorCache) Close() error {
	return c.db.Close()
}
