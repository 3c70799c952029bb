// Package cache provides a best-effort file-backed cache of per-PR review
// lists. Failures to read or write the cache are logged and never fail a
// run.
package cache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/naka-gawa/review-tally/internal/domain"
)

// openPRTTL bounds how long reviews of a still-open PR stay fresh.
// Closed and merged PRs cache forever since their review list is final.
const openPRTTL = time.Hour

// Cache stores one JSON file per pull request under dir.
type Cache struct {
	dir    string
	logger *log.Logger
}

type entry struct {
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Reviews   []domain.Review `json:"reviews"`
}

// Stats summarizes the cache contents.
type Stats struct {
	Dir            string
	TotalEntries   int
	ValidEntries   int
	ExpiredEntries int
	SizeBytes      int64
}

// Open prepares the cache directory. An empty dir selects
// <user cache dir>/review-tally.
func Open(dir string, logger *log.Logger) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user cache dir: %w", err)
		}
		dir = filepath.Join(base, "review-tally")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) path(owner, repo string, number int) string {
	return filepath.Join(c.dir, fmt.Sprintf("pr_reviews-%s-%s-%d.json", owner, repo, number))
}

// GetReviews returns the cached review list for a PR, or false on a miss
// or an expired entry.
func (c *Cache) GetReviews(owner, repo string, number int) ([]domain.Review, bool) {
	data, err := os.ReadFile(c.path(owner, repo, number))
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Printf("Cache: dropping unreadable entry for %s/%s#%d: %v", owner, repo, number, err)
		_ = os.Remove(c.path(owner, repo, number))
		return nil, false
	}
	if e.ExpiresAt != nil && time.Now().After(*e.ExpiresAt) {
		_ = os.Remove(c.path(owner, repo, number))
		return nil, false
	}
	c.logger.Printf("Cache HIT: reviews for %s/%s#%d", owner, repo, number)
	return e.Reviews, true
}

// PutReviews stores the review list for a PR. Open PRs expire after
// openPRTTL; anything else never expires.
func (c *Cache) PutReviews(owner, repo string, number int, prState string, reviews []domain.Review) {
	e := entry{Reviews: reviews}
	if prState == "open" {
		expires := time.Now().Add(openPRTTL)
		e.ExpiresAt = &expires
	}
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Printf("Cache: failed to encode entry for %s/%s#%d: %v", owner, repo, number, err)
		return
	}
	if err := os.WriteFile(c.path(owner, repo, number), data, 0o644); err != nil {
		c.logger.Printf("Cache: failed to write entry for %s/%s#%d: %v", owner, repo, number, err)
		return
	}
	ttl := "forever"
	if e.ExpiresAt != nil {
		ttl = openPRTTL.String()
	}
	c.logger.Printf("Cache SET: reviews for %s/%s#%d (TTL: %s)", owner, repo, number, ttl)
}

// ClearAll removes every cache entry and reports how many were removed.
func (c *Cache) ClearAll() (int, error) {
	paths, err := c.entryPaths()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range paths {
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}

// ClearExpired removes only expired entries and reports how many were removed.
func (c *Cache) ClearExpired() (int, error) {
	paths, err := c.entryPaths()
	if err != nil {
		return 0, err
	}
	removed := 0
	now := time.Now()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil || (e.ExpiresAt != nil && now.After(*e.ExpiresAt)) {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// GetStats walks the cache and summarizes it.
func (c *Cache) GetStats() (Stats, error) {
	paths, err := c.entryPaths()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Dir: c.dir}
	now := time.Now()
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		stats.TotalEntries++
		stats.SizeBytes += info.Size()

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil {
			stats.ExpiredEntries++
			continue
		}
		if e.ExpiresAt != nil && now.After(*e.ExpiresAt) {
			stats.ExpiredEntries++
		} else {
			stats.ValidEntries++
		}
	}
	return stats, nil
}

func (c *Cache) entryPaths() ([]string, error) {
	return filepath.Glob(filepath.Join(c.dir, "pr_reviews-*.json"))
}
