package cache

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/review-tally/internal/domain"
)

func newTestCache(t *testing.T) *Cache {
	c, err := Open(t.TempDir(), log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return c
}

func sampleReviews() []domain.Review {
	return []domain.Review{
		{
			Repo:        "org/repo",
			PullNumber:  7,
			Reviewer:    "alice",
			State:       "APPROVED",
			SubmittedAt: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)

	_, ok := c.GetReviews("org", "repo", 7)
	assert.False(t, ok, "expected a miss before any put")

	c.PutReviews("org", "repo", 7, "closed", sampleReviews())
	got, ok := c.GetReviews("org", "repo", 7)
	require.True(t, ok)
	assert.Equal(t, sampleReviews(), got)
}

func TestCache_ExpiredEntryIsAMiss(t *testing.T) {
	c := newTestCache(t)

	expired := time.Now().Add(-time.Minute)
	data, err := json.Marshal(entry{ExpiresAt: &expired, Reviews: sampleReviews()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.path("org", "repo", 7), data, 0o644))

	_, ok := c.GetReviews("org", "repo", 7)
	assert.False(t, ok)
	// The expired file is removed on read.
	_, err = os.Stat(c.path("org", "repo", 7))
	assert.True(t, os.IsNotExist(err))
}

func TestCache_OpenPRGetsATTL(t *testing.T) {
	c := newTestCache(t)
	c.PutReviews("org", "repo", 7, "open", sampleReviews())

	data, err := os.ReadFile(c.path("org", "repo", 7))
	require.NoError(t, err)
	var e entry
	require.NoError(t, json.Unmarshal(data, &e))
	require.NotNil(t, e.ExpiresAt, "open PRs must carry an expiry")
	assert.WithinDuration(t, time.Now().Add(openPRTTL), *e.ExpiresAt, time.Minute)
}

func TestCache_ClearAndStats(t *testing.T) {
	c := newTestCache(t)
	c.PutReviews("org", "repo", 1, "closed", sampleReviews())
	c.PutReviews("org", "repo", 2, "closed", sampleReviews())

	expired := time.Now().Add(-time.Minute)
	data, err := json.Marshal(entry{ExpiresAt: &expired})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.path("org", "repo", 3), data, 0o644))

	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEntries)
	assert.Equal(t, 2, stats.ValidEntries)
	assert.Equal(t, 1, stats.ExpiredEntries)

	removed, err := c.ClearExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = c.ClearAll()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	leftover, err := filepath.Glob(filepath.Join(c.Dir(), "*.json"))
	require.NoError(t, err)
	assert.Empty(t, leftover)
}
