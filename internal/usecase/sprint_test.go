package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/review-tally/internal/domain"
)

func TestSprintPeriods(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	periods := SprintPeriods(start, end)
	require.Len(t, periods, 3)
	assert.Equal(t, start, periods[0].Start)
	assert.Equal(t, start.AddDate(0, 0, 14), periods[0].End)
	assert.Equal(t, periods[0].End, periods[1].Start)
	// The final sprint is truncated at the end date.
	assert.Equal(t, end, periods[2].End)
	assert.Equal(t, "Sprint 1 (2024-01-01 - 2024-01-15)", periods[0].Name)
}

func TestSprintPeriods_EmptyRange(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, SprintPeriods(day, day))
}

func TestComputeSprintMetrics(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC)
	periods := SprintPeriods(start, end)
	require.Len(t, periods, 2)

	created := start
	prCreated := map[string]time.Time{"org/repo#1": created}

	reviews := []domain.Review{
		{Repo: "org/repo", PullNumber: 1, Reviewer: "alice", SubmittedAt: start.Add(24 * time.Hour), CommentCount: 2},
		{Repo: "org/repo", PullNumber: 1, Reviewer: "bob", SubmittedAt: start.Add(48 * time.Hour), CommentCount: 4},
		{Repo: "org/repo", PullNumber: 1, Reviewer: "alice", SubmittedAt: start.Add(72 * time.Hour)},
		// A submission exactly on the sprint boundary belongs to the next sprint.
		{Repo: "org/repo", PullNumber: 1, Reviewer: "carol", SubmittedAt: periods[0].End},
		// A submission exactly at the end date lands in the final sprint.
		{Repo: "org/repo", PullNumber: 1, Reviewer: "dave", SubmittedAt: end},
		// Outside the range entirely.
		{Repo: "org/repo", PullNumber: 1, Reviewer: "eve", SubmittedAt: end.Add(time.Hour)},
	}

	metrics := ComputeSprintMetrics(periods, reviews, prCreated)
	require.Len(t, metrics, 2)

	first := metrics[0]
	assert.Equal(t, 3, first.TotalReviews)
	assert.Equal(t, 2, first.UniqueReviewers)
	assert.InDelta(t, 1.5, first.ReviewsPerReviewer, 0.001)
	assert.InDelta(t, 48.0, first.MeanResponseHours, 0.001)
	assert.Equal(t, 6, first.TotalComments)
	assert.InDelta(t, 2.0, first.AvgCommentsPerReview, 0.001)

	second := metrics[1]
	assert.Equal(t, 2, second.TotalReviews)
	assert.Equal(t, 2, second.UniqueReviewers)
	assert.Zero(t, second.TotalComments)
	assert.Zero(t, second.AvgCommentsPerReview)
}
