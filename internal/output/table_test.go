package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/review-tally/internal/domain"
	"github.com/naka-gawa/review-tally/internal/usecase"
)

func TestRenderTally(t *testing.T) {
	var buf bytes.Buffer
	RenderTally(&buf, []domain.TallyEntry{
		{Login: "alice", Reviews: 2},
		{Login: "bob", Reviews: 1},
	})

	out := buf.String()
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "bob")
	// Ranked order is preserved in the rendering.
	assert.Less(t, strings.Index(out, "alice"), strings.Index(out, "bob"))
}

func TestRenderFailures(t *testing.T) {
	var buf bytes.Buffer
	RenderFailures(&buf, nil)
	assert.Empty(t, buf.String(), "no failures means no output")

	RenderFailures(&buf, []domain.FetchFailure{
		{Repo: "org/repo", PullNumber: 3, Err: assert.AnError},
	})
	assert.Contains(t, buf.String(), "org/repo#3")
}

func TestExportSprintCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sprints.csv")
	sprints := []usecase.SprintMetrics{
		{Sprint: "Sprint 1 (2024-01-01 - 2024-01-15)", TotalReviews: 6, TotalComments: 9, UniqueReviewers: 3, ReviewsPerReviewer: 2, AvgCommentsPerReview: 1.5, MeanResponseHours: 12.5},
	}

	require.NoError(t, ExportSprintCSV(path, sprints))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "sprint,total_reviews,total_comments,unique_reviewers,reviews_per_reviewer,avg_comments_per_review,mean_response_hours", lines[0])
	assert.Contains(t, lines[1], "Sprint 1 (2024-01-01 - 2024-01-15)")
	assert.Contains(t, lines[1], "6,9,3,2.00,1.50,12.50")
}

func TestCommentMetricsSelected(t *testing.T) {
	assert.False(t, CommentMetricsSelected([]string{MetricReviews}))
	assert.False(t, CommentMetricsSelected(nil))
	assert.True(t, CommentMetricsSelected([]string{MetricReviews, MetricComments}))
	assert.True(t, CommentMetricsSelected([]string{MetricAvgComments}))
}
