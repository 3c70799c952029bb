package usecase

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/review-tally/internal/domain"
)

// ReviewerMetrics holds the per-reviewer figures derived from one run.
// Response time is measured from PR creation to review submission.
// Comment figures are zero unless comment fetching was enabled.
type ReviewerMetrics struct {
	Login                string  `json:"login"`
	Reviews              int     `json:"reviews"`
	Comments             int     `json:"comments"`
	AvgCommentsPerReview float64 `json:"avg_comments_per_review"`
	ActiveDays           int     `json:"active_days"`
	MeanResponseHours    float64 `json:"mean_response_hours"`
	MedianResponseHours  float64 `json:"median_response_hours"`
}

// ComputeReviewerMetrics derives per-reviewer metrics from the collected
// reviews. prCreated maps a PR key (see domain.Review.PRKey) to the PR's
// creation time; reviews whose PR is unknown contribute to counts but not
// to response times. Ordering matches the tally: reviews descending,
// login ascending on ties.
func ComputeReviewerMetrics(reviews []domain.Review, prCreated map[string]time.Time) []ReviewerMetrics {
	type acc struct {
		reviews   int
		comments  []float64
		days      map[string]bool
		responses []float64
	}
	byLogin := make(map[string]*acc)

	for _, review := range reviews {
		a := byLogin[review.Reviewer]
		if a == nil {
			a = &acc{days: make(map[string]bool)}
			byLogin[review.Reviewer] = a
		}
		a.reviews++
		a.comments = append(a.comments, float64(review.CommentCount))
		if !review.SubmittedAt.IsZero() {
			a.days[review.SubmittedAt.UTC().Format("2006-01-02")] = true
		}
		if created, ok := prCreated[review.PRKey()]; ok && review.SubmittedAt.After(created) {
			a.responses = append(a.responses, review.SubmittedAt.Sub(created).Hours())
		}
	}

	metrics := make([]ReviewerMetrics, 0, len(byLogin))
	for login, a := range byLogin {
		m := ReviewerMetrics{
			Login:      login,
			Reviews:    a.reviews,
			ActiveDays: len(a.days),
		}
		for _, c := range a.comments {
			m.Comments += int(c)
		}
		if len(a.comments) > 0 {
			m.AvgCommentsPerReview, _ = stats.Mean(a.comments)
		}
		if len(a.responses) > 0 {
			// stats only errors on empty input, which is guarded above.
			m.MeanResponseHours, _ = stats.Mean(a.responses)
			m.MedianResponseHours, _ = stats.Median(a.responses)
		}
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Reviews != metrics[j].Reviews {
			return metrics[i].Reviews > metrics[j].Reviews
		}
		return metrics[i].Login < metrics[j].Login
	})
	return metrics
}
