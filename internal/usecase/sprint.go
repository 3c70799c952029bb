package usecase

import (
	"fmt"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/review-tally/internal/domain"
)

const sprintLengthDays = 14

// SprintPeriod is one consecutive two-week window within the date range.
type SprintPeriod struct {
	Name  string
	Start time.Time
	End   time.Time
}

// SprintPeriods splits [start, end] into consecutive 14-day sprints
// anchored at start; the final sprint is truncated at end.
func SprintPeriods(start, end time.Time) []SprintPeriod {
	var periods []SprintPeriod
	for i, cur := 1, start; cur.Before(end); i++ {
		sprintEnd := cur.AddDate(0, 0, sprintLengthDays)
		if sprintEnd.After(end) {
			sprintEnd = end
		}
		periods = append(periods, SprintPeriod{
			Name:  fmt.Sprintf("Sprint %d (%s - %s)", i, cur.Format("2006-01-02"), sprintEnd.Format("2006-01-02")),
			Start: cur,
			End:   sprintEnd,
		})
		cur = sprintEnd
	}
	return periods
}

// SprintMetrics holds the team-level figures for one sprint.
type SprintMetrics struct {
	Sprint               string  `json:"sprint"`
	TotalReviews         int     `json:"total_reviews"`
	TotalComments        int     `json:"total_comments"`
	UniqueReviewers      int     `json:"unique_reviewers"`
	ReviewsPerReviewer   float64 `json:"reviews_per_reviewer"`
	AvgCommentsPerReview float64 `json:"avg_comments_per_review"`
	MeanResponseHours    float64 `json:"mean_response_hours"`
}

// ComputeSprintMetrics buckets reviews by submission time into the given
// sprints (half-open [Start, End); the final sprint also takes End itself)
// and computes team metrics per sprint.
func ComputeSprintMetrics(periods []SprintPeriod, reviews []domain.Review, prCreated map[string]time.Time) []SprintMetrics {
	type bucket struct {
		reviews   int
		comments  int
		reviewers map[string]bool
		responses []float64
	}
	buckets := make([]bucket, len(periods))
	for i := range buckets {
		buckets[i].reviewers = make(map[string]bool)
	}

	for _, review := range reviews {
		sub := review.SubmittedAt
		for i, period := range periods {
			last := i == len(periods)-1
			if sub.Before(period.Start) || sub.After(period.End) || (sub.Equal(period.End) && !last) {
				continue
			}
			buckets[i].reviews++
			buckets[i].comments += review.CommentCount
			buckets[i].reviewers[review.Reviewer] = true
			if created, ok := prCreated[review.PRKey()]; ok && sub.After(created) {
				buckets[i].responses = append(buckets[i].responses, sub.Sub(created).Hours())
			}
			break
		}
	}

	metrics := make([]SprintMetrics, len(periods))
	for i, period := range periods {
		b := buckets[i]
		m := SprintMetrics{
			Sprint:          period.Name,
			TotalReviews:    b.reviews,
			TotalComments:   b.comments,
			UniqueReviewers: len(b.reviewers),
		}
		if len(b.reviewers) > 0 {
			m.ReviewsPerReviewer = float64(b.reviews) / float64(len(b.reviewers))
		}
		if b.reviews > 0 {
			m.AvgCommentsPerReview = float64(b.comments) / float64(b.reviews)
		}
		if len(b.responses) > 0 {
			m.MeanResponseHours, _ = stats.Mean(b.responses)
		}
		metrics[i] = m
	}
	return metrics
}
