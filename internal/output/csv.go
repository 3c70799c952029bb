package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/naka-gawa/review-tally/internal/usecase"
)

// ExportSprintCSV writes the per-sprint team metrics to path as CSV.
func ExportSprintCSV(path string, sprints []usecase.SprintMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"sprint", "total_reviews", "total_comments", "unique_reviewers", "reviews_per_reviewer", "avg_comments_per_review", "mean_response_hours"}); err != nil {
		return err
	}
	for _, s := range sprints {
		record := []string{
			s.Sprint,
			strconv.Itoa(s.TotalReviews),
			strconv.Itoa(s.TotalComments),
			strconv.Itoa(s.UniqueReviewers),
			strconv.FormatFloat(s.ReviewsPerReviewer, 'f', 2, 64),
			strconv.FormatFloat(s.AvgCommentsPerReview, 'f', 2, 64),
			strconv.FormatFloat(s.MeanResponseHours, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
