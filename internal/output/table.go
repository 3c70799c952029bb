// Package output renders run results for the console and for export.
package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/naka-gawa/review-tally/internal/domain"
	"github.com/naka-gawa/review-tally/internal/usecase"
)

// Metric names accepted by --metrics.
const (
	MetricReviews      = "reviews"
	MetricComments     = "comments"
	MetricAvgComments  = "avg-comments"
	MetricResponseTime = "response-time"
	MetricActiveDays   = "active-days"
)

// CommentMetricsSelected reports whether any selected metric needs
// per-review comment counts.
func CommentMetricsSelected(selected []string) bool {
	for _, name := range selected {
		if name == MetricComments || name == MetricAvgComments {
			return true
		}
	}
	return false
}

// RenderTally writes the ranked reviewer table.
func RenderTally(w io.Writer, entries []domain.TallyEntry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Reviewer", "Reviews"})
	for _, entry := range entries {
		table.Append([]string{entry.Login, strconv.Itoa(entry.Reviews)})
	}
	table.Render()
}

// RenderMetrics writes the reviewer metrics table with the selected
// metric columns, always leading with the login.
func RenderMetrics(w io.Writer, metrics []usecase.ReviewerMetrics, selected []string) {
	header := []string{"Reviewer"}
	for _, name := range selected {
		switch name {
		case MetricReviews:
			header = append(header, "Reviews")
		case MetricComments:
			header = append(header, "Comments")
		case MetricAvgComments:
			header = append(header, "Avg Comments")
		case MetricResponseTime:
			header = append(header, "Mean Resp (h)", "Median Resp (h)")
		case MetricActiveDays:
			header = append(header, "Active Days")
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	for _, m := range metrics {
		row := []string{m.Login}
		for _, name := range selected {
			switch name {
			case MetricReviews:
				row = append(row, strconv.Itoa(m.Reviews))
			case MetricComments:
				row = append(row, strconv.Itoa(m.Comments))
			case MetricAvgComments:
				row = append(row, strconv.FormatFloat(m.AvgCommentsPerReview, 'f', 1, 64))
			case MetricResponseTime:
				row = append(row,
					strconv.FormatFloat(m.MeanResponseHours, 'f', 1, 64),
					strconv.FormatFloat(m.MedianResponseHours, 'f', 1, 64))
			case MetricActiveDays:
				row = append(row, strconv.Itoa(m.ActiveDays))
			}
		}
		table.Append(row)
	}
	table.Render()
}

// RenderSprintSummary writes the per-sprint team metrics table.
func RenderSprintSummary(w io.Writer, sprints []usecase.SprintMetrics) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Sprint", "Reviews", "Comments", "Reviewers", "Reviews/Reviewer", "Comments/Review", "Mean Resp (h)"})
	for _, s := range sprints {
		table.Append([]string{
			s.Sprint,
			strconv.Itoa(s.TotalReviews),
			strconv.Itoa(s.TotalComments),
			strconv.Itoa(s.UniqueReviewers),
			strconv.FormatFloat(s.ReviewsPerReviewer, 'f', 1, 64),
			strconv.FormatFloat(s.AvgCommentsPerReview, 'f', 1, 64),
			strconv.FormatFloat(s.MeanResponseHours, 'f', 1, 64),
		})
	}
	table.Render()
}

// RenderFailures writes the failure summary, one line per failed unit of
// work. Nothing is written when the run had no failures.
func RenderFailures(w io.Writer, failures []domain.FetchFailure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d unit(s) of work failed and were excluded from the tally:\n", len(failures))
	for _, failure := range failures {
		fmt.Fprintf(w, "  - %s\n", failure)
	}
}
