// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/review-tally/internal/cache"
	"github.com/naka-gawa/review-tally/internal/domain"
	"github.com/naka-gawa/review-tally/internal/gateway"
	"github.com/naka-gawa/review-tally/internal/output"
	"github.com/naka-gawa/review-tally/internal/usecase"
)

const dateLayout = "2006-01-02"

var tallyCmd = &cobra.Command{
	Use:   "tally",
	Short: "Aggregates pull-request review counts per reviewer",
	Long: `Collects the pull requests created in the given date window across the
organization's repositories (optionally filtered by language), fetches their
reviews in batches, and prints a reviewer-to-review-count table sorted by
count. Pass --repositories to analyze an explicit owner/name list instead of
discovering the organization. Requires a GITHUB_TOKEN environment variable.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
		if verbose {
			logger.SetOutput(os.Stderr) // If verbose, log to standard error.
		}

		noCache, _ := cmd.Flags().GetBool("no-cache")
		clearCache, _ := cmd.Flags().GetBool("clear-cache")
		clearExpired, _ := cmd.Flags().GetBool("clear-expired-cache")
		cacheStats, _ := cmd.Flags().GetBool("cache-stats")

		// Cache management operations need no token and no network; they
		// run and exit before anything else.
		if clearCache || clearExpired || cacheStats {
			runCacheOps(logger, clearCache, clearExpired, cacheStats)
			return
		}

		// A .env file is optional; the environment wins either way.
		_ = godotenv.Load()
		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", domain.ErrTokenMissing)
			os.Exit(1)
		}

		org, _ := cmd.Flags().GetString("org")
		repositoriesStr, _ := cmd.Flags().GetString("repositories")
		languagesStr, _ := cmd.Flags().GetString("languages")
		startStr, _ := cmd.Flags().GetString("start-date")
		endStr, _ := cmd.Flags().GetString("end-date")
		metricsStr, _ := cmd.Flags().GetString("metrics")
		sprintAnalysis, _ := cmd.Flags().GetBool("sprint-analysis")
		outputPath, _ := cmd.Flags().GetString("output-path")

		explicitRepos, err := parseRepositories(repositoriesStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if org == "" && len(explicitRepos) == 0 {
			fmt.Fprintln(os.Stderr, "Error: either --org or --repositories is required")
			os.Exit(1)
		}

		start, end, err := resolveDateRange(startStr, endStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		languages := splitList(languagesStr)
		metrics := splitList(metricsStr)

		githubGateway, err := gateway.NewGitHubGateway(token, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}

		var reviewCache usecase.ReviewCache
		if !noCache {
			c, err := cache.Open("", logger)
			if err != nil {
				logger.Printf("Cache disabled: %v", err)
			} else {
				reviewCache = c
			}
		}

		tallier := usecase.NewTallier(githubGateway, reviewCache, logger)
		tallier.FetchComments = output.CommentMetricsSelected(metrics) || sprintAnalysis

		var result *usecase.Result
		if len(explicitRepos) > 0 {
			// An explicit repository list skips organization discovery but
			// still validates each repository before fetching.
			result, err = tallier.Collect(ctx, explicitRepos, start, end)
		} else {
			result, err = tallier.Run(ctx, org, languages, start, end)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to aggregate reviews: %v\n", err)
			os.Exit(1)
		}

		if sprintAnalysis {
			periods := usecase.SprintPeriods(start, end)
			sprints := usecase.ComputeSprintMetrics(periods, result.Reviews, result.PRCreated)
			if outputPath != "" {
				if err := output.ExportSprintCSV(outputPath, sprints); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to export sprint analysis: %v\n", err)
					os.Exit(1)
				}
				fmt.Printf("Sprint analysis exported to %s\n", outputPath)
			} else {
				output.RenderSprintSummary(os.Stdout, sprints)
			}
		} else {
			if len(metrics) == 1 && metrics[0] == output.MetricReviews {
				output.RenderTally(os.Stdout, result.Tally)
			} else {
				reviewerMetrics := usecase.ComputeReviewerMetrics(result.Reviews, result.PRCreated)
				output.RenderMetrics(os.Stdout, reviewerMetrics, metrics)
			}
		}

		// Per-repository and per-PR failures are reported, not fatal.
		output.RenderFailures(os.Stderr, result.Failures)
	},
}

// resolveDateRange parses the date flags as UTC. Defaults: start is 14 days
// ago, end is now. A parsed end date covers the whole day (inclusive).
func resolveDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -14)
	end := now

	if startStr != "" {
		parsed, err := time.ParseInLocation(dateLayout, startStr, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("malformed start date %q, please use YYYY-MM-DD", startStr)
		}
		start = parsed
	}
	if endStr != "" {
		parsed, err := time.ParseInLocation(dateLayout, endStr, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("malformed end date %q, please use YYYY-MM-DD", endStr)
		}
		end = parsed.AddDate(0, 0, 1).Add(-time.Second)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date must be before end date")
	}
	return start, end, nil
}

// parseRepositories turns a comma-separated "owner/name" list into repository
// values, rejecting entries that are not exactly owner/name.
func parseRepositories(s string) ([]domain.Repository, error) {
	var repos []domain.Repository
	for _, item := range splitList(s) {
		owner, name, ok := strings.Cut(item, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("malformed repository %q, please use owner/name", item)
		}
		repos = append(repos, domain.Repository{Owner: owner, Name: name})
	}
	return repos, nil
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func runCacheOps(logger *log.Logger, clearAll, clearExpired, showStats bool) {
	c, err := cache.Open("", logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open cache: %v\n", err)
		os.Exit(1)
	}
	if showStats {
		stats, err := c.GetStats()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read cache stats: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Cache Statistics:")
		fmt.Printf("  Directory: %s\n", stats.Dir)
		fmt.Printf("  Total entries: %d\n", stats.TotalEntries)
		fmt.Printf("  Valid entries: %d\n", stats.ValidEntries)
		fmt.Printf("  Expired entries: %d\n", stats.ExpiredEntries)
		fmt.Printf("  Cache size: %.2f MB\n", float64(stats.SizeBytes)/(1024*1024))
	}
	if clearExpired {
		removed, err := c.ClearExpired()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to clear expired cache entries: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Cleared %d expired cache entries\n", removed)
	}
	if clearAll {
		removed, err := c.ClearAll()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to clear cache: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Cleared all %d cache entries\n", removed)
	}
}

func init() {
	rootCmd.AddCommand(tallyCmd)
	tallyCmd.PersistentFlags().StringP("org", "o", "", "Target GitHub organization name")
	tallyCmd.Flags().StringP("repositories", "r", "", "Comma-separated owner/name list to analyze instead of discovering the organization's repositories")
	tallyCmd.Flags().StringP("languages", "l", "", "Comma-separated list of languages to filter repositories")
	tallyCmd.Flags().StringP("start-date", "s", "", "Start date (YYYY-MM-DD, default: 14 days ago)")
	tallyCmd.Flags().StringP("end-date", "e", "", "End date (YYYY-MM-DD, inclusive, default: today)")
	tallyCmd.Flags().StringP("metrics", "m", output.MetricReviews, "Comma-separated metrics to display (reviews,comments,avg-comments,response-time,active-days)")
	tallyCmd.Flags().Bool("sprint-analysis", false, "Aggregate reviews into two-week sprint team metrics")
	tallyCmd.Flags().String("output-path", "", "CSV output path for sprint analysis")
	tallyCmd.Flags().Bool("no-cache", false, "Disable the review cache (always fetch fresh data)")
	tallyCmd.Flags().Bool("clear-cache", false, "Clear all cached data and exit")
	tallyCmd.Flags().Bool("clear-expired-cache", false, "Clear only expired cached data and exit")
	tallyCmd.Flags().Bool("cache-stats", false, "Show cache statistics and exit")
}
