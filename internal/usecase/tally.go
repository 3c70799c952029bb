// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/review-tally/internal/domain"
	"github.com/naka-gawa/review-tally/internal/gateway"
)

// reviewBatchSize caps the number of in-flight review requests. Each batch
// fully resolves before the next is issued.
const reviewBatchSize = 5

// ReviewCache is the optional best-effort cache consulted before hitting
// the API. A nil cache disables caching entirely. Lookups happen before a
// batch is dispatched and stores after it fully resolves, so
// implementations are never called concurrently.
type ReviewCache interface {
	GetReviews(owner, repo string, number int) ([]domain.Review, bool)
	PutReviews(owner, repo string, number int, prState string, reviews []domain.Review)
}

// Tallier is the use case that drives the collection pipeline:
// discover repositories, validate them, page their pull requests and
// batch-fetch reviews, then aggregate the tally.
type Tallier struct {
	fetcher gateway.Fetcher
	cache   ReviewCache
	logger  *log.Logger

	// FetchComments enables per-review comment counting, needed by the
	// comment metrics and sprint analysis.
	FetchComments bool
}

// NewTallier creates a new Tallier instance.
func NewTallier(fetcher gateway.Fetcher, cache ReviewCache, logger *log.Logger) *Tallier {
	return &Tallier{
		fetcher: fetcher,
		cache:   cache,
		logger:  logger,
	}
}

// Result carries everything a single run produced: the ranked tally, the
// raw reviews, the creation time of each fetched PR (for response-time
// metrics) and the failures that were scoped out of the aggregation.
type Result struct {
	Tally     []domain.TallyEntry
	Reviews   []domain.Review
	PRCreated map[string]time.Time
	Failures  []domain.FetchFailure
}

// Run executes the pipeline for one organization and date window.
// Organization-level errors abort the run; repository- and PR-level
// failures are recorded and the run continues.
func (t *Tallier) Run(ctx context.Context, org string, languages []string, start, end time.Time) (*Result, error) {
	repos, err := t.fetcher.DiscoverRepositories(ctx, org, languages)
	if err != nil {
		return nil, err
	}
	return t.Collect(ctx, repos, start, end)
}

// Collect executes the pipeline over an explicit repository set, skipping
// discovery. Every repository is still validated before any pull-request
// fetching.
func (t *Tallier) Collect(ctx context.Context, repos []domain.Repository, start, end time.Time) (*Result, error) {
	t.logger.Println("Usecase: Starting review collection...")

	res := &Result{PRCreated: make(map[string]time.Time)}
	for _, repo := range repos {
		if err := t.fetcher.ValidateRepository(ctx, repo.Owner, repo.Name); err != nil {
			t.logger.Printf("Skipping %s: %v", repo.FullName(), err)
			res.Failures = append(res.Failures, domain.FetchFailure{Repo: repo.FullName(), Err: err})
			continue
		}

		prs, err := t.fetcher.FetchPullRequests(ctx, repo.Owner, repo.Name, start, end)
		if err != nil {
			t.logger.Printf("Skipping %s: %v", repo.FullName(), err)
			res.Failures = append(res.Failures, domain.FetchFailure{Repo: repo.FullName(), Err: err})
			continue
		}
		for _, pr := range prs {
			res.PRCreated[prKey(repo.FullName(), pr.Number)] = pr.CreatedAt
		}

		reviews, failures := t.fetchReviewsBatched(ctx, repo, prs)
		res.Reviews = append(res.Reviews, reviews...)
		res.Failures = append(res.Failures, failures...)
	}

	res.Tally = Aggregate(res.Reviews)
	t.logger.Printf("Usecase: Collected %d reviews across %d repositories (%d failures).",
		len(res.Reviews), len(repos), len(res.Failures))
	return res, nil
}

// fetchReviewsBatched partitions prs into batches of reviewBatchSize and
// fetches each batch concurrently, waiting for the whole batch before
// issuing the next. Outcomes are recorded per slot and reassembled in PR
// order, so the result is independent of completion order. A failed fetch
// never aborts its batch. The cache is consulted before dispatch and
// updated after the batch resolves, keeping it single-threaded.
func (t *Tallier) fetchReviewsBatched(ctx context.Context, repo domain.Repository, prs []domain.PullRequest) ([]domain.Review, []domain.FetchFailure) {
	var reviews []domain.Review
	var failures []domain.FetchFailure

	for base := 0; base < len(prs); base += reviewBatchSize {
		batch := prs[base:min(base+reviewBatchSize, len(prs))]
		batchReviews := make([][]domain.Review, len(batch))
		batchErrs := make([]error, len(batch))
		cached := make([]bool, len(batch))

		if t.cache != nil {
			for i, pr := range batch {
				if got, ok := t.cache.GetReviews(repo.Owner, repo.Name, pr.Number); ok {
					batchReviews[i] = got
					cached[i] = true
				}
			}
		}

		var eg errgroup.Group
		for i, pr := range batch {
			if cached[i] {
				continue
			}
			i, pr := i, pr
			eg.Go(func() error {
				got, err := t.fetcher.FetchReviews(ctx, repo.Owner, repo.Name, pr.Number)
				if err != nil {
					batchErrs[i] = err
					return nil
				}
				if t.FetchComments {
					t.countComments(ctx, repo, pr.Number, got)
				}
				batchReviews[i] = got
				return nil
			})
		}
		// Goroutines record outcomes in their own slot and never return an
		// error, so Wait only synchronizes the batch.
		_ = eg.Wait()

		for i, pr := range batch {
			if batchErrs[i] != nil {
				t.logger.Printf("Warning: %s#%d: %v", repo.FullName(), pr.Number, batchErrs[i])
				failures = append(failures, domain.FetchFailure{Repo: repo.FullName(), PullNumber: pr.Number, Err: batchErrs[i]})
				continue
			}
			if t.cache != nil && !cached[i] {
				t.cache.PutReviews(repo.Owner, repo.Name, pr.Number, pr.State, batchReviews[i])
			}
			reviews = append(reviews, batchReviews[i]...)
		}
	}
	return reviews, failures
}

// countComments fills in the comment count of each fetched review. A failed
// count leaves the review at zero comments rather than discarding it.
func (t *Tallier) countComments(ctx context.Context, repo domain.Repository, number int, reviews []domain.Review) {
	for i := range reviews {
		count, err := t.fetcher.FetchReviewCommentCount(ctx, repo.Owner, repo.Name, number, reviews[i].ID)
		if err != nil {
			t.logger.Printf("Warning: comment count for review %d on %s#%d: %v", reviews[i].ID, repo.FullName(), number, err)
			continue
		}
		reviews[i].CommentCount = count
	}
}

// Aggregate tallies review counts per reviewer login and orders the result
// by count descending, login ascending on ties.
func Aggregate(reviews []domain.Review) []domain.TallyEntry {
	counts := make(map[string]int)
	for _, review := range reviews {
		counts[review.Reviewer]++
	}

	entries := make([]domain.TallyEntry, 0, len(counts))
	for login, n := range counts {
		entries = append(entries, domain.TallyEntry{Login: login, Reviews: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Reviews != entries[j].Reviews {
			return entries[i].Reviews > entries[j].Reviews
		}
		return entries[i].Login < entries[j].Login
	})
	return entries
}

func prKey(repo string, number int) string {
	return domain.Review{Repo: repo, PullNumber: number}.PRKey()
}
