// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/review-tally/internal/domain"
)

const (
	perPage  = 100
	maxPages = 100
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	// DiscoverRepositories resolves the organization's repositories,
	// optionally filtered by declared language.
	DiscoverRepositories(ctx context.Context, org string, languages []string) ([]domain.Repository, error)
	// ValidateRepository confirms the repository exists and is accessible.
	ValidateRepository(ctx context.Context, owner, name string) error
	// FetchPullRequests lists pull requests created within [start, end].
	FetchPullRequests(ctx context.Context, owner, repo string, start, end time.Time) ([]domain.PullRequest, error)
	// FetchReviews lists the submitted reviews for one pull request.
	FetchReviews(ctx context.Context, owner, repo string, number int) ([]domain.Review, error)
	// FetchReviewCommentCount counts the comments attached to one review.
	FetchReviewCommentCount(ctx context.Context, owner, repo string, number int, reviewID int64) (int, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
	retry         retryPolicy
}

// orgReposQuery pages through an organization's repositories with their
// declared languages.
type orgReposQuery struct {
	Organization struct {
		Repositories struct {
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
			Nodes []struct {
				Name      string
				Languages struct {
					Nodes []struct {
						Name string
					}
				} `graphql:"languages(first: 10)"`
			}
		} `graphql:"repositories(first: 100, after: $cursor)"`
	} `graphql:"organization(login: $org)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// The rate limit waiter honors a secondary-limit Retry-After at most once;
// no retry loop exists around rate-limit responses. The nil base transport
// falls back to http.DefaultTransport, which honors HTTPS_PROXY.
func NewGitHubGateway(token string, logger *log.Logger) (Fetcher, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
		retry:         defaultRetryPolicy,
	}, nil
}

// DiscoverRepositories fetches the organization's repositories via GraphQL
// and keeps the ones declaring at least one of the requested languages.
// An empty language list keeps everything.
func (g *GitHubGateway) DiscoverRepositories(ctx context.Context, org string, languages []string) ([]domain.Repository, error) {
	g.logger.Printf("Discovering repositories for organization %s...", org)

	wanted := make(map[string]bool, len(languages))
	for _, lang := range languages {
		wanted[strings.ToLower(lang)] = true
	}

	variables := map[string]interface{}{
		"org":    githubv4.String(org),
		"cursor": (*githubv4.String)(nil),
	}

	var repos []domain.Repository
	for {
		var q orgReposQuery
		if err := g.retry.do(ctx, func() error {
			return g.graphqlClient.Query(ctx, &q, variables)
		}); err != nil {
			if strings.Contains(err.Error(), "Could not resolve") {
				return nil, &domain.NotFoundError{Resource: "organization " + org, StatusCode: http.StatusNotFound}
			}
			return nil, fmt.Errorf("failed to discover repositories for %s: %w", org, err)
		}

		for _, node := range q.Organization.Repositories.Nodes {
			langs := make([]string, 0, len(node.Languages.Nodes))
			match := len(wanted) == 0
			for _, lang := range node.Languages.Nodes {
				langs = append(langs, lang.Name)
				if wanted[strings.ToLower(lang.Name)] {
					match = true
				}
			}
			if match {
				repos = append(repos, domain.Repository{Owner: org, Name: node.Name, Languages: langs})
			}
		}

		if !q.Organization.Repositories.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Organization.Repositories.PageInfo.EndCursor)
		g.logger.Println("  Fetching next page of repositories...")
	}
	g.logger.Printf("Discovered %d repositories.", len(repos))
	return repos, nil
}

// ValidateRepository checks the repository existence endpoint before any
// pull-request or review fetching. A 404 fails immediately with the status.
func (g *GitHubGateway) ValidateRepository(ctx context.Context, owner, name string) error {
	err := g.retry.do(ctx, func() error {
		_, _, err := g.restClient.Repositories.Get(ctx, owner, name)
		return err
	})
	if err != nil {
		return wrapAPIError(fmt.Sprintf("repository %s/%s", owner, name), err)
	}
	return nil
}

// FetchPullRequests paginates pull requests newest-first and stops once a
// page yields a PR created before start.
func (g *GitHubGateway) FetchPullRequests(ctx context.Context, owner, repo string, start, end time.Time) ([]domain.PullRequest, error) {
	resource := fmt.Sprintf("pull requests for %s/%s", owner, repo)
	g.logger.Printf("Fetching %s...", resource)

	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var out []domain.PullRequest
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, &domain.PaginationError{Resource: resource, Pages: maxPages}
		}

		var prs []*github.PullRequest
		var resp *github.Response
		err := g.retry.do(ctx, func() error {
			var err error
			prs, resp, err = g.restClient.PullRequests.List(ctx, owner, repo, opts)
			return err
		})
		if err != nil {
			return nil, wrapAPIError(resource, err)
		}

		reachedStart := false
		for _, pr := range prs {
			created := pr.GetCreatedAt().Time
			if created.After(end) {
				continue
			}
			if created.Before(start) {
				reachedStart = true
				break
			}
			out = append(out, domain.PullRequest{
				Number:    pr.GetNumber(),
				Title:     pr.GetTitle(),
				State:     pr.GetState(),
				CreatedAt: created,
			})
		}

		if reachedStart || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Println("  Fetching next page of pull requests...")
	}
	g.logger.Printf("Found %d pull requests in range for %s/%s.", len(out), owner, repo)
	return out, nil
}

// FetchReviews lists the submitted reviews for a single pull request.
// Reviews without a resolvable login are skipped with a warning.
func (g *GitHubGateway) FetchReviews(ctx context.Context, owner, repo string, number int) ([]domain.Review, error) {
	resource := fmt.Sprintf("reviews for %s/%s#%d", owner, repo, number)

	opts := &github.ListOptions{PerPage: perPage}
	var out []domain.Review
	for {
		var reviews []*github.PullRequestReview
		var resp *github.Response
		err := g.retry.do(ctx, func() error {
			var err error
			reviews, resp, err = g.restClient.PullRequests.ListReviews(ctx, owner, repo, number, opts)
			return err
		})
		if err != nil {
			return nil, wrapAPIError(resource, err)
		}

		for _, review := range reviews {
			login := review.GetUser().GetLogin()
			if login == "" {
				g.logger.Printf("Warning: missing login on review %d for %s/%s#%d", review.GetID(), owner, repo, number)
				continue
			}
			out = append(out, domain.Review{
				ID:          review.GetID(),
				Repo:        owner + "/" + repo,
				PullNumber:  number,
				Reviewer:    login,
				State:       review.GetState(),
				SubmittedAt: review.GetSubmittedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// FetchReviewCommentCount counts the comments attached to a single review.
func (g *GitHubGateway) FetchReviewCommentCount(ctx context.Context, owner, repo string, number int, reviewID int64) (int, error) {
	resource := fmt.Sprintf("comments for review %d on %s/%s#%d", reviewID, owner, repo, number)

	opts := &github.ListOptions{PerPage: perPage}
	count := 0
	for {
		var comments []*github.PullRequestComment
		var resp *github.Response
		err := g.retry.do(ctx, func() error {
			var err error
			comments, resp, err = g.restClient.PullRequests.ListReviewComments(ctx, owner, repo, number, reviewID, opts)
			return err
		})
		if err != nil {
			return 0, wrapAPIError(resource, err)
		}
		count += len(comments)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return count, nil
}

// wrapAPIError converts go-github errors into the domain error taxonomy:
// 404 and other 4xx (rate limits included) become typed permanent errors,
// anything else keeps its cause wrapped.
func wrapAPIError(resource string, err error) error {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		switch {
		case code == http.StatusNotFound:
			return &domain.NotFoundError{Resource: resource, StatusCode: code}
		case code >= http.StatusBadRequest && code < http.StatusInternalServerError:
			return &domain.RequestError{Resource: resource, StatusCode: code, Message: respErr.Message}
		}
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		code := http.StatusForbidden
		if rateErr.Response != nil {
			code = rateErr.Response.StatusCode
		}
		return &domain.RequestError{Resource: resource, StatusCode: code, Message: "rate limit exhausted"}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		code := http.StatusForbidden
		if abuseErr.Response != nil {
			code = abuseErr.Response.StatusCode
		}
		return &domain.RequestError{Resource: resource, StatusCode: code, Message: "secondary rate limit"}
	}
	return fmt.Errorf("%s: %w", resource, err)
}
