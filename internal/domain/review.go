// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"
	"time"
)

// Repository identifies a repository inside the target organization,
// together with its declared languages as reported by GitHub.
type Repository struct {
	Owner     string   `json:"owner"`
	Name      string   `json:"name"`
	Languages []string `json:"languages,omitempty"`
}

// FullName returns the canonical "owner/name" form.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// PullRequest is a single pull request observed within the queried date range.
type PullRequest struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Review is one submitted review on a pull request. CommentCount is only
// populated when comment fetching is enabled for the run.
type Review struct {
	ID           int64     `json:"id"`
	Repo         string    `json:"repo"`
	PullNumber   int       `json:"pull_number"`
	Reviewer     string    `json:"reviewer"`
	State        string    `json:"state"`
	SubmittedAt  time.Time `json:"submitted_at"`
	CommentCount int       `json:"comment_count"`
}

// PRKey returns the key used to associate a review with its pull request.
func (r Review) PRKey() string {
	return fmt.Sprintf("%s#%d", r.Repo, r.PullNumber)
}

// TallyEntry is one row of the final ranked output.
type TallyEntry struct {
	Login   string `json:"login"`
	Reviews int    `json:"reviews"`
}

// FetchFailure records a unit of work that could not be completed.
// PullNumber is zero for repository-level failures.
type FetchFailure struct {
	Repo       string `json:"repo"`
	PullNumber int    `json:"pull_number,omitempty"`
	Err        error  `json:"-"`
}

func (f FetchFailure) String() string {
	if f.PullNumber > 0 {
		return fmt.Sprintf("%s#%d: %v", f.Repo, f.PullNumber, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Repo, f.Err)
}
