// Package github collects repository activity through the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Limits bounds how many items of each kind a pull fetches.
type Limits struct {
	Issues  int
	PRs     int
	Commits int
}

// DefaultLimits returns the default per-kind fetch limits.
func DefaultLimits() Limits {
	return Limits{Issues: 20, PRs: 10, Commits: 15}
}

// Item is a single unit of repository activity, ready for embedding.
type Item struct {
	Kind      string // issue, pull_request, commit
	SourceID  string
	Title     string
	Body      string
	Author    string
	State     string
	CreatedAt time.Time
	UpdatedAt time.Time
	URL       string
}

// Text renders the item as the document text stored and embedded.
func (it *Item) Text() string {
	var b strings.Builder
	switch it.Kind {
	case "commit":
		fmt.Fprintf(&b, "Commit %s by %s\n", it.SourceID, it.Author)
	case "pull_request":
		fmt.Fprintf(&b, "Pull request #%s (%s) by %s: %s\n", it.SourceID, it.State, it.Author, it.Title)
	default:
		fmt.Fprintf(&b, "Issue #%s (%s) by %s: %s\n", it.SourceID, it.State, it.Author, it.Title)
	}
	if it.Body != "" {
		b.WriteString(it.Body)
	}
	return b.String()
}

// Client wraps the GitHub API with outbound rate limiting.
type Client struct {
	api     *gh.Client
	limiter *rate.Limiter
	limits  Limits
}

// NewClient creates a collector. An empty token falls back to anonymous
// access with the lower unauthenticated quota.
func NewClient(token string, limits Limits) *Client {
	httpClient := oauth2.NewClient(context.Background(), nil)
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), src)
	}
	if limits.Issues == 0 {
		limits = DefaultLimits()
	}
	return &Client{
		api: gh.NewClient(httpClient),
		// The authenticated REST quota is 5000 req/h; stay well under it.
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		limits:  limits,
	}
}

// Pull fetches recent activity from the repository. When since is non-zero
// only items updated after it are returned, which keeps repeat ingestions
// incremental.
func (c *Client) Pull(ctx context.Context, repo Repo, since time.Time) ([]Item, error) {
	var items []Item

	issues, prs, err := c.pullIssuesAndPRs(ctx, repo, since)
	if err != nil {
		return nil, err
	}
	items = append(items, issues...)
	items = append(items, prs...)

	commits, err := c.pullCommits(ctx, repo, since)
	if err != nil {
		return nil, err
	}
	items = append(items, commits...)

	slog.Info("repository pull completed",
		"repo", repo.String(),
		"issues", len(issues),
		"pull_requests", len(prs),
		"commits", len(commits),
		"incremental", !since.IsZero())
	return items, nil
}

func (c *Client) pullIssuesAndPRs(ctx context.Context, repo Repo, since time.Time) (issues, prs []Item, err error) {
	opt := &gh.IssueListByRepoOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	if !since.IsZero() {
		opt.Since = since
	}

	for len(issues) < c.limits.Issues || len(prs) < c.limits.PRs {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
		list, resp, err := c.api.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list issues for %s: %w", repo, err)
		}
		for _, is := range list {
			item := Item{
				SourceID:  fmt.Sprintf("%d", is.GetNumber()),
				Title:     is.GetTitle(),
				Body:      is.GetBody(),
				Author:    is.GetUser().GetLogin(),
				State:     is.GetState(),
				CreatedAt: is.GetCreatedAt().Time,
				UpdatedAt: is.GetUpdatedAt().Time,
				URL:       is.GetHTMLURL(),
			}
			if is.IsPullRequest() {
				if len(prs) < c.limits.PRs {
					item.Kind = "pull_request"
					prs = append(prs, item)
				}
			} else if len(issues) < c.limits.Issues {
				item.Kind = "issue"
				issues = append(issues, item)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return issues, prs, nil
}

func (c *Client) pullCommits(ctx context.Context, repo Repo, since time.Time) ([]Item, error) {
	opt := &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: min(c.limits.Commits, 100)},
	}
	if !since.IsZero() {
		opt.Since = since
	}

	var commits []Item
	for len(commits) < c.limits.Commits {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		list, resp, err := c.api.Repositories.ListCommits(ctx, repo.Owner, repo.Name, opt)
		if err != nil {
			return nil, fmt.Errorf("failed to list commits for %s: %w", repo, err)
		}
		for _, cm := range list {
			if len(commits) >= c.limits.Commits {
				break
			}
			author := cm.GetCommit().GetAuthor().GetName()
			if cm.GetAuthor() != nil {
				author = cm.GetAuthor().GetLogin()
			}
			when := cm.GetCommit().GetAuthor().GetDate().Time
			commits = append(commits, Item{
				Kind:      "commit",
				SourceID:  shortSHA(cm.GetSHA()),
				Title:     firstLine(cm.GetCommit().GetMessage()),
				Body:      cm.GetCommit().GetMessage(),
				Author:    author,
				CreatedAt: when,
				UpdatedAt: when,
				URL:       cm.GetHTMLURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return commits, nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
