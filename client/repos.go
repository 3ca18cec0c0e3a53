package client

import (
	"context"
	"net/http"
)

// Repo is a GitHub repository visible to the account, with its
// review-activation state.
type Repo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
	UpdatedAt   string `json:"updated_at"`
	Private     bool   `json:"private"`
	HTMLURL     string `json:"html_url"`
	IsActive    bool   `json:"is_active"`
}

// ListRepos returns the repositories the account can see.
func (c *Client) ListRepos(ctx context.Context, token string) ([]Repo, error) {
	var repos []Repo
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/repos/list",
		token:  token,
	}, &repos)
	if err != nil {
		return nil, err
	}
	return repos, nil
}

// ToggleRepo flips automated review on or off for a repository. The backend
// expects the full repo payload so it can register previously unseen repos.
func (c *Client) ToggleRepo(ctx context.Context, token string, repo Repo) (*Repo, error) {
	body, contentType, err := jsonBody(repo)
	if err != nil {
		return nil, err
	}

	out := &Repo{}
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/repos/toggle",
		token:       token,
		body:        body,
		contentType: contentType,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPulls returns the open pull requests across the account's active
// repositories.
func (c *Client) ListPulls(ctx context.Context, token string) ([]PullRequest, error) {
	var pulls []PullRequest
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/repos/pulls",
		token:  token,
	}, &pulls)
	if err != nil {
		return nil, err
	}
	return pulls, nil
}
