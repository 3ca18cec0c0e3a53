package client

import (
	"context"
	"fmt"
	"net/http"
)

// PRAuthor is the pull request author as reported by GitHub.
type PRAuthor struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// PullRequest is an open pull request on an active repository.
type PullRequest struct {
	ID                   int64    `json:"id"`
	Number               int      `json:"number"`
	Title                string   `json:"title"`
	User                 PRAuthor `json:"user"`
	HTMLURL              string   `json:"html_url"`
	State                string   `json:"state"`
	CreatedAt            string   `json:"created_at"`
	UpdatedAt            string   `json:"updated_at"`
	RepoName             string   `json:"repo_name"`
	InternalRepoID       int64    `json:"internal_repo_id"`
	LatestAnalysisID     *int64   `json:"latest_analysis_id,omitempty"`
	LatestAnalysisStatus string   `json:"latest_analysis_status,omitempty"`
}

// DiffResult is the unified diff for one pull request.
type DiffResult struct {
	Diff     string `json:"diff"`
	Title    string `json:"title"`
	RepoName string `json:"repo_name"`
	PRNumber int    `json:"pr_number"`
}

// PullDiff fetches the unified diff for a pull request on a repository.
func (c *Client) PullDiff(ctx context.Context, token string, repoID int64, prNumber int) (*DiffResult, error) {
	out := &DiffResult{}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/prs/%d/%d/diff", repoID, prNumber),
		token:  token,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
