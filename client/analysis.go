package client

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Analysis status values reported by the backend.
const (
	AnalysisPending    = "pending"
	AnalysisProcessing = "processing"
	AnalysisCompleted  = "completed"
	AnalysisFailed     = "failed"
)

// DashboardStats aggregates review activity for the account.
type DashboardStats struct {
	TotalAnalyses        int              `json:"total_analyses"`
	AvgMergeConfidence   float64          `json:"avg_merge_confidence"`
	VulnerabilitiesFound int              `json:"vulnerabilities_caught"`
	ActiveRepos          int              `json:"active_repos"`
	RecentActivity       []RecentActivity `json:"recent_activity,omitempty"`
}

// RecentActivity is one row of the recent-analyses feed.
type RecentActivity struct {
	ID        int64   `json:"id"`
	PRTitle   string  `json:"pr_title"`
	RepoID    int64   `json:"repo_id"`
	Score     float64 `json:"score"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
	PRNumber  int     `json:"pr_number"`
}

// TriggerPayload identifies the pull request to analyze. The extra fields
// let the backend register the PR if the webhook never delivered it.
type TriggerPayload struct {
	RepoID   int64  `json:"repo_id"`
	PRNumber int    `json:"pr_number"`
	Title    string `json:"title"`
	HTMLURL  string `json:"html_url"`
	Author   string `json:"author"`
}

// TriggerResponse acknowledges a queued analysis.
type TriggerResponse struct {
	AnalysisID int64  `json:"analysis_id"`
	Status     string `json:"status"`
}

// AnalysisIssue is one finding in a completed analysis.
type AnalysisIssue struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Suggestion  string `json:"suggestion"`
	Line        int    `json:"line,omitempty"`
}

// AnalysisResult is the full output of one analysis run. Scores are only
// meaningful once Status is "completed".
type AnalysisResult struct {
	ID               int64           `json:"id"`
	Status           string          `json:"status"`
	SecurityScore    float64         `json:"security_score"`
	PerformanceScore float64         `json:"performance_score"`
	ReliabilityScore float64         `json:"reliability_score"`
	Summary          string          `json:"summary"`
	Issues           []AnalysisIssue `json:"issues"`
	CreatedAt        string          `json:"created_at"`
	DiffView         string          `json:"diff_view,omitempty"`
}

// Done reports whether the run reached a terminal status.
func (r *AnalysisResult) Done() bool {
	return r.Status == AnalysisCompleted || r.Status == AnalysisFailed
}

// Stats returns the account's aggregate review metrics.
func (c *Client) Stats(ctx context.Context, token string) (*DashboardStats, error) {
	out := &DashboardStats{}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/analysis/stats",
		token:  token,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TriggerAnalysis queues a live analysis for a pull request.
func (c *Client) TriggerAnalysis(ctx context.Context, token string, payload TriggerPayload) (*TriggerResponse, error) {
	body, contentType, err := jsonBody(payload)
	if err != nil {
		return nil, err
	}

	out := &TriggerResponse{}
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/analysis/trigger-live",
		token:       token,
		body:        body,
		contentType: contentType,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AnalysisResult fetches the current state of one analysis run.
func (c *Client) AnalysisResult(ctx context.Context, token string, analysisID int64) (*AnalysisResult, error) {
	out := &AnalysisResult{}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/analysis/result/%d", analysisID),
		token:  token,
	}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AwaitAnalysis polls the result endpoint at the given interval until the
// run reaches a terminal status or the context expires. The last observed
// result is returned alongside a context error so callers can render
// partial progress.
func (c *Client) AwaitAnalysis(ctx context.Context, token string, analysisID int64, interval time.Duration) (*AnalysisResult, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	result, err := c.AnalysisResult(ctx, token, analysisID)
	if err != nil {
		return nil, err
	}
	if result.Done() {
		return result, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
			next, err := c.AnalysisResult(ctx, token, analysisID)
			if err != nil {
				return result, err
			}
			result = next
			if result.Done() {
				return result, nil
			}
		}
	}
}
