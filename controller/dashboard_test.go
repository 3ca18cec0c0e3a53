package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prism-review/dashboard"
	"github.com/prism-review/dashboard/client"
)

func newTestDashboardController(t *testing.T, backend http.HandlerFunc) (*DashboardController, func()) {
	t.Helper()

	srv := httptest.NewServer(backend)
	ctrl := NewDashboardController(client.New(srv.URL), dashboard.DefaultAppConfig())
	return ctrl, srv.Close
}

func authedContext(token string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.LocalsMock[dashboard.SessionLocalsKey] = &dashboard.SessionObject{
		Token: token,
		State: dashboard.SessionAuthenticated,
		User:  &dashboard.User{ID: 1, Email: "ada@example.com", FullName: "Ada"},
	}
	ctx.On("Context").Return(context.Background())
	return ctx
}

func TestDashboardHome(t *testing.T) {
	ctrl, cleanup := newTestDashboardController(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/analysis/stats", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"total_analyses": 4, "active_repos": 2}`))
	})
	defer cleanup()

	ctx := authedContext("tok")
	ctx.On("LocalsMerge", mock.Anything, mock.Anything).Return(map[string]any{}).Maybe()

	var data router.ViewContext
	ctx.On("Render", ctrl.Views.Home, mock.Anything).Run(func(args mock.Arguments) {
		data = args.Get(1).(router.ViewContext)
	}).Return(nil)

	require.NoError(t, ctrl.Home(ctx))

	stats, ok := data["stats"].(*client.DashboardStats)
	require.True(t, ok)
	require.Equal(t, 4, stats.TotalAnalyses)
}

func TestDashboardHomeBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	ctrl := NewDashboardController(client.New(srv.URL), dashboard.DefaultAppConfig())

	ctx := authedContext("tok")

	var data router.ViewContext
	ctx.On("Render", ctrl.Views.Home, mock.Anything).Run(func(args mock.Arguments) {
		data = args.Get(1).(router.ViewContext)
	}).Return(nil)

	require.NoError(t, ctrl.Home(ctx))
	require.Equal(t, "Could not connect to server.", data["load_error"])
}

func TestDashboardRepositories(t *testing.T) {
	ctrl, cleanup := newTestDashboardController(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/repos/list", r.URL.Path)
		w.Write([]byte(`[{"id": 1, "name": "prism", "is_active": true}]`))
	})
	defer cleanup()

	ctx := authedContext("tok")

	var data router.ViewContext
	ctx.On("Render", ctrl.Views.Repositories, mock.Anything).Run(func(args mock.Arguments) {
		data = args.Get(1).(router.ViewContext)
	}).Return(nil)

	require.NoError(t, ctrl.Repositories(ctx))

	repos, ok := data["repos"].([]client.Repo)
	require.True(t, ok)
	require.Len(t, repos, 1)
	require.True(t, repos[0].IsActive)
}

func TestDashboardRepositoriesSearch(t *testing.T) {
	ctrl, cleanup := newTestDashboardController(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": 1, "name": "prism", "description": "review engine", "language": "Go"},
			{"id": 2, "name": "website", "description": "marketing site", "language": "TypeScript"}
		]`))
	})
	defer cleanup()

	ctx := authedContext("tok")
	ctx.QueriesM["q"] = "go"

	var data router.ViewContext
	ctx.On("Render", ctrl.Views.Repositories, mock.Anything).Run(func(args mock.Arguments) {
		data = args.Get(1).(router.ViewContext)
	}).Return(nil)

	require.NoError(t, ctrl.Repositories(ctx))

	repos, ok := data["repos"].([]client.Repo)
	require.True(t, ok)
	require.Len(t, repos, 1)
	require.Equal(t, "prism", repos[0].Name)
	require.Equal(t, "go", data["query"])
}

func TestFilterRepos(t *testing.T) {
	repos := []client.Repo{
		{Name: "prism", Description: "review engine", Language: "Go"},
		{Name: "website", Description: "marketing site", Language: "TypeScript"},
	}

	require.Len(t, filterRepos(repos, ""), 2)
	require.Len(t, filterRepos(repos, "  "), 2)
	require.Len(t, filterRepos(repos, "MARKETING"), 1)
	require.Empty(t, filterRepos(repos, "rust"))
}

func TestTriggerAnalysisRedirectsToResult(t *testing.T) {
	ctrl, cleanup := newTestDashboardController(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/analysis/trigger-live", r.URL.Path)
		w.Write([]byte(`{"analysis_id": 42, "status": "pending"}`))
	})
	defer cleanup()

	ctx := authedContext("tok")
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*AnalyzePayload)
		payload.RepoID = 3
		payload.PRNumber = 7
		payload.Title = "Refactor auth"
	}).Return(nil)

	var redirect string
	ctx.On("Redirect", mock.Anything, []int{router.StatusSeeOther}).Run(func(args mock.Arguments) {
		redirect = args.String(0)
	}).Return(nil)

	require.NoError(t, ctrl.TriggerAnalysis(ctx))
	require.Equal(t, "/dashboard/analysis/42", redirect)
}

func TestAnalysisRendersCompletedRun(t *testing.T) {
	ctrl, cleanup := newTestDashboardController(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/analysis/result/42", r.URL.Path)
		w.Write([]byte(`{"id": 42, "status": "completed", "security_score": 95, "summary": "Looks good"}`))
	})
	defer cleanup()

	ctx := authedContext("tok")
	ctx.ParamsM["id"] = "42"

	var data router.ViewContext
	ctx.On("Render", ctrl.Views.Analysis, mock.Anything).Run(func(args mock.Arguments) {
		data = args.Get(1).(router.ViewContext)
	}).Return(nil)

	require.NoError(t, ctrl.Analysis(ctx))

	result, ok := data["result"].(*client.AnalysisResult)
	require.True(t, ok)
	require.Equal(t, client.AnalysisCompleted, result.Status)
	require.Equal(t, false, data["pending"])
}

func TestDiffRendersUnifiedDiff(t *testing.T) {
	ctrl, cleanup := newTestDashboardController(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/prs/3/7/diff", r.URL.Path)
		w.Write([]byte(`{"diff": "--- a/main.go", "title": "Refactor auth", "repo_name": "prism", "pr_number": 7}`))
	})
	defer cleanup()

	ctx := authedContext("tok")
	ctx.ParamsM["repo_id"] = "3"
	ctx.ParamsM["pr_number"] = "7"

	var data router.ViewContext
	ctx.On("Render", ctrl.Views.Diff, mock.Anything).Run(func(args mock.Arguments) {
		data = args.Get(1).(router.ViewContext)
	}).Return(nil)

	require.NoError(t, ctrl.Diff(ctx))

	diff, ok := data["diff"].(*client.DiffResult)
	require.True(t, ok)
	require.Equal(t, "prism", diff.RepoName)
}
