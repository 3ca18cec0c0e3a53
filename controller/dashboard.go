package controller

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"

	"github.com/prism-review/dashboard"
	"github.com/prism-review/dashboard/client"
)

type DashboardControllerViews struct {
	Home         string
	Repositories string
	PullRequests string
	Analysis     string
	Diff         string
	Profile      string
	Settings     string
}

// DashboardController renders the protected review pages. Every handler
// runs behind the session middleware, so the resolved session is always
// available from the request locals.
type DashboardController struct {
	Logger dashboard.Logger
	Views  *DashboardControllerViews

	api *client.Client
	cfg dashboard.Config
}

type DashboardControllerOption func(*DashboardController) *DashboardController

func WithDashboardLogger(logger dashboard.Logger) DashboardControllerOption {
	return func(c *DashboardController) *DashboardController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewDashboardController(api *client.Client, cfg dashboard.Config, opts ...DashboardControllerOption) *DashboardController {
	c := &DashboardController{
		Logger: dashboard.DefaultLogger(),
		api:    api,
		cfg:    cfg,
		Views: &DashboardControllerViews{
			Home:         "dashboard/home",
			Repositories: "dashboard/repositories",
			PullRequests: "dashboard/pull_requests",
			Analysis:     "dashboard/analysis",
			Diff:         "dashboard/diff",
			Profile:      "dashboard/profile",
			Settings:     "dashboard/settings",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.api == nil {
		panic("Missing API client in dashboard controller...")
	}

	return c
}

// RegisterDashboardRoutes mounts the protected pages under the configured
// prefix. The caller supplies the group already wrapped in the session
// middleware.
func RegisterDashboardRoutes[T any](app router.Router[T], controller *DashboardController) {
	app.Get("/", controller.Home).SetName("dashboard.home")
	app.Get("/repositories", controller.Repositories).SetName("dashboard.repos")
	app.Post("/repositories/toggle", controller.ToggleRepository).SetName("dashboard.repos.toggle")
	app.Get("/pull-requests", controller.PullRequests).SetName("dashboard.prs")
	app.Post("/pull-requests/analyze", controller.TriggerAnalysis).SetName("dashboard.prs.analyze")
	app.Get("/analysis/:id", controller.Analysis).SetName("dashboard.analysis")
	app.Get("/diff/:repo_id/:pr_number", controller.Diff).SetName("dashboard.diff")
	app.Get("/profile", controller.Profile).SetName("dashboard.profile")
	app.Get("/settings", controller.Settings).SetName("dashboard.settings")
}

func (d *DashboardController) Home(ctx router.Context) error {
	token := sessionToken(ctx)

	stats, err := d.api.Stats(ctx.Context(), token)
	if err != nil {
		d.Logger.Error("stats fetch: ", "error", err)
		return d.renderUnavailable(ctx, d.Views.Home, err)
	}

	return render(ctx, d.Views.Home, router.ViewContext{
		"stats": stats,
	})
}

func (d *DashboardController) Repositories(ctx router.Context) error {
	token := sessionToken(ctx)

	repos, err := d.api.ListRepos(ctx.Context(), token)
	if err != nil {
		d.Logger.Error("repos fetch: ", "error", err)
		return d.renderUnavailable(ctx, d.Views.Repositories, err)
	}

	query := ctx.Query("q")
	return render(ctx, d.Views.Repositories, router.ViewContext{
		"repos": filterRepos(repos, query),
		"query": query,
	})
}

// RepoTogglePayload carries the repository being switched. The backend
// wants the full record so it can register repos it has never seen.
type RepoTogglePayload struct {
	ID          int64  `form:"id" json:"id"`
	Name        string `form:"name" json:"name"`
	Description string `form:"description" json:"description"`
	Language    string `form:"language" json:"language"`
	Stars       int    `form:"stars" json:"stars"`
	Forks       int    `form:"forks" json:"forks"`
	Private     bool   `form:"private" json:"private"`
	HTMLURL     string `form:"html_url" json:"html_url"`
	IsActive    bool   `form:"is_active" json:"is_active"`
}

func (d *DashboardController) ToggleRepository(ctx router.Context) error {
	token := sessionToken(ctx)

	payload := new(RepoTogglePayload)
	if err := ctx.Bind(payload); err != nil {
		d.Logger.Error("repo toggle parse: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Redirect("/dashboard/repositories", fiber.StatusSeeOther)
	}

	repo, err := d.api.ToggleRepo(ctx.Context(), token, client.Repo{
		ID:          payload.ID,
		Name:        payload.Name,
		Description: payload.Description,
		Language:    payload.Language,
		Stars:       payload.Stars,
		Forks:       payload.Forks,
		Private:     payload.Private,
		HTMLURL:     payload.HTMLURL,
		IsActive:    payload.IsActive,
	})
	if err != nil {
		d.Logger.Error("repo toggle: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Could not update repository",
		}).Redirect("/dashboard/repositories", fiber.StatusSeeOther)
	}

	message := "Automated review disabled for " + repo.Name
	if repo.IsActive {
		message = "Automated review enabled for " + repo.Name
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": message,
	}).Redirect("/dashboard/repositories", fiber.StatusSeeOther)
}

func (d *DashboardController) PullRequests(ctx router.Context) error {
	token := sessionToken(ctx)

	pulls, err := d.api.ListPulls(ctx.Context(), token)
	if err != nil {
		d.Logger.Error("pulls fetch: ", "error", err)
		return d.renderUnavailable(ctx, d.Views.PullRequests, err)
	}

	return render(ctx, d.Views.PullRequests, router.ViewContext{
		"pulls": pulls,
	})
}

// AnalyzePayload identifies the pull request to run review on.
type AnalyzePayload struct {
	RepoID   int64  `form:"repo_id" json:"repo_id"`
	PRNumber int    `form:"pr_number" json:"pr_number"`
	Title    string `form:"title" json:"title"`
	HTMLURL  string `form:"html_url" json:"html_url"`
	Author   string `form:"author" json:"author"`
}

func (d *DashboardController) TriggerAnalysis(ctx router.Context) error {
	token := sessionToken(ctx)

	payload := new(AnalyzePayload)
	if err := ctx.Bind(payload); err != nil {
		d.Logger.Error("analysis trigger parse: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Redirect("/dashboard/pull-requests", fiber.StatusSeeOther)
	}

	resp, err := d.api.TriggerAnalysis(ctx.Context(), token, client.TriggerPayload{
		RepoID:   payload.RepoID,
		PRNumber: payload.PRNumber,
		Title:    payload.Title,
		HTMLURL:  payload.HTMLURL,
		Author:   payload.Author,
	})
	if err != nil {
		d.Logger.Error("analysis trigger: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Could not start analysis",
		}).Redirect("/dashboard/pull-requests", fiber.StatusSeeOther)
	}

	return ctx.Redirect("/dashboard/analysis/"+strconv.FormatInt(resp.AnalysisID, 10), router.StatusSeeOther)
}

// Analysis renders one analysis run. Pending runs are polled server-side
// for a short window so most completed runs render in a single request;
// runs that stay pending render with their current status and the page
// refreshes itself.
func (d *DashboardController) Analysis(ctx router.Context) error {
	token := sessionToken(ctx)

	analysisID, err := strconv.ParseInt(ctx.Param("id", ""), 10, 64)
	if err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  "invalid analysis id",
			"system_message": "Not found",
		}).Redirect("/dashboard", fiber.StatusSeeOther)
	}

	interval := time.Duration(d.cfg.GetPollInterval()) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}

	// bound server-side polling to a few intervals; slow runs render as
	// pending and the page refreshes itself
	waitCtx, cancel := context.WithTimeout(ctx.Context(), 3*interval)
	defer cancel()

	result, err := d.api.AwaitAnalysis(waitCtx, token, analysisID, interval)
	if err != nil && result == nil {
		d.Logger.Error("analysis fetch: ", "error", err)
		return d.renderUnavailable(ctx, d.Views.Analysis, err)
	}

	return render(ctx, d.Views.Analysis, router.ViewContext{
		"result":  result,
		"pending": !result.Done(),
	})
}

func (d *DashboardController) Diff(ctx router.Context) error {
	token := sessionToken(ctx)

	repoID, err := strconv.ParseInt(ctx.Param("repo_id", ""), 10, 64)
	if err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  "invalid repository id",
			"system_message": "Not found",
		}).Redirect("/dashboard/pull-requests", fiber.StatusSeeOther)
	}

	prNumber, err := strconv.Atoi(ctx.Param("pr_number", ""))
	if err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  "invalid pull request number",
			"system_message": "Not found",
		}).Redirect("/dashboard/pull-requests", fiber.StatusSeeOther)
	}

	diff, err := d.api.PullDiff(ctx.Context(), token, repoID, prNumber)
	if err != nil {
		d.Logger.Error("diff fetch: ", "error", err)
		return d.renderUnavailable(ctx, d.Views.Diff, err)
	}

	return render(ctx, d.Views.Diff, router.ViewContext{
		"diff": diff,
	})
}

func (d *DashboardController) Profile(ctx router.Context) error {
	return render(ctx, d.Views.Profile, router.ViewContext{})
}

func (d *DashboardController) Settings(ctx router.Context) error {
	return render(ctx, d.Views.Settings, router.ViewContext{})
}

// renderUnavailable shows the page shell with a backend-unavailable banner
// instead of failing the whole navigation.
func (d *DashboardController) renderUnavailable(ctx router.Context, view string, err error) error {
	message := err.Error()
	if dashboard.IsNetworkFailure(err) {
		message = "Could not connect to server."
	}

	return render(ctx, view, router.ViewContext{
		"load_error": message,
	})
}

func render(ctx router.Context, name string, data router.ViewContext) error {
	return ctx.Render(name, dashboard.MergeTemplateData(ctx, data))
}

// filterRepos narrows the repo list by a case-insensitive match on name,
// description or language.
func filterRepos(repos []client.Repo, query string) []client.Repo {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return repos
	}

	var out []client.Repo
	for _, repo := range repos {
		haystack := strings.ToLower(repo.Name + " " + repo.Description + " " + repo.Language)
		if strings.Contains(haystack, query) {
			out = append(out, repo)
		}
	}
	return out
}

func sessionToken(ctx router.Context) string {
	if session, ok := dashboard.SessionFromRouter(ctx); ok {
		return session.Token
	}
	return ""
}
