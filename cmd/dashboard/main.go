package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"io/fs"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/prism-review/dashboard"
	"github.com/prism-review/dashboard/activitymap"
	"github.com/prism-review/dashboard/client"
	"github.com/prism-review/dashboard/controller"
	"github.com/prism-review/dashboard/middleware/csrf"
	"github.com/prism-review/dashboard/middleware/guard"
)

type App struct {
	config   *gconfig.Container[*dashboard.AppConfig]
	bunDB    *bun.DB
	repo     dashboard.RepositoryManager
	store    dashboard.TokenStore
	api      *client.Client
	provider *dashboard.SessionProvider
	srv      router.Server[*fiber.App]
	logger   *glog.BaseLogger
}

func (a *App) Config() *dashboard.AppConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("dashboard"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(dashboard.DefaultAppConfig()).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithSessionStack(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	app.srv.Serve(app.Config().GetServerAddress())

	WaitExitSignal()
}

func WithPersistence(ctx context.Context, app *App) error {
	sqlDB, err := sql.Open(sqliteshim.ShimName, app.Config().GetDSN())
	if err != nil {
		return err
	}

	db := bun.NewDB(sqlDB, sqlitedialect.New())

	if err := applyMigrations(ctx, db); err != nil {
		return err
	}

	app.bunDB = db
	app.repo = dashboard.NewRepositoryManager(db)
	app.repo.MustValidate()

	return nil
}

// applyMigrations runs the embedded schema files in lexical order. Each
// file is idempotent so a restart replays them safely.
func applyMigrations(ctx context.Context, db *bun.DB) error {
	migrations, err := fs.Sub(dashboard.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	var files []string
	err = fs.WalkDir(migrations, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".up.sql") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sort.Strings(files)

	for _, file := range files {
		raw, err := fs.ReadFile(migrations, file)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "migration failed").
				WithMetadata(map[string]any{"file": file})
		}
	}

	return nil
}

func WithSessionStack(ctx context.Context, app *App) error {
	cfg := app.Config()

	activity := activityLogger(app.GetLogger("activity"))

	app.store = dashboard.NewSessionStore(app.repo.Sessions(),
		dashboard.WithStoreLogger(app.GetLogger("store")))

	app.api = client.New(cfg.GetBackendURL(),
		client.WithLogger(app.GetLogger("api")))

	handoff := dashboard.NewHandoffConsumer(app.store,
		dashboard.WithHandoffLogger(app.GetLogger("handoff")),
		dashboard.WithHandoffActivitySink(activity))

	validator := dashboard.NewSessionValidator(app.store, app.api, handoff, cfg,
		dashboard.WithValidatorLogger(app.GetLogger("validator")),
		dashboard.WithValidatorActivitySink(activity))

	provider, err := dashboard.NewSessionProvider(validator, app.store, cfg)
	if err != nil {
		return err
	}

	app.provider = provider.
		WithLogger(app.GetLogger("session")).
		WithActivitySink(activity)

	return nil
}

// activityLogger normalizes every event into the transport-agnostic shape
// and emits it as a structured log line.
func activityLogger(lgr glog.Logger) dashboard.ActivitySink {
	return dashboard.ActivitySinkFunc(func(_ context.Context, event dashboard.ActivityEvent) error {
		normalized := activitymap.Normalize(event)
		lgr.Info("activity",
			"verb", normalized.Verb,
			"actor", normalized.ActorID,
			"channel", normalized.Channel,
			"metadata", normalized.Metadata,
			"occurred_at", normalized.OccurredAt,
		)
		return nil
	})
}

func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.Config()

	engine := django.New(cfg.GetViewsDir(), ".html")
	engine.AddFuncMap(dashboard.TemplateHelpers())

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	srv.Router().Use(mflash.New(mflash.ConfigDefault))

	key := sha256.Sum256([]byte(cfg.GetCSRFSecret()))
	srv.Router().Use(csrf.New(csrf.Config{
		SecureKey:     key[:],
		SessionCookie: cfg.GetCookieName(),
	}))

	srv.Router().Use(guard.New(guard.Config{
		CookieName:      cfg.GetCookieName(),
		ProtectedPrefix: cfg.GetProtectedPrefix(),
		ProtectedHome:   cfg.GetProtectedHome(),
		AuthEntryPaths:  []string{cfg.GetLoginRoute(), "/signup"},
		// an OAuth callback has no cookie yet; the session middleware
		// consumes the query token
		HandoffParam: cfg.GetCookieName(),
	}))

	authCtrl := controller.NewAuthController(app.api, app.provider, cfg,
		controller.WithAuthLogger(app.GetLogger("auth")))
	dashCtrl := controller.NewDashboardController(app.api, cfg,
		controller.WithDashboardLogger(app.GetLogger("pages")))
	siteCtrl := controller.NewSiteController()

	root := srv.Router().Group("/")
	controller.RegisterSiteRoutes(root, siteCtrl)
	controller.RegisterAuthRoutes(root, authCtrl)

	protected := srv.Router().Group(cfg.GetProtectedPrefix())
	protected.Use(app.provider.Middleware())
	controller.RegisterDashboardRoutes(protected, dashCtrl)
	controller.RegisterAccountRoutes(protected, authCtrl)

	srv.Router().Static("/static", "./public", router.Static{})

	app.srv = srv

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
