// Package controller holds the HTTP handlers for the dashboard: credential
// acquisition, the review pages, and the public site.
package controller

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"

	"github.com/prism-review/dashboard"
	"github.com/prism-review/dashboard/client"
)

type AuthControllerRoutes struct {
	Login   string
	Signup  string
	GitHub  string
	Logout  string
	Account string
}

type AuthControllerViews struct {
	Login  string
	Signup string
}

// AuthController owns the credential acquisition flows. Every flow ends by
// either establishing a session through the provider or surfacing the
// backend's own error message to the form.
type AuthController struct {
	Logger       dashboard.Logger
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ErrorHandler router.ErrorHandler

	api      *client.Client
	provider *dashboard.SessionProvider
	activity dashboard.ActivitySink
	cfg      dashboard.Config
}

type AuthControllerOption func(*AuthController) *AuthController

func WithAuthLogger(logger dashboard.Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithAuthActivitySink(sink dashboard.ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if sink != nil {
			c.activity = sink
		}
		return c
	}
}

func NewAuthController(api *client.Client, provider *dashboard.SessionProvider, cfg dashboard.Config, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   dashboard.DefaultLogger(),
		api:      api,
		provider: provider,
		cfg:      cfg,
		activity: dashboard.ActivitySinkFunc(func(context.Context, dashboard.ActivityEvent) error {
			return nil
		}),
		Routes: &AuthControllerRoutes{
			Login:   "/login",
			Signup:  "/signup",
			GitHub:  "/login/github",
			Logout:  "/logout",
			Account: "/account",
		},
		Views: &AuthControllerViews{
			Login:  "login",
			Signup: "signup",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.api == nil {
		panic("Missing API client in auth controller...")
	}

	if c.provider == nil {
		panic("Missing session provider in auth controller...")
	}

	return c
}

// RegisterRoutes mounts the credential flows on the router.
func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController) {
	app.Get(controller.Routes.Login, controller.LoginShow).SetName("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost).SetName("sign-in.post")

	app.Get(controller.Routes.Signup, controller.SignupShow).SetName("sign-up.get")
	app.Post(controller.Routes.Signup, controller.SignupPost).SetName("sign-up.post")

	app.Post(controller.Routes.GitHub, controller.GitHubLogin).SetName("sign-in.github")

	app.Get(controller.Routes.Logout, controller.Logout).SetName("sign-out.get")
}

// RegisterAccountRoutes mounts the session-dependent account operations.
// The group must already run the session middleware.
func RegisterAccountRoutes[T any](app router.Router[T], controller *AuthController) {
	app.Post(controller.Routes.Account+"/delete", controller.DeleteAccount).SetName("account.delete")
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Login, router.ViewContext{
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	grant, err := a.api.LoginAccessToken(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login token exchange: ", "error", err)
		a.recordAuthEvent(ctx, dashboard.ActivityEventLoginFailure, map[string]any{
			"flow": "password",
		})

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  loginErrorMessage(err),
			"system_message": "Authentication Error",
		}).Status(fiber.StatusUnauthorized).Render(a.Views.Login, router.ViewContext{
			"record": payload,
		})
	}

	if err := a.provider.EstablishSession(ctx, grant.AccessToken); err != nil {
		a.Logger.Error("login establish session: ", "error", err)
		return a.errorHandler()(ctx, err)
	}

	a.recordAuthEvent(ctx, dashboard.ActivityEventLoginSuccess, map[string]any{
		"flow": "password",
	})

	return ctx.Redirect(a.cfg.GetProtectedHome(), router.StatusSeeOther)
}

func (a *AuthController) SignupShow(ctx router.Context) error {
	return ctx.Render(a.Views.Signup, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// SignupRequest is the registration form payload
type SignupRequest struct {
	FullName        string `form:"full_name" json:"full_name"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) SignupPost(ctx router.Context) error {
	payload := new(SignupRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Signup, router.ViewContext{
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Signup, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	grant, err := a.api.Signup(ctx.Context(), client.SignupPayload{
		Email:    payload.Email,
		Password: payload.Password,
		FullName: payload.FullName,
	})
	if err != nil {
		a.Logger.Error("signup create account: ", "error", err)
		// the backend's detail string is shown as-is so duplicate-email
		// and policy failures read the same as they do upstream
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Registration Error",
		}).Render(a.Views.Signup, router.ViewContext{
			"record": payload,
		})
	}

	if err := a.provider.EstablishSession(ctx, grant.AccessToken); err != nil {
		a.Logger.Error("signup establish session: ", "error", err)
		return a.errorHandler()(ctx, err)
	}

	a.recordAuthEvent(ctx, dashboard.ActivityEventLoginSuccess, map[string]any{
		"flow": "signup",
	})

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Welcome to PRISM",
	}).Redirect(a.cfg.GetProtectedHome(), fiber.StatusSeeOther)
}

// GitHubLogin asks the backend for the provider authorization URL and
// forwards the browser there. The lookup is bounded so a cold backend
// produces a retry prompt instead of a hung form.
func (a *AuthController) GitHubLogin(ctx router.Context) error {
	timeout := time.Duration(a.cfg.GetOAuthTimeout()) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	reqCtx, cancel := context.WithTimeout(ctx.Context(), timeout)
	defer cancel()

	url, err := a.api.GitHubLoginURL(reqCtx)
	if err != nil {
		a.Logger.Warn("github authorize url: ", "error", err)
		a.recordAuthEvent(ctx, dashboard.ActivityEventLoginFailure, map[string]any{
			"flow": "github",
		})

		message := "GitHub sign-in failed, please try again"
		if dashboard.IsNetworkFailure(err) {
			message = "The backend is waking up, please try again in a moment"
		}

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  message,
			"system_message": "Authentication Error",
		}).Render(a.Views.Login, router.ViewContext{
			"record": nil,
		})
	}

	return ctx.Redirect(url, router.StatusFound)
}

func (a *AuthController) Logout(ctx router.Context) error {
	return a.provider.Logout(ctx)
}

// DeleteAccount removes the account upstream and then drops every trace of
// the session locally.
func (a *AuthController) DeleteAccount(ctx router.Context) error {
	session, ok := dashboard.SessionFromRouter(ctx)
	if !ok || !session.Authenticated() {
		return ctx.Redirect(a.Routes.Login, router.StatusSeeOther)
	}

	if err := a.api.DeleteAccount(ctx.Context(), session.Token); err != nil {
		a.Logger.Error("account delete: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Could not delete account",
		}).Redirect("/dashboard/settings", fiber.StatusSeeOther)
	}

	a.recordAuthEvent(ctx, dashboard.ActivityEventAccountDeleted, map[string]any{
		"user_id": userID(session),
	})

	a.provider.TerminateSession(ctx)

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Your account has been deleted",
	}).Redirect("/", fiber.StatusSeeOther)
}

func (a *AuthController) recordAuthEvent(ctx router.Context, event dashboard.ActivityEventType, meta map[string]any) {
	if err := a.activity.Record(ctx.Context(), dashboard.ActivityEvent{
		EventType:  event,
		Metadata:   meta,
		OccurredAt: time.Now(),
	}); err != nil {
		a.Logger.Warn("activity sink failure", "event", event, "error", err)
	}
}

func (a *AuthController) errorHandler() router.ErrorHandler {
	if a.ErrorHandler != nil {
		return a.ErrorHandler
	}
	return func(c router.Context, err error) error {
		return c.Render("errors/500", router.ViewContext{
			"message": err.Error(),
		})
	}
}

// loginErrorMessage keeps the backend's own rejection text when it has one
// and falls back to a generic message for transport failures.
func loginErrorMessage(err error) string {
	if dashboard.IsNetworkFailure(err) {
		return "Could not reach the server, please try again"
	}
	return err.Error()
}

func userID(session *dashboard.SessionObject) int64 {
	if user := session.GetUser(); user != nil {
		return user.ID
	}
	return 0
}
