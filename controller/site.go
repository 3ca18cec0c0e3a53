package controller

import (
	"github.com/goliatone/go-router"
)

type SiteControllerViews struct {
	Landing string
	Privacy string
	Terms   string
}

// SiteController renders the public marketing pages.
type SiteController struct {
	Views *SiteControllerViews
}

func NewSiteController() *SiteController {
	return &SiteController{
		Views: &SiteControllerViews{
			Landing: "site/landing",
			Privacy: "site/privacy",
			Terms:   "site/terms",
		},
	}
}

func RegisterSiteRoutes[T any](app router.Router[T], controller *SiteController) {
	app.Get("/", controller.Landing).SetName("site.landing")
	app.Get("/privacy", controller.Privacy).SetName("site.privacy")
	app.Get("/terms", controller.Terms).SetName("site.terms")
}

func (s *SiteController) Landing(ctx router.Context) error {
	return render(ctx, s.Views.Landing, router.ViewContext{})
}

func (s *SiteController) Privacy(ctx router.Context) error {
	return render(ctx, s.Views.Privacy, router.ViewContext{})
}

func (s *SiteController) Terms(ctx router.Context) error {
	return render(ctx, s.Views.Terms, router.ViewContext{})
}
