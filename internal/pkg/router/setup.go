package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/payledger/PayLedger/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App) {
	// Controllers are built before routes so a configuration error (missing
	// webhook secret, unreachable database) fails at startup.
	controllers.InitializeBillingController()

	setup(app, NewApiRouter(), NewWebhookRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
