package router

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/payledger/PayLedger/app/controllers"
	"github.com/payledger/PayLedger/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Storage: newLimiterStorage(),
	}))

	v1 := api.Group("/v1")
	billingGroup := v1.Group("/billing")
	billingGroup.Post("/subscription-intent", controllers.HandleCreateSubscriptionIntent)
	billingGroup.Post("/order-intent", controllers.HandleCreateOrderIntent)
	billingGroup.Get("/balance/:userId", controllers.HandleCreditBalance)
	billingGroup.Get("/catalog", controllers.HandleCatalog)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

// newLimiterStorage backs the rate limiter with redis so limits hold across
// instances.
func newLimiterStorage() *redisstorage.Storage {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host: env.GetEnv("CACHE_HOST", "localhost"),
		Port: port,
	})
}
