package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/payledger/PayLedger/app/controllers"
)

type WebhookRouter struct {
}

// InstallRouter registers the gateway webhook endpoint. It sits outside the
// rate-limited API group: throttling the gateway's retries would only delay
// reconciliation. Authentication is the HMAC signature, checked per request.
func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Post("/webhooks/gateway", controllers.HandleGatewayWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
