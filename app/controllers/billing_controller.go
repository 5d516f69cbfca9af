package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/payledger/PayLedger/internal/pkg/billing"
	"github.com/payledger/PayLedger/internal/pkg/catalog"
	"github.com/payledger/PayLedger/internal/pkg/database"
	"github.com/payledger/PayLedger/internal/pkg/env"
	"github.com/payledger/PayLedger/internal/pkg/gateway"
)

// BillingController exposes intent creation, balance reads and the gateway
// webhook endpoint.
type BillingController struct {
	service     *billing.Service
	coordinator *billing.Coordinator
	catalog     *catalog.Catalog
}

var billingController *BillingController

func NewBillingController(svc *billing.Service, coord *billing.Coordinator, cat *catalog.Catalog) *BillingController {
	return &BillingController{service: svc, coordinator: coord, catalog: cat}
}

// InitializeBillingController builds the controller from process-wide
// collaborators. A missing webhook secret fails here, at startup.
func InitializeBillingController() {
	cat := catalog.Default()
	repo := billing.NewRepository(database.GetDB())
	svc := billing.NewService(repo, cat, gateway.NewClientFromEnv())

	coord, err := billing.NewCoordinator(svc, repo, env.GetEnv("GATEWAY_WEBHOOK_SECRET", ""), billing.NewCacheDuplicateHint())
	if err != nil {
		panic(err)
	}
	billingController = NewBillingController(svc, coord, cat)
}

// GetBillingController returns the global billing controller instance
func GetBillingController() *BillingController {
	if billingController == nil {
		InitializeBillingController()
	}
	return billingController
}

type subscriptionIntentRequest struct {
	PlanID       string `json:"planId" validate:"required,max=64"`
	BillingCycle string `json:"billingCycle" validate:"omitempty,oneof=monthly annual"`
	UserID       string `json:"userId" validate:"required,max=64"`
}

type orderIntentRequest struct {
	Type      string `json:"type" validate:"required,oneof=credits service"`
	PackageID string `json:"packageId" validate:"omitempty,max=64"`
	ServiceID string `json:"serviceId" validate:"omitempty,max=64"`
	UserID    string `json:"userId" validate:"required,max=64"`
}

var validate = validator.New()

func (bc *BillingController) HandleCreateSubscriptionIntent(c *fiber.Ctx) error {
	var req subscriptionIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "detail": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 20*time.Second)
	defer cancel()

	result, err := bc.service.CreateSubscriptionIntent(ctx, req.UserID, req.PlanID, req.BillingCycle)
	if err != nil {
		return intentErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

func (bc *BillingController) HandleCreateOrderIntent(c *fiber.Ctx) error {
	var req orderIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request_body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "detail": err.Error()})
	}

	id := req.PackageID
	if req.Type == billing.OrderTypeService {
		id = req.ServiceID
	}

	ctx, cancel := context.WithTimeout(c.Context(), 20*time.Second)
	defer cancel()

	result, err := bc.service.CreateOrderIntent(ctx, req.UserID, req.Type, id)
	if err != nil {
		return intentErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

func (bc *BillingController) HandleCreditBalance(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id_required"})
	}

	balance, err := bc.service.CreditBalance(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "balance_lookup_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"user_id": userID, "balance": balance})
}

func (bc *BillingController) HandleCatalog(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"plans":    bc.catalog.Plans(),
		"packages": bc.catalog.Packages(),
	})
}

func (bc *BillingController) HandleGatewayWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("X-Signature")
	eventID := c.Get("X-Event-Id")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result := bc.coordinator.ProcessWebhook(ctx, rawBody, signature, eventID)
	switch result.Outcome {
	case billing.OutcomeApplied:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	case billing.OutcomeDuplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case billing.OutcomeIgnored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	case billing.OutcomeRejected:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "rejected"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}
}

func intentErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, billing.ErrInvalidPlan),
		errors.Is(err, billing.ErrInvalidPackage),
		errors.Is(err, billing.ErrInvalidService),
		errors.Is(err, billing.ErrInvalidOrderType):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, billing.ErrGateway):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment_gateway_unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "intent_creation_failed"})
	}
}

// Package-level handlers used by the router.

func HandleCreateSubscriptionIntent(c *fiber.Ctx) error {
	return GetBillingController().HandleCreateSubscriptionIntent(c)
}

func HandleCreateOrderIntent(c *fiber.Ctx) error {
	return GetBillingController().HandleCreateOrderIntent(c)
}

func HandleCreditBalance(c *fiber.Ctx) error {
	return GetBillingController().HandleCreditBalance(c)
}

func HandleCatalog(c *fiber.Ctx) error {
	return GetBillingController().HandleCatalog(c)
}

func HandleGatewayWebhook(c *fiber.Ctx) error {
	return GetBillingController().HandleGatewayWebhook(c)
}
