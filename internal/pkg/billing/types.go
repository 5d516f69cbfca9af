package billing

import (
	"context"
	"encoding/json"

	"github.com/payledger/PayLedger/internal/pkg/gateway"
)

// Outcome classifies the result of applying one webhook effect.
type Outcome string

const (
	// OutcomeApplied means the effect was durably written for the first time.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the effect was already present; retries land here.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored means the event was acknowledged without effects
	// (unknown event type, unknown subscription, unknown catalog id).
	OutcomeIgnored Outcome = "ignored"
	// OutcomeRejected means the delivery was untrusted or malformed and must
	// not be retried.
	OutcomeRejected Outcome = "rejected"
	// OutcomeErrored means a storage failure prevented the effect; the
	// sender should retry.
	OutcomeErrored Outcome = "errored"
)

// Gateway is the slice of the payment gateway client the intent builder
// needs. *gateway.Client satisfies it.
type Gateway interface {
	CreateOrder(ctx context.Context, in gateway.CreateOrderInput) (*gateway.Order, error)
	CreateSubscription(ctx context.Context, in gateway.CreateSubscriptionInput) (*gateway.Subscription, error)
}

// Note keys round-tripped through the gateway. Intent creation writes them;
// webhook handlers read only the gateway-echoed copy.
const (
	NoteUserID       = "userId"
	NotePlanID       = "planId"
	NoteBillingCycle = "billingCycle"
	NoteType         = "type"
	NotePackageID    = "packageId"
	NoteServiceID    = "serviceId"
	NoteCredits      = "credits"
)

const (
	OrderTypeCredits = "credits"
	OrderTypeService = "service"
)

// EventEnvelope is the outer webhook body shape: {"event": "...", "payload": {...}}.
type EventEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// SubscriptionEventPayload covers subscription.activated and
// subscription.cancelled payloads.
type SubscriptionEventPayload struct {
	Subscription struct {
		ID         string            `json:"id"`
		PlanRef    string            `json:"plan_id"`
		Status     string            `json:"status"`
		CurrentEnd int64             `json:"current_end"`
		Notes      map[string]string `json:"notes"`
	} `json:"subscription"`
}

// PaymentCapturedPayload covers payment.captured payloads. The order notes
// are the metadata attached at intent creation, echoed back by the gateway.
type PaymentCapturedPayload struct {
	Payment struct {
		ID string `json:"id"`
	} `json:"payment"`
	Order struct {
		ID    string            `json:"id"`
		Notes map[string]string `json:"notes"`
	} `json:"order"`
}
