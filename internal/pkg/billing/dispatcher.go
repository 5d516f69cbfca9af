package billing

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"
)

const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventPaymentCaptured       = "payment.captured"
)

// Handler applies one verified event's effects.
type Handler func(ctx context.Context, payload json.RawMessage) (Outcome, error)

// Dispatcher routes verified events to their handlers. Event types without a
// handler are acknowledged untouched so the gateway stops redelivering them.
type Dispatcher struct {
	svc      *Service
	handlers map[string]Handler
}

func NewDispatcher(svc *Service) *Dispatcher {
	d := &Dispatcher{svc: svc}
	d.handlers = map[string]Handler{
		EventSubscriptionActivated: d.handleSubscriptionActivated,
		EventSubscriptionCancelled: d.handleSubscriptionCancelled,
		EventPaymentCaptured:       d.handlePaymentCaptured,
	}
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, payload json.RawMessage) (Outcome, error) {
	h, ok := d.handlers[strings.ToLower(strings.TrimSpace(eventType))]
	if !ok {
		log.Printf("webhook: acknowledging unhandled event type %q", eventType)
		return OutcomeIgnored, nil
	}
	return h(ctx, payload)
}

func (d *Dispatcher) handleSubscriptionActivated(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	var p SubscriptionEventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return OutcomeRejected, err
	}

	var periodEnd *time.Time
	if p.Subscription.CurrentEnd > 0 {
		t := time.Unix(p.Subscription.CurrentEnd, 0)
		periodEnd = &t
	}
	return d.svc.ApplySubscriptionActivated(ctx, p.Subscription.ID, p.Subscription.Notes, periodEnd)
}

func (d *Dispatcher) handleSubscriptionCancelled(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	var p SubscriptionEventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return OutcomeRejected, err
	}
	return d.svc.ApplySubscriptionCancelled(ctx, p.Subscription.ID)
}

func (d *Dispatcher) handlePaymentCaptured(ctx context.Context, payload json.RawMessage) (Outcome, error) {
	var p PaymentCapturedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return OutcomeRejected, err
	}
	return d.svc.ApplyPaymentCaptured(ctx, p.Payment.ID, p.Order.ID, p.Order.Notes)
}
