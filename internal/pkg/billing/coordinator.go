package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/payledger/PayLedger/app/models"
	"github.com/payledger/PayLedger/internal/pkg/cache"
	"github.com/payledger/PayLedger/internal/pkg/gateway"
)

// DuplicateHint short-circuits obvious redeliveries before they reach the
// database. It is advisory only; the unique indexes on webhook_events and
// credit_transactions stay authoritative, so a lost or stale hint is safe.
type DuplicateHint interface {
	Seen(key string) bool
	Mark(key string)
}

type cacheDuplicateHint struct {
	ttl time.Duration
}

// NewCacheDuplicateHint returns a redis-backed duplicate hint.
func NewCacheDuplicateHint() DuplicateHint {
	return &cacheDuplicateHint{ttl: 24 * time.Hour}
}

func (h *cacheDuplicateHint) Seen(key string) bool {
	_, err := cache.Get("webhook:seen:" + key)
	return err == nil
}

func (h *cacheDuplicateHint) Mark(key string) {
	_, _ = cache.SetNX("webhook:seen:"+key, 1, h.ttl)
}

// Result is the terminal state of one webhook delivery.
type Result struct {
	Outcome Outcome
	Err     error
}

// Coordinator drives one webhook delivery through verification, idempotent
// recording, dispatch and acknowledgement.
type Coordinator struct {
	svc        *Service
	repo       Repository
	dispatcher *Dispatcher
	secret     string
	hint       DuplicateHint
}

// NewCoordinator wires the reconciliation pipeline. A missing webhook secret
// is a configuration error and refuses to construct, so it surfaces at
// startup instead of per request. The hint may be nil.
func NewCoordinator(svc *Service, repo Repository, webhookSecret string, hint DuplicateHint) (*Coordinator, error) {
	if strings.TrimSpace(webhookSecret) == "" {
		return nil, errors.New("webhook secret is not configured")
	}
	return &Coordinator{
		svc:        svc,
		repo:       repo,
		dispatcher: NewDispatcher(svc),
		secret:     webhookSecret,
		hint:       hint,
	}, nil
}

// ProcessWebhook handles one delivery end to end. Applied, duplicate and
// ignored outcomes must all be acknowledged with 2xx; rejected means the
// payload is untrusted or malformed (4xx, retry cannot help); errored means
// a storage failure kept the effect from being applied (5xx, retry wanted).
func (c *Coordinator) ProcessWebhook(ctx context.Context, rawBody []byte, signature, eventID string) Result {
	signatureValid := VerifySignature(rawBody, signature, c.secret)

	sum := sha256.Sum256(rawBody)
	bodyHash := "hash:" + hex.EncodeToString(sum[:])

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		eventID = bodyHash
	}

	if signatureValid && c.hint != nil && c.hint.Seen(eventID) {
		return Result{Outcome: OutcomeDuplicate}
	}

	// An unverified delivery is recorded under its body hash, never under the
	// caller-supplied event id: a forged POST must not claim the dedupe slot
	// of a genuine delivery that arrives later.
	recordID := eventID
	if !signatureValid {
		recordID = bodyHash
	}

	var envelope EventEnvelope
	parseErr := json.Unmarshal(rawBody, &envelope)

	created, stored, err := c.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		Provider:        gateway.ProviderName,
		ProviderEventID: recordID,
		EventType:       envelope.Event,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		if !signatureValid {
			// The delivery is untrusted either way; do not ask for a retry.
			return Result{Outcome: OutcomeRejected, Err: err}
		}
		return Result{Outcome: OutcomeErrored, Err: err}
	}
	if !created && processedSuccessfully(stored) {
		// Only a verified, fully applied row is proof of processing. A row
		// left by a failed or unverified attempt stays claimable, so a
		// gateway retry can still land its effects; the ledger's uniqueness
		// constraint keeps the re-dispatch exactly-once.
		if c.hint != nil {
			c.hint.Mark(eventID)
		}
		return Result{Outcome: OutcomeDuplicate}
	}

	if !signatureValid {
		_ = c.repo.MarkWebhookProcessed(stored.ID, "invalid webhook signature")
		return Result{Outcome: OutcomeRejected, Err: errors.New("invalid webhook signature")}
	}

	if parseErr != nil || strings.TrimSpace(envelope.Event) == "" {
		_ = c.repo.MarkWebhookProcessed(stored.ID, "malformed event envelope")
		return Result{Outcome: OutcomeRejected, Err: errors.New("malformed event envelope")}
	}

	outcome, handlerErr := c.dispatcher.Dispatch(ctx, envelope.Event, envelope.Payload)

	errMsg := ""
	if handlerErr != nil {
		errMsg = handlerErr.Error()
	}
	if err := c.repo.MarkWebhookProcessed(stored.ID, errMsg); err != nil {
		log.Printf("webhook: failed to mark event %d processed: %v", stored.ID, err)
	}

	if outcome == OutcomeErrored {
		return Result{Outcome: OutcomeErrored, Err: handlerErr}
	}
	if handlerErr != nil {
		// Acknowledged without effects; keep the reason on record.
		log.Printf("webhook: event %q acknowledged without effects: %v", envelope.Event, handlerErr)
	}
	if c.hint != nil {
		c.hint.Mark(eventID)
	}
	return Result{Outcome: outcome, Err: handlerErr}
}

func processedSuccessfully(e *models.WebhookEvent) bool {
	return e != nil && e.SignatureValid && e.ProcessedAt != nil && e.ProcessingError == ""
}
