package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/payledger/PayLedger/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.paygate.example.com/v1"

// ProviderName is stored on audit rows to identify the gateway.
const ProviderName = "paygate"

// Client talks to the payment gateway's REST API. Credentials are read once
// at construction; the client is safe for concurrent use.
type Client struct {
	KeyID      string
	KeySecret  string
	APIBaseURL string

	HTTPClient *http.Client
}

// Order is the gateway-side order resource returned on creation.
type Order struct {
	ID          string            `json:"id"`
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Status      string            `json:"status"`
	Notes       map[string]string `json:"notes"`
}

// Subscription is the gateway-side subscription resource returned on creation.
type Subscription struct {
	ID         string            `json:"id"`
	PlanRef    string            `json:"plan_id"`
	Status     string            `json:"status"`
	TotalCount int               `json:"total_count"`
	Notes      map[string]string `json:"notes"`
}

// CreateOrderInput carries everything the gateway needs for a one-time
// payment. Notes are echoed back verbatim in webhook payloads.
type CreateOrderInput struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes"`
}

// CreateSubscriptionInput carries the recurring billing parameters.
type CreateSubscriptionInput struct {
	PlanRef    string            `json:"plan_id"`
	TotalCount int               `json:"total_count"`
	Notes      map[string]string `json:"notes"`
}

func NewClientFromEnv() *Client {
	return &Client{
		KeyID:      strings.TrimSpace(env.GetEnv("GATEWAY_KEY_ID", "")),
		KeySecret:  strings.TrimSpace(env.GetEnv("GATEWAY_KEY_SECRET", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("GATEWAY_API_BASE_URL", defaultAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateOrder creates a gateway order for a one-time payment.
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if in.AmountMinor <= 0 {
		return nil, errors.New("order amount must be positive")
	}
	var out Order
	if err := c.post(ctx, "/orders", in, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("gateway order response missing id")
	}
	return &out, nil
}

// CreateSubscription creates a gateway subscription resource.
func (c *Client) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*Subscription, error) {
	if strings.TrimSpace(in.PlanRef) == "" {
		return nil, errors.New("subscription plan ref is required")
	}
	var out Subscription
	if err := c.post(ctx, "/subscriptions", in, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("gateway subscription response missing id")
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	if strings.TrimSpace(c.KeyID) == "" || strings.TrimSpace(c.KeySecret) == "" {
		return errors.New("GATEWAY_KEY_ID/GATEWAY_KEY_SECRET are not configured")
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	url := strings.TrimRight(c.APIBaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return json.Unmarshal(body, out)
}
