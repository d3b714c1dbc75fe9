// Package payment drives the two-phase purchase protocol: create a payment
// intent, confirm it, and only then grant access.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrIntentCreation indicates the gateway could not create an intent. It
	// is surfaced without retry; blind resubmission could double-charge.
	ErrIntentCreation = errors.New("payment intent creation failed")
)

// Confirmation statuses reported by the gateway.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ConfirmResult is the gateway's verdict on a confirmation attempt. The
// gateway echoes the product and amount the confirmed intent was created for,
// so callers can bind the settlement to what the buyer actually paid for.
type ConfirmResult struct {
	Status      string `json:"status"`
	PaymentID   string `json:"paymentId,omitempty"`
	Reason      string `json:"reason,omitempty"`
	ProductID   string `json:"productId"`
	AmountCents int64  `json:"amountCents"`
}

// Gateway creates and confirms payment intents.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency, productID string) (string, error)
	Confirm(ctx context.Context, clientSecret, paymentMethod string) (ConfirmResult, error)
}

// HTTPGateway talks to the payment service's REST boundary.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPGateway builds a gateway client with a bounded timeout.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateIntent asks the gateway for a new intent and returns its client
// secret.
func (g *HTTPGateway) CreateIntent(ctx context.Context, amountCents int64, currency, productID string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"amount":    amountCents,
		"currency":  currency,
		"productId": productID,
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		ClientSecret string `json:"clientSecret"`
	}
	if err := g.post(ctx, "/payments/create-intent", payload, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIntentCreation, err)
	}
	if resp.ClientSecret == "" {
		return "", fmt.Errorf("%w: gateway returned no client secret", ErrIntentCreation)
	}
	return resp.ClientSecret, nil
}

// Confirm settles an intent with the given payment method.
func (g *HTTPGateway) Confirm(ctx context.Context, clientSecret, paymentMethod string) (ConfirmResult, error) {
	payload, err := json.Marshal(map[string]string{
		"clientSecret":  clientSecret,
		"paymentMethod": paymentMethod,
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	var result ConfirmResult
	if err := g.post(ctx, "/payments/confirm", payload, &result); err != nil {
		return ConfirmResult{}, fmt.Errorf("confirm payment: %w", err)
	}
	return result, nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("gateway error: %s", errResp.Error)
		}
		return fmt.Errorf("gateway error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
