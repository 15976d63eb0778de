package payments

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

	"github.com/quillsign/quillsign/internal/pkg/env"
)

// Gateway creates hosted checkout sessions with the external payment
// provider. The provider is an external collaborator; this interface is
// its entire surface as far as the core is concerned.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
}

// HTTPGateway talks to the provider's checkout API.
type HTTPGateway struct {
	APIBaseURL string
	APIKey     string

	HTTPClient *http.Client
}

// NewGatewayFromEnv builds the gateway client from environment config.
func NewGatewayFromEnv() *HTTPGateway {
	return &HTTPGateway{
		APIBaseURL: strings.TrimRight(env.GetEnv("CHECKOUT_API_BASE_URL", ""), "/"),
		APIKey:     strings.TrimSpace(env.GetEnv("CHECKOUT_API_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type checkoutRequest struct {
	AmountCents   int64             `json:"amount_cents"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email"`
	Description   string            `json:"description"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
	Metadata      map[string]string `json:"metadata"`
}

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateCheckoutSession creates one hosted checkout session. The session
// metadata carries contract, company and kind so the webhook can
// re-derive them from the gateway's own record.
func (g *HTTPGateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if g.APIBaseURL == "" {
		return nil, errors.New("CHECKOUT_API_BASE_URL is not configured")
	}
	if g.APIKey == "" {
		return nil, errors.New("CHECKOUT_API_KEY is not configured")
	}
	if params.AmountCents <= 0 {
		return nil, fmt.Errorf("checkout amount must be positive, got %d", params.AmountCents)
	}

	payload := checkoutRequest{
		AmountCents:   params.AmountCents,
		Currency:      params.Currency,
		CustomerEmail: params.ClientEmail,
		Description:   params.Description,
		SuccessURL:    params.SuccessURL,
		CancelURL:     params.CancelURL,
		Metadata: map[string]string{
			"contract_id":  fmt.Sprintf("%d", params.ContractID),
			"company_id":   fmt.Sprintf("%d", params.CompanyID),
			"payment_kind": params.Kind,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.APIBaseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout session request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("checkout session creation failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out checkoutResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.SessionID) == "" {
		return nil, errors.New("checkout session response has no session_id")
	}
	return &CheckoutSession{SessionID: out.SessionID, RedirectURL: out.URL}, nil
}
