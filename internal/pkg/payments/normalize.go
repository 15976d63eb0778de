package payments

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The gateway has shipped two metadata key schemes over time. Everything
// is mapped here, at the boundary; core logic only ever sees
// WebhookNotice.

// webhookEnvelope matches the raw gateway notification body.
type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		SessionID     string            `json:"session_id"`
		ID            string            `json:"id"`
		PaymentStatus string            `json:"payment_status"`
		AmountTotal   *int64            `json:"amount_total"`
		Amount        *float64          `json:"amount"`
		Currency      string            `json:"currency"`
		Metadata      map[string]string `json:"metadata"`
	} `json:"data"`
}

// paymentStatusPaid is the only literal treated as success.
const paymentStatusPaid = "paid"

// ParseWebhook decodes a raw notification body and normalizes both the
// current and the legacy metadata key scheme into one WebhookNotice.
func ParseWebhook(raw []byte) (*WebhookNotice, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("webhook body decode: %w", err)
	}

	sessionID := strings.TrimSpace(env.Data.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(env.Data.ID)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("webhook body has no session identifier")
	}

	notice := &WebhookNotice{
		EventID:   strings.TrimSpace(env.ID),
		SessionID: sessionID,
		Paid:      env.Data.PaymentStatus == paymentStatusPaid,
		Currency:  strings.ToLower(strings.TrimSpace(env.Data.Currency)),
	}

	// Amounts arrive as minor units on the current scheme; the legacy
	// scheme reported a float major-unit amount.
	switch {
	case env.Data.AmountTotal != nil:
		notice.AmountCents = *env.Data.AmountTotal
	case env.Data.Amount != nil:
		notice.AmountCents = int64(*env.Data.Amount*100 + 0.5)
	}

	meta := env.Data.Metadata
	contractID, err := metaUint(meta, "contract_id", "contractId")
	if err != nil {
		return nil, fmt.Errorf("webhook metadata: %w", err)
	}
	companyID, err := metaUint(meta, "company_id", "companyId")
	if err != nil {
		return nil, fmt.Errorf("webhook metadata: %w", err)
	}
	notice.ContractID = contractID
	notice.CompanyID = companyID
	notice.Kind = normalizeKind(metaString(meta, "payment_kind", "paymentType"))

	return notice, nil
}

func metaString(meta map[string]string, current, legacy string) string {
	if v, ok := meta[current]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(meta[legacy])
}

func metaUint(meta map[string]string, current, legacy string) (uint, error) {
	raw := metaString(meta, current, legacy)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", current)
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", current, raw)
	}
	return uint(v), nil
}

func normalizeKind(raw string) string {
	switch strings.ToLower(raw) {
	case "remaining_balance", "remainingbalance", "balance", "final":
		return "remaining_balance"
	default:
		return "deposit"
	}
}
