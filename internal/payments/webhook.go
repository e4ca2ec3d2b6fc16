package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Webhook event types the reconciler understands.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventPaymentCanceled  = "payment_intent.canceled"
)

type WebhookEvent struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// Key identifies an event for idempotent processing: redelivered copies of
// the same (type, intent) pair map to the same key.
func (e *WebhookEvent) Key() string {
	return e.Type + ":" + e.PaymentIntentID
}

var ErrBadSignature = errors.New("webhook signature mismatch")

// DecodeWebhook verifies the HMAC-SHA256 signature the gateway puts on
// every delivery, then unmarshals the event.
func DecodeWebhook(payload []byte, signature string, secret []byte) (*WebhookEvent, error) {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrBadSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if event.PaymentIntentID == "" {
		return nil, errors.New("webhook event missing payment_intent_id")
	}
	return &event, nil
}

// SignWebhook produces the signature DecodeWebhook expects. Used by tests
// and by the local development gateway stub.
func SignWebhook(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
