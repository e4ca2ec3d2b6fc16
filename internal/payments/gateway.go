// Package payments defines the boundary to the external payment provider.
// The services only ever talk to the Gateway interface; the HTTP client in
// this package is one implementation of it.
package payments

import (
	"context"
	"errors"
)

type IntentStatus string

const (
	IntentSucceeded             IntentStatus = "succeeded"
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentProcessing            IntentStatus = "processing"
	IntentCanceled              IntentStatus = "canceled"
	IntentPaymentFailed         IntentStatus = "payment_failed"
)

type Intent struct {
	ID       string       `json:"id"`
	Status   IntentStatus `json:"status"`
	Amount   float64      `json:"amount"`
	Currency string       `json:"currency"`
}

type Refund struct {
	ID     string  `json:"id"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`
}

// ErrGatewayTimeout marks a call that timed out against the provider.
// Timeouts are retryable and must never be treated as success.
var ErrGatewayTimeout = errors.New("payment gateway timeout")

type Gateway interface {
	CreateIntent(ctx context.Context, amount float64, currency, orderRef string) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	ConfirmIntent(ctx context.Context, intentID string) (*Intent, error)
	CreateRefund(ctx context.Context, intentID string, amount float64, reason string) (*Refund, error)
}
