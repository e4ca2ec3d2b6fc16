package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/chefmarket/backend/internal/events"
	"github.com/chefmarket/backend/internal/idempotency"
	"github.com/chefmarket/backend/internal/logging"
	"github.com/chefmarket/backend/internal/metrics"
	"github.com/chefmarket/backend/internal/models"
	"github.com/chefmarket/backend/internal/payments"
	"github.com/chefmarket/backend/internal/repo"
	"github.com/google/uuid"
)

const (
	amountTolerance = 0.01
	retryAttempts   = 3
)

type PaymentService struct {
	Store     repo.Store
	Gateway   payments.Gateway
	Processed idempotency.Store
	Publisher events.Publisher
	Metrics   *metrics.Metrics

	// RetryBaseDelay is the wait before the first status re-poll; it
	// doubles on each attempt. Defaults to 2s.
	RetryBaseDelay time.Duration
}

// CreateIntent opens a payment intent at the gateway for an order that has
// not been paid yet and pins the intent id to the order.
func (s *PaymentService) CreateIntent(ctx context.Context, orderID uuid.UUID, amount float64, currency string) (*payments.Intent, error) {
	order, err := s.orderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending || order.PaymentStatus != models.PaymentStatusPending {
		return nil, Errf(CodeOrderNotEligible, "order is %s/%s, expected pending/pending", order.Status, order.PaymentStatus)
	}
	if math.Abs(amount-order.FinalAmount) > amountTolerance+1e-9 {
		return nil, Errf(CodeAmountMismatch, "amount %.2f does not match order total %.2f", amount, order.FinalAmount)
	}
	if currency == "" {
		currency = "usd"
	}

	intent, err := s.Gateway.CreateIntent(ctx, amount, currency, order.ID.String())
	if err != nil {
		return nil, gatewayError(err)
	}
	if err := s.Store.SetOrderPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("payment intent created",
		"order_id", order.ID, "intent_id", intent.ID, "amount", amount)
	return intent, nil
}

// Confirm asks the gateway to settle the intent and maps the outcome onto
// the owning order.
func (s *PaymentService) Confirm(ctx context.Context, intentID string) (*models.Order, error) {
	order, err := s.orderByIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	intent, err := s.Gateway.ConfirmIntent(ctx, intentID)
	if err != nil {
		return nil, gatewayError(err)
	}

	switch intent.Status {
	case payments.IntentSucceeded:
		if _, err := s.Store.MarkOrderPaid(ctx, order.ID); err != nil {
			return nil, err
		}
	case payments.IntentRequiresPaymentMethod, payments.IntentRequiresConfirmation:
		return nil, Errf(CodePaymentIncomplete, "payment requires further customer action (%s)", intent.Status)
	case payments.IntentCanceled, payments.IntentPaymentFailed:
		if _, err := s.Store.MarkOrderPaymentFailed(ctx, order.ID); err != nil {
			return nil, err
		}
		s.publishPaymentFailed(ctx, order)
	}

	return s.orderByID(ctx, order.ID)
}

// Refund returns money for a paid order and cancels it. A nil amount means
// refund in full.
func (s *PaymentService) Refund(ctx context.Context, orderID uuid.UUID, amount *float64, reason string) (*models.Order, error) {
	order, err := s.orderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != models.PaymentStatusPaid {
		return nil, Errf(CodeInvalidPaymentStatus, "order payment is %s, only paid orders can be refunded", order.PaymentStatus)
	}

	refundAmount := order.FinalAmount
	if amount != nil {
		if *amount <= 0 || *amount > order.FinalAmount+amountTolerance {
			return nil, Errf(CodeInvalidRefundAmount, "refund %.2f outside (0, %.2f]", *amount, order.FinalAmount)
		}
		refundAmount = *amount
	}

	if _, err := s.Gateway.CreateRefund(ctx, order.PaymentIntentID, refundAmount, reason); err != nil {
		return nil, gatewayError(err)
	}

	err = s.Store.Transaction(ctx, func(tx repo.Store) error {
		ok, err := tx.UpdateOrderStatus(ctx, order.ID, order.Status, map[string]any{
			"status":              models.OrderStatusCancelled,
			"payment_status":      models.PaymentStatusRefunded,
			"cancellation_reason": reason,
		})
		if err != nil {
			return err
		}
		if !ok {
			return Errf(CodeInvalidStatusTransition, "order %s changed concurrently", order.ID)
		}
		if order.Status != models.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := tx.ReleaseMeal(ctx, item.MealID, item.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("order refunded",
		"order_id", order.ID, "amount", refundAmount, "reason", reason)
	return s.orderByID(ctx, order.ID)
}

// Retry re-polls the gateway for an order whose payment is still unsettled,
// backing off 2s/4s/8s between checks, and promotes the order when the
// intent finally succeeded.
func (s *PaymentService) Retry(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, Errf(CodePaymentAlreadySuccessful, "order is already paid")
	}
	if order.PaymentIntentID == "" {
		return nil, Errf(CodeOrderNotEligible, "order has no payment intent to retry")
	}

	delay := s.RetryBaseDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	var lastStatus payments.IntentStatus
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
		s.Metrics.IncPaymentRetry()

		intent, err := s.Gateway.RetrieveIntent(ctx, order.PaymentIntentID)
		if err != nil {
			logging.FromContext(ctx).Warn("payment retry poll failed",
				"order_id", orderID, "attempt", attempt, "error", err)
			continue
		}
		lastStatus = intent.Status
		if intent.Status == payments.IntentSucceeded {
			if _, err := s.Store.MarkOrderPaid(ctx, order.ID); err != nil {
				return nil, err
			}
			return s.orderByID(ctx, order.ID)
		}
	}

	return nil, Errf(CodePaymentIncomplete, "payment still unsettled after %d attempts (last status %q)", retryAttempts, lastStatus)
}

// ReconcileWebhook applies a gateway event to local state. Processing is
// idempotent twice over: the processed-event store rejects redelivered
// events, and every write is conditional on current state. The event is
// marked processed only once its state change stuck; any failure hands the
// event back, so the gateway's redelivery gets another chance instead of
// being skipped as a duplicate.
func (s *PaymentService) ReconcileWebhook(ctx context.Context, event *payments.WebhookEvent) error {
	l := logging.FromContext(ctx).With("event_type", event.Type, "intent_id", event.PaymentIntentID)

	// looked up before marking: a webhook racing ahead of the intent being
	// attached to its order must not consume the event
	order, err := s.orderByIntent(ctx, event.PaymentIntentID)
	if err != nil {
		s.Metrics.IncWebhook(event.Type, "orphan")
		return err
	}

	fresh, err := s.Processed.MarkIfNew(ctx, event.Key())
	if err != nil {
		return err
	}
	if !fresh {
		l.Info("webhook event already processed, skipping")
		s.Metrics.IncWebhook(event.Type, "duplicate")
		return nil
	}

	outcome, err := s.applyWebhook(ctx, l, event, order)
	if err != nil {
		if uerr := s.Processed.Unmark(ctx, event.Key()); uerr != nil {
			l.Error("unmark webhook event failed", "error", uerr)
		}
		return err
	}
	s.Metrics.IncWebhook(event.Type, outcome)
	return nil
}

func (s *PaymentService) applyWebhook(ctx context.Context, l *slog.Logger, event *payments.WebhookEvent, order *models.Order) (string, error) {
	switch event.Type {
	case payments.EventPaymentSucceeded:
		applied, err := s.Store.MarkOrderPaid(ctx, order.ID)
		if err != nil {
			return "", err
		}
		if applied {
			l.Info("order marked paid from webhook", "order_id", order.ID)
		}
	case payments.EventPaymentFailed:
		applied, err := s.Store.MarkOrderPaymentFailed(ctx, order.ID)
		if err != nil {
			return "", err
		}
		if applied {
			s.publishPaymentFailed(ctx, order)
		}
	case payments.EventPaymentCanceled:
		if order.Status != models.OrderStatusCancelled {
			err := s.Store.Transaction(ctx, func(tx repo.Store) error {
				ok, err := tx.UpdateOrderStatus(ctx, order.ID, order.Status, map[string]any{
					"status":              models.OrderStatusCancelled,
					"payment_status":      models.PaymentStatusFailed,
					"cancellation_reason": "payment_canceled",
				})
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				for _, item := range order.Items {
					if err := tx.ReleaseMeal(ctx, item.MealID, item.Quantity); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return "", err
			}
		}
	default:
		l.Warn("ignoring unknown webhook event type")
		return "ignored", nil
	}
	return "applied", nil
}

func (s *PaymentService) orderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Store.OrderByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, Errf(CodeOrderNotFound, "order %s not found", orderID)
	}
	return order, err
}

func (s *PaymentService) orderByIntent(ctx context.Context, intentID string) (*models.Order, error) {
	order, err := s.Store.OrderByPaymentIntent(ctx, intentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, Errf(CodeOrderNotFound, "no order for payment intent %s", intentID)
	}
	return order, err
}

func (s *PaymentService) publishPaymentFailed(ctx context.Context, order *models.Order) {
	if err := s.Publisher.Publish(ctx, events.Event{
		Type:       events.TypePaymentFailed,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ChefID:     order.ChefID,
		Amount:     order.FinalAmount,
	}); err != nil {
		logging.FromContext(ctx).Error("publish payment_failed failed",
			"order_id", order.ID, "error", err)
	}
}

// gatewayError separates transport problems from business failures so
// callers can retry timeouts and surface declines.
func gatewayError(err error) error {
	if errors.Is(err, payments.ErrGatewayTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return Errf(CodePaymentGatewayTimeout, "payment gateway timed out")
	}
	return Errf(CodePaymentGatewayError, "payment gateway error: %v", err)
}
