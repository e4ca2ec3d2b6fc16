package service

import (
	"context"
	"errors"
	"time"

	"github.com/chefmarket/backend/internal/events"
	"github.com/chefmarket/backend/internal/logging"
	"github.com/chefmarket/backend/internal/models"
	"github.com/chefmarket/backend/internal/repo"
	"github.com/google/uuid"
)

// Actor identifies who is driving a status change. Chefs move orders along
// the fulfillment path; customers and the payment reconciler may only
// cancel.
type Actor string

const (
	ActorChef     Actor = "chef"
	ActorCustomer Actor = "customer"
	ActorSystem   Actor = "system"
)

// transitions is the full legal transition table. Anything absent is
// rejected without touching the order.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:        {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed:      {models.OrderStatusPreparing, models.OrderStatusCancelled},
	models.OrderStatusPreparing:      {models.OrderStatusReady, models.OrderStatusCancelled},
	models.OrderStatusReady:          {models.OrderStatusOutForDelivery, models.OrderStatusDelivered},
	models.OrderStatusOutForDelivery: {models.OrderStatusDelivered},
	models.OrderStatusDelivered:      nil,
	models.OrderStatusCancelled:      nil,
}

func canTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// cancellableFrom limits cancellation to the states where the chef has not
// started cooking.
func cancellableFrom(status models.OrderStatus) bool {
	return status == models.OrderStatusPending || status == models.OrderStatusConfirmed
}

type StatusService struct {
	Store     repo.Store
	Publisher events.Publisher
}

// UpdateStatus applies one transition on behalf of the acting party.
// The write is a compare-and-set on the order's current status, so two
// concurrent updates cannot both win.
func (s *StatusService) UpdateStatus(ctx context.Context, orderID uuid.UUID, requested models.OrderStatus, actor Actor, actorID uuid.UUID) (*models.Order, error) {
	if requested == models.OrderStatusCancelled {
		return s.Cancel(ctx, orderID, actor, actorID, "cancelled by "+string(actor))
	}

	order, err := s.Store.OrderByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, Errf(CodeOrderNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, err
	}

	if actor != ActorChef || order.ChefID != actorID {
		return nil, Errf(CodeInvalidStatusTransition, "only the order's chef may set status %s", requested)
	}
	if !canTransition(order.Status, requested) {
		return nil, Errf(CodeInvalidStatusTransition, "cannot go from %s to %s", order.Status, requested)
	}

	updates := map[string]any{"status": requested}
	if requested == models.OrderStatusDelivered {
		now := time.Now().UTC()
		updates["actual_delivery_time"] = &now
	}

	ok, err := s.Store.UpdateOrderStatus(ctx, orderID, order.Status, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Errf(CodeInvalidStatusTransition, "order %s changed concurrently", orderID)
	}

	s.publishStatusChange(ctx, order, requested)
	return s.Store.OrderByID(ctx, orderID)
}

// Cancel moves an order to cancelled, releases its reserved inventory and
// marks the payment for refund. Restricted to orders the chef has not
// started preparing.
func (s *StatusService) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, actorID uuid.UUID, reason string) (*models.Order, error) {
	order, err := s.Store.OrderByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, Errf(CodeOrderNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, err
	}

	switch actor {
	case ActorCustomer:
		if order.CustomerID != actorID {
			return nil, Errf(CodeOrderNotCancellable, "order does not belong to this customer")
		}
	case ActorSystem:
		// payment reconciliation may cancel any order
	default:
		return nil, Errf(CodeOrderNotCancellable, "chefs cannot cancel orders")
	}

	if !cancellableFrom(order.Status) {
		return nil, Errf(CodeOrderNotCancellable, "order in status %s can no longer be cancelled", order.Status)
	}

	paymentStatus := order.PaymentStatus
	if paymentStatus == models.PaymentStatusPaid {
		paymentStatus = models.PaymentStatusRefunded
	}

	err = s.Store.Transaction(ctx, func(tx repo.Store) error {
		ok, err := tx.UpdateOrderStatus(ctx, orderID, order.Status, map[string]any{
			"status":              models.OrderStatusCancelled,
			"payment_status":      paymentStatus,
			"cancellation_reason": reason,
		})
		if err != nil {
			return err
		}
		// losing the CAS means someone else cancelled or the chef moved
		// on; in either case inventory must not be released twice
		if !ok {
			return Errf(CodeOrderNotCancellable, "order %s changed concurrently", orderID)
		}
		for _, item := range order.Items {
			if err := tx.ReleaseMeal(ctx, item.MealID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("order cancelled",
		"order_id", orderID, "actor", actor, "reason", reason)
	s.publishStatusChange(ctx, order, models.OrderStatusCancelled)
	return s.Store.OrderByID(ctx, orderID)
}

func (s *StatusService) publishStatusChange(ctx context.Context, order *models.Order, newStatus models.OrderStatus) {
	if err := s.Publisher.Publish(ctx, events.Event{
		Type:       events.TypeOrderStatusChanged,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ChefID:     order.ChefID,
		OldStatus:  string(order.Status),
		NewStatus:  string(newStatus),
	}); err != nil {
		logging.FromContext(ctx).Error("publish status change failed",
			"order_id", order.ID, "error", err)
	}
}
