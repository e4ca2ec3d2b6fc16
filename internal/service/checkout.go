package service

import (
	"context"
	"errors"
	"time"

	"github.com/chefmarket/backend/internal/events"
	"github.com/chefmarket/backend/internal/logging"
	"github.com/chefmarket/backend/internal/metrics"
	"github.com/chefmarket/backend/internal/models"
	"github.com/chefmarket/backend/internal/money"
	"github.com/chefmarket/backend/internal/repo"
	"github.com/google/uuid"
)

// deliveryBuffer is added on top of the slowest meal's prep time when
// estimating delivery.
const deliveryBuffer = 30 * time.Minute

type CheckoutService struct {
	Store     repo.Store
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Fees      FeeConfig
}

type CheckoutInput struct {
	PaymentIntentID string
	CustomerNotes   string
	IdempotencyKey  string
}

type CheckoutResult struct {
	Orders                []models.Order `json:"orders"`
	TotalOrders           int            `json:"total_orders"`
	TotalAmount           float64        `json:"total_amount"`
	EstimatedDeliveryTime time.Time      `json:"estimated_delivery_time"`
}

// Checkout converts the customer's cart into one order per chef. The whole
// conversion runs in a single database transaction: inventory decrements,
// order inserts and the cart clear either all commit or all roll back, so a
// failure partway never leaks reserved stock or half a checkout.
func (s *CheckoutService) Checkout(ctx context.Context, customerID uuid.UUID, in CheckoutInput) (*CheckoutResult, error) {
	l := logging.FromContext(ctx).With("customer_id", customerID)

	if in.IdempotencyKey != "" {
		prior, err := s.Store.OrdersByIdempotencyKey(ctx, customerID, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if len(prior) > 0 {
			l.Info("checkout replay detected", "idempotency_key", in.IdempotencyKey, "orders", len(prior))
			return resultFromOrders(prior), nil
		}
	}

	var result *CheckoutResult
	err := s.Store.Transaction(ctx, func(tx repo.Store) error {
		now := time.Now().UTC()

		cart, err := tx.CartByCustomer(ctx, customerID)
		if errors.Is(err, repo.ErrNotFound) {
			return Errf(CodeEmptyCart, "cart is empty")
		}
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return Errf(CodeEmptyCart, "cart is empty")
		}
		if cart.IsExpired(now) {
			return Errf(CodeCartExpired, "cart expired at %s", cart.ExpiresAt.Format(time.RFC3339))
		}
		if cart.DeliveryType == models.DeliveryTypeDelivery && !addressComplete(cart) {
			return Errf(CodeIncompleteDeliveryAddress, "delivery orders need street, city, state, zip code and coordinates")
		}

		verdicts, err := ValidateAvailability(ctx, tx, cart, now)
		if err != nil {
			return err
		}
		var offending []LineVerdict
		for _, v := range verdicts {
			if v.Verdict != VerdictOK {
				offending = append(offending, v)
			}
		}
		if len(offending) > 0 {
			return ErrWithDetails(CodeItemsUnavailable, "some cart items are no longer available", offending)
		}

		priced, err := s.Fees.priceGroups(ctx, tx, cart, GroupByChef(cart))
		if err != nil {
			return err
		}

		paymentStatus := models.PaymentStatusPending
		if in.PaymentIntentID != "" {
			paymentStatus = models.PaymentStatusPaid
		}
		checkoutID := uuid.New()

		var idemKey *string
		if in.IdempotencyKey != "" {
			idemKey = &in.IdempotencyKey
		}

		orders := make([]models.Order, 0, len(priced))
		for _, p := range priced {
			for _, item := range p.Group.Items {
				if err := tx.ReserveMeal(ctx, item.MealID, item.Quantity); err != nil {
					if errors.Is(err, repo.ErrInsufficientStock) {
						return Errf(CodeInsufficientAvailability, "meal %s sold out during checkout", item.MealID)
					}
					return err
				}
			}

			order := models.Order{
				CheckoutID:            checkoutID,
				IdempotencyKey:        idemKey,
				CustomerID:            customerID,
				ChefID:                p.Group.ChefID,
				TotalAmount:           p.Group.Subtotal,
				DeliveryFee:           p.DeliveryFee,
				Tax:                   p.Tax,
				Discount:              p.Discount,
				FinalAmount:           p.FinalAmount,
				DeliveryType:          cart.DeliveryType,
				Street:                cart.Street,
				City:                  cart.City,
				State:                 cart.State,
				ZipCode:               cart.ZipCode,
				Latitude:              cart.Latitude,
				Longitude:             cart.Longitude,
				Status:                models.OrderStatusPending,
				PaymentStatus:         paymentStatus,
				PaymentIntentID:       in.PaymentIntentID,
				CustomerNotes:         in.CustomerNotes,
				EstimatedDeliveryTime: now.Add(time.Duration(p.MaxPrepMin)*time.Minute + deliveryBuffer),
			}
			for _, item := range p.Group.Items {
				order.Items = append(order.Items, models.OrderItem{
					MealID:              item.MealID,
					ChefID:              item.ChefID,
					Quantity:            item.Quantity,
					UnitPrice:           item.UnitPrice,
					LineTotal:           money.Round2(item.UnitPrice * float64(item.Quantity)),
					SpecialInstructions: item.SpecialInstructions,
				})
			}
			if err := tx.CreateOrder(ctx, &order); err != nil {
				return err
			}
			orders = append(orders, order)
		}

		if err := tx.ClearCart(ctx, cart.ID); err != nil {
			return err
		}

		result = resultFromOrders(orders)
		return nil
	})
	if err != nil {
		// A concurrent checkout with the same key may have slipped past the
		// pre-check and committed first; the unique claim on
		// (customer, key, chef) then rejects this transaction. Treat that as
		// a replay and return the committed orders.
		if in.IdempotencyKey != "" {
			prior, qerr := s.Store.OrdersByIdempotencyKey(ctx, customerID, in.IdempotencyKey)
			if qerr == nil && len(prior) > 0 {
				l.Info("checkout replay detected after conflict", "idempotency_key", in.IdempotencyKey, "orders", len(prior))
				return resultFromOrders(prior), nil
			}
		}
		s.Metrics.IncCheckout("failure")
		return nil, err
	}
	s.Metrics.IncCheckout("success")

	for _, order := range result.Orders {
		if pubErr := s.Publisher.Publish(ctx, events.Event{
			Type:       events.TypeOrderCreated,
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			ChefID:     order.ChefID,
			NewStatus:  string(order.Status),
			Amount:     order.FinalAmount,
		}); pubErr != nil {
			l.Error("publish order_created failed", "order_id", order.ID, "error", pubErr)
		}
	}

	l.Info("checkout completed", "orders", result.TotalOrders, "total", result.TotalAmount)
	return result, nil
}

func addressComplete(cart *models.Cart) bool {
	return cart.Street != "" && cart.City != "" && cart.State != "" &&
		cart.ZipCode != "" && cart.Latitude != nil && cart.Longitude != nil
}

func resultFromOrders(orders []models.Order) *CheckoutResult {
	res := &CheckoutResult{Orders: orders, TotalOrders: len(orders)}
	for _, o := range orders {
		res.TotalAmount = money.Round2(res.TotalAmount + o.FinalAmount)
		if o.EstimatedDeliveryTime.After(res.EstimatedDeliveryTime) {
			res.EstimatedDeliveryTime = o.EstimatedDeliveryTime
		}
	}
	return res
}
