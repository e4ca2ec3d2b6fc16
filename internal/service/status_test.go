package service

import (
	"context"
	"testing"

	"github.com/chefmarket/backend/internal/events"
	"github.com/chefmarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) seedOrder(t *testing.T, status models.OrderStatus, payment models.PaymentStatus, meal *models.Meal, qty int) *models.Order {
	t.Helper()

	order := &models.Order{
		CheckoutID:    uuid.New(),
		CustomerID:    uuid.New(),
		ChefID:        meal.ChefID,
		TotalAmount:   meal.Price * float64(qty),
		FinalAmount:   meal.Price * float64(qty),
		DeliveryType:  models.DeliveryTypePickup,
		Status:        status,
		PaymentStatus: payment,
		Items: []models.OrderItem{{
			MealID:    meal.ID,
			ChefID:    meal.ChefID,
			Quantity:  qty,
			UnitPrice: meal.Price,
			LineTotal: meal.Price * float64(qty),
		}},
	}
	require.NoError(t, e.store.CreateOrder(context.Background(), order))
	return order
}

func (e *testEnv) reserve(t *testing.T, mealID uuid.UUID, qty int) {
	t.Helper()
	require.NoError(t, e.store.ReserveMeal(context.Background(), mealID, qty))
}

func TestStatusService_FulfillmentPath(t *testing.T) {
	env := newTestEnv(t)
	svc := &StatusService{Store: env.store, Publisher: events.Noop{}}
	ctx := context.Background()

	chef := env.seedChef(t, 40.7128, -74.0060)
	meal := env.seedMeal(t, chef.ID, 12.00, 5)
	order := env.seedOrder(t, models.OrderStatusPending, models.PaymentStatusPaid, meal, 1)

	path := []models.OrderStatus{
		models.OrderStatusConfirmed,
		models.OrderStatusPreparing,
		models.OrderStatusReady,
		models.OrderStatusOutForDelivery,
		models.OrderStatusDelivered,
	}
	for _, next := range path {
		got, err := svc.UpdateStatus(ctx, order.ID, next, ActorChef, order.ChefID)
		require.NoError(t, err, "transition to %s", next)
		assert.Equal(t, next, got.Status)
	}

	final, err := env.store.OrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, final.ActualDeliveryTime, "delivery stamps the actual time")
}

func TestStatusService_RejectsIllegalTransitions(t *testing.T) {
	env := newTestEnv(t)
	svc := &StatusService{Store: env.store, Publisher: events.Noop{}}
	ctx := context.Background()

	chef := env.seedChef(t, 40.7128, -74.0060)
	meal := env.seedMeal(t, chef.ID, 12.00, 5)

	tests := []struct {
		from models.OrderStatus
		to   models.OrderStatus
	}{
		{models.OrderStatusPending, models.OrderStatusPreparing},
		{models.OrderStatusPending, models.OrderStatusDelivered},
		{models.OrderStatusConfirmed, models.OrderStatusReady},
		{models.OrderStatusPreparing, models.OrderStatusConfirmed},
		{models.OrderStatusReady, models.OrderStatusPreparing},
		{models.OrderStatusOutForDelivery, models.OrderStatusReady},
		{models.OrderStatusDelivered, models.OrderStatusConfirmed},
		{models.OrderStatusCancelled, models.OrderStatusConfirmed},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			order := env.seedOrder(t, tt.from, models.PaymentStatusPaid, meal, 1)

			_, err := svc.UpdateStatus(ctx, order.ID, tt.to, ActorChef, order.ChefID)
			require.Error(t, err)
			assert.True(t, IsCode(err, CodeInvalidStatusTransition))

			got, err := env.store.OrderByID(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.from, got.Status, "rejected transition must not touch the order")
		})
	}
}

func TestStatusService_OnlyOwningChefAdvances(t *testing.T) {
	env := newTestEnv(t)
	svc := &StatusService{Store: env.store, Publisher: events.Noop{}}
	ctx := context.Background()

	chef := env.seedChef(t, 40.7128, -74.0060)
	meal := env.seedMeal(t, chef.ID, 12.00, 5)
	order := env.seedOrder(t, models.OrderStatusPending, models.PaymentStatusPaid, meal, 1)

	_, err := svc.UpdateStatus(ctx, order.ID, models.OrderStatusConfirmed, ActorChef, uuid.New())
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidStatusTransition))

	_, err = svc.UpdateStatus(ctx, order.ID, models.OrderStatusConfirmed, ActorCustomer, order.CustomerID)
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidStatusTransition))
}

func TestStatusService_CustomerCancelReleasesInventory(t *testing.T) {
	env := newTestEnv(t)
	svc := &StatusService{Store: env.store, Publisher: events.Noop{}}
	ctx := context.Background()

	chef := env.seedChef(t, 40.7128, -74.0060)
	meal := env.seedMeal(t, chef.ID, 12.00, 5)
	env.reserve(t, meal.ID, 2)
	order := env.seedOrder(t, models.OrderStatusPending, models.PaymentStatusPending, meal, 2)

	got, err := svc.Cancel(ctx, order.ID, ActorCustomer, order.CustomerID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Equal(t, "changed my mind", got.CancellationReason)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus, "unpaid orders have nothing to refund")
	assert.Equal(t, 5, env.mealRemaining(t, meal.ID))
}

func TestStatusService_CancelPaidOrderMarksRefund(t *testing.T) {
	env := newTestEnv(t)
	svc := &StatusService{Store: env.store, Publisher: events.Noop{}}
	ctx := context.Background()

	chef := env.seedChef(t, 40.7128, -74.0060)
	meal := env.seedMeal(t, chef.ID, 12.00, 5)
	env.reserve(t, meal.ID, 1)
	order := env.seedOrder(t, models.OrderStatusConfirmed, models.PaymentStatusPaid, meal, 1)

	got, err := svc.Cancel(ctx, order.ID, ActorSystem, uuid.Nil, "payment reversed")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Equal(t, models.PaymentStatusRefunded, got.PaymentStatus)
	assert.Equal(t, 5, env.mealRemaining(t, meal.ID))
}

func TestStatusService_CancelGuards(t *testing.T) {
	env := newTestEnv(t)
	svc := &StatusService{Store: env.store, Publisher: events.Noop{}}
	ctx := context.Background()

	chef := env.seedChef(t, 40.7128, -74.0060)
	meal := env.seedMeal(t, chef.ID, 12.00, 5)

	t.Run("too late once preparing", func(t *testing.T) {
		env.reserve(t, meal.ID, 1)
		order := env.seedOrder(t, models.OrderStatusPreparing, models.PaymentStatusPaid, meal, 1)

		_, err := svc.Cancel(ctx, order.ID, ActorCustomer, order.CustomerID, "too slow")
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeOrderNotCancellable))
		assert.Equal(t, 4, env.mealRemaining(t, meal.ID), "failed cancel must not release inventory")
	})

	t.Run("chefs cannot cancel", func(t *testing.T) {
		order := env.seedOrder(t, models.OrderStatusPending, models.PaymentStatusPending, meal, 1)

		_, err := svc.Cancel(ctx, order.ID, ActorChef, order.ChefID, "out of stock")
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeOrderNotCancellable))
	})

	t.Run("stranger cannot cancel", func(t *testing.T) {
		order := env.seedOrder(t, models.OrderStatusPending, models.PaymentStatusPending, meal, 1)

		_, err := svc.Cancel(ctx, order.ID, ActorCustomer, uuid.New(), "not mine")
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeOrderNotCancellable))
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := svc.Cancel(ctx, uuid.New(), ActorSystem, uuid.Nil, "sweep")
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeOrderNotFound))
	})
}
