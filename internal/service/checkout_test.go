package service

import (
	"context"
	"errors"
	"testing"

	"github.com/chefmarket/backend/internal/events"
	"github.com/chefmarket/backend/internal/models"
	"github.com/chefmarket/backend/internal/repo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCheckoutEnv(t *testing.T) (*testEnv, *CartService, *CheckoutService) {
	t.Helper()

	env := newTestEnv(t)
	cart := &CartService{Store: env.store, Fees: testFees}
	checkout := &CheckoutService{Store: env.store, Publisher: events.Noop{}, Fees: testFees}
	return env, cart, checkout
}

func TestCheckout_PickupSingleChef(t *testing.T) {
	env, cartSvc, checkoutSvc := newCheckoutEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	chef := env.seedChef(t, 40.7128, -74.0060)
	meal := env.seedMeal(t, chef.ID, 15.99, 10)

	_, err := cartSvc.AddItem(ctx, customerID, AddItemInput{
		MealID: meal.ID, ChefID: chef.ID, Quantity: 2, UnitPrice: 15.99,
	})
	require.NoError(t, err)
	_, err = cartSvc.SetDelivery(ctx, customerID, DeliveryInput{DeliveryType: models.DeliveryTypePickup})
	require.NoError(t, err)

	res, err := checkoutSvc.Checkout(ctx, customerID, CheckoutInput{})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)

	order := res.Orders[0]
	assert.Equal(t, 31.98, order.TotalAmount)
	assert.Equal(t, 2.56, order.Tax)
	assert.Zero(t, order.DeliveryFee, "pickup orders carry no delivery fee")
	assert.Equal(t, 34.54, order.FinalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 31.98, order.Items[0].LineTotal)

	assert.Equal(t, 8, env.mealRemaining(t, meal.ID))

	after, err := cartSvc.GetCart(ctx, customerID)
	require.NoError(t, err)
	assert.Empty(t, after.Items, "checkout empties the cart")
}

func TestCheckout_DeliveryChargesFeeFromDistance(t *testing.T) {
	env, cartSvc, checkoutSvc := newCheckoutEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	// chef and customer at the same point, so the fee is exactly the base fee
	chef := env.seedChef(t, 40.7128, -74.0060)
	meal := env.seedMeal(t, chef.ID, 15.99, 10)

	_, err := cartSvc.AddItem(ctx, customerID, AddItemInput{
		MealID: meal.ID, ChefID: chef.ID, Quantity: 2, UnitPrice: 15.99,
	})
	require.NoError(t, err)
	_, err = cartSvc.SetDelivery(ctx, customerID, DeliveryInput{
		DeliveryType: models.DeliveryTypeDelivery,
		Street:       "1 Main St",
		City:         "New York",
		State:        "NY",
		ZipCode:      "10001",
		Latitude:     ptr(40.7128),
		Longitude:    ptr(-74.0060),
	})
	require.NoError(t, err)

	res, err := checkoutSvc.Checkout(ctx, customerID, CheckoutInput{})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, 2.50, res.Orders[0].DeliveryFee)
	assert.Equal(t, 37.04, res.Orders[0].FinalAmount)
}

func TestCheckout_SplitsOneOrderPerChef(t *testing.T) {
	env, cartSvc, checkoutSvc := newCheckoutEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	chefA := env.seedChef(t, 40.7128, -74.0060)
	chefB := env.seedChef(t, 40.7306, -73.9866)
	mealA := env.seedMeal(t, chefA.ID, 12.00, 5)
	mealB := env.seedMeal(t, chefB.ID, 9.50, 5)

	for _, in := range []AddItemInput{
		{MealID: mealA.ID, ChefID: chefA.ID, Quantity: 1, UnitPrice: 12.00},
		{MealID: mealB.ID, ChefID: chefB.ID, Quantity: 2, UnitPrice: 9.50},
	} {
		_, err := cartSvc.AddItem(ctx, customerID, in)
		require.NoError(t, err)
	}
	_, err := cartSvc.SetDelivery(ctx, customerID, DeliveryInput{DeliveryType: models.DeliveryTypePickup})
	require.NoError(t, err)

	res, err := checkoutSvc.Checkout(ctx, customerID, CheckoutInput{})
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalOrders)
	assert.Equal(t, res.Orders[0].CheckoutID, res.Orders[1].CheckoutID)

	byChef := map[uuid.UUID]models.Order{}
	for _, o := range res.Orders {
		byChef[o.ChefID] = o
	}
	require.Contains(t, byChef, chefA.ID)
	require.Contains(t, byChef, chefB.ID)
	assert.Equal(t, 12.00, byChef[chefA.ID].TotalAmount)
	assert.Equal(t, 19.00, byChef[chefB.ID].TotalAmount)
}

func TestCheckout_Guards(t *testing.T) {
	env, cartSvc, checkoutSvc := newCheckoutEnv(t)
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		_, err := checkoutSvc.Checkout(ctx, uuid.New(), CheckoutInput{})
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeEmptyCart))
	})

	t.Run("expired cart", func(t *testing.T) {
		customerID := uuid.New()
		chef := env.seedChef(t, 40.7128, -74.0060)
		meal := env.seedMeal(t, chef.ID, 10.00, 5)
		_, err := cartSvc.AddItem(ctx, customerID, AddItemInput{
			MealID: meal.ID, ChefID: chef.ID, Quantity: 1, UnitPrice: 10.00,
		})
		require.NoError(t, err)
		env.expireCart(t, customerID)

		_, err = checkoutSvc.Checkout(ctx, customerID, CheckoutInput{})
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeCartExpired))
	})

	t.Run("delivery without address", func(t *testing.T) {
		customerID := uuid.New()
		chef := env.seedChef(t, 40.7128, -74.0060)
		meal := env.seedMeal(t, chef.ID, 10.00, 5)
		_, err := cartSvc.AddItem(ctx, customerID, AddItemInput{
			MealID: meal.ID, ChefID: chef.ID, Quantity: 1, UnitPrice: 10.00,
		})
		require.NoError(t, err)

		_, err = checkoutSvc.Checkout(ctx, customerID, CheckoutInput{})
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeIncompleteDeliveryAddress))
	})

	t.Run("unavailable items block with details", func(t *testing.T) {
		customerID := uuid.New()
		chef := env.seedChef(t, 40.7128, -74.0060)
		meal := env.seedMeal(t, chef.ID, 10.00, 5)
		_, err := cartSvc.AddItem(ctx, customerID, AddItemInput{
			MealID: meal.ID, ChefID: chef.ID, Quantity: 1, UnitPrice: 10.00,
		})
		require.NoError(t, err)
		_, err = cartSvc.SetDelivery(ctx, customerID, DeliveryInput{DeliveryType: models.DeliveryTypePickup})
		require.NoError(t, err)
		require.NoError(t, env.db.Model(&models.Meal{}).
			Where("id = ?", meal.ID).Update("is_active", false).Error)

		_, err = checkoutSvc.Checkout(ctx, customerID, CheckoutInput{})
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeItemsUnavailable))

		var de *DomainError
		require.ErrorAs(t, err, &de)
		verdicts, ok := de.Details.([]LineVerdict)
		require.True(t, ok)
		require.Len(t, verdicts, 1)
		assert.Equal(t, VerdictInactive, verdicts[0].Verdict)
	})
}

// failingStore wraps the real store and fails the nth order insert, so the
// test can prove the whole checkout rolls back.
type failingStore struct {
	repo.Store
	failOnOrder int
	orders      *int
}

func (f *failingStore) Transaction(ctx context.Context, fn func(repo.Store) error) error {
	return f.Store.Transaction(ctx, func(tx repo.Store) error {
		return fn(&failingStore{Store: tx, failOnOrder: f.failOnOrder, orders: f.orders})
	})
}

func (f *failingStore) CreateOrder(ctx context.Context, order *models.Order) error {
	*f.orders++
	if *f.orders == f.failOnOrder {
		return errors.New("storage failure")
	}
	return f.Store.CreateOrder(ctx, order)
}

func TestCheckout_FailureRollsBackEverything(t *testing.T) {
	env, cartSvc, _ := newCheckoutEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	chefA := env.seedChef(t, 40.7128, -74.0060)
	chefB := env.seedChef(t, 40.7306, -73.9866)
	mealA := env.seedMeal(t, chefA.ID, 12.00, 5)
	mealB := env.seedMeal(t, chefB.ID, 9.50, 5)

	for _, in := range []AddItemInput{
		{MealID: mealA.ID, ChefID: chefA.ID, Quantity: 2, UnitPrice: 12.00},
		{MealID: mealB.ID, ChefID: chefB.ID, Quantity: 1, UnitPrice: 9.50},
	} {
		_, err := cartSvc.AddItem(ctx, customerID, in)
		require.NoError(t, err)
	}
	_, err := cartSvc.SetDelivery(ctx, customerID, DeliveryInput{DeliveryType: models.DeliveryTypePickup})
	require.NoError(t, err)

	orderInserts := 0
	checkoutSvc := &CheckoutService{
		Store:     &failingStore{Store: env.store, failOnOrder: 2, orders: &orderInserts},
		Publisher: events.Noop{},
		Fees:      testFees,
	}

	_, err = checkoutSvc.Checkout(ctx, customerID, CheckoutInput{})
	require.Error(t, err)

	// the first chef's reservation and order must have been rolled back too
	assert.Equal(t, 5, env.mealRemaining(t, mealA.ID))
	assert.Equal(t, 5, env.mealRemaining(t, mealB.ID))

	var orderCount int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)

	cart, err := cartSvc.GetCart(ctx, customerID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2, "cart survives a failed checkout")
}

func TestCheckout_IdempotencyKeyReplaysPriorResult(t *testing.T) {
	env, cartSvc, checkoutSvc := newCheckoutEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	chef := env.seedChef(t, 40.7128, -74.0060)
	meal := env.seedMeal(t, chef.ID, 15.99, 10)

	_, err := cartSvc.AddItem(ctx, customerID, AddItemInput{
		MealID: meal.ID, ChefID: chef.ID, Quantity: 2, UnitPrice: 15.99,
	})
	require.NoError(t, err)
	_, err = cartSvc.SetDelivery(ctx, customerID, DeliveryInput{DeliveryType: models.DeliveryTypePickup})
	require.NoError(t, err)

	first, err := checkoutSvc.Checkout(ctx, customerID, CheckoutInput{IdempotencyKey: "ck-42"})
	require.NoError(t, err)

	second, err := checkoutSvc.Checkout(ctx, customerID, CheckoutInput{IdempotencyKey: "ck-42"})
	require.NoError(t, err)
	require.Equal(t, first.TotalOrders, second.TotalOrders)
	assert.Equal(t, first.Orders[0].ID, second.Orders[0].ID)
	assert.Equal(t, first.TotalAmount, second.TotalAmount)

	// nothing was reserved or created twice
	assert.Equal(t, 8, env.mealRemaining(t, meal.ID))
	var orderCount int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.EqualValues(t, 1, orderCount)
}

// racingStore hides already-committed orders from the first replay lookup,
// reproducing a concurrent checkout that commits between the pre-check and
// this transaction.
type racingStore struct {
	repo.Store
	lookups *int
}

func (r *racingStore) OrdersByIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) ([]models.Order, error) {
	*r.lookups++
	if *r.lookups == 1 {
		return nil, nil
	}
	return r.Store.OrdersByIdempotencyKey(ctx, customerID, key)
}

func TestCheckout_ConcurrentSameKeyCommitsOnce(t *testing.T) {
	env, cartSvc, checkoutSvc := newCheckoutEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	chef := env.seedChef(t, 40.7128, -74.0060)
	meal := env.seedMeal(t, chef.ID, 15.99, 10)

	fillCart := func() {
		_, err := cartSvc.AddItem(ctx, customerID, AddItemInput{
			MealID: meal.ID, ChefID: chef.ID, Quantity: 2, UnitPrice: 15.99,
		})
		require.NoError(t, err)
		_, err = cartSvc.SetDelivery(ctx, customerID, DeliveryInput{DeliveryType: models.DeliveryTypePickup})
		require.NoError(t, err)
	}

	fillCart()
	first, err := checkoutSvc.Checkout(ctx, customerID, CheckoutInput{IdempotencyKey: "ck-7"})
	require.NoError(t, err)

	// The loser of the race sees an empty replay lookup, inserts, and is
	// rejected by the unique claim on (customer, key, chef).
	fillCart()
	lookups := 0
	loser := &CheckoutService{
		Store:     &racingStore{Store: env.store, lookups: &lookups},
		Publisher: events.Noop{},
		Fees:      testFees,
	}
	second, err := loser.Checkout(ctx, customerID, CheckoutInput{IdempotencyKey: "ck-7"})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, first.Orders[0].ID, second.Orders[0].ID)
	assert.Equal(t, 2, lookups, "the winner's orders are found after the conflict")

	// the losing transaction rolled back: one order, one reservation
	var orderCount int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.EqualValues(t, 1, orderCount)
	assert.Equal(t, 8, env.mealRemaining(t, meal.ID))
}

func TestCheckout_WithPaymentIntentMarksPaid(t *testing.T) {
	env, cartSvc, checkoutSvc := newCheckoutEnv(t)
	ctx := context.Background()
	customerID := uuid.New()

	chef := env.seedChef(t, 40.7128, -74.0060)
	meal := env.seedMeal(t, chef.ID, 15.99, 10)

	_, err := cartSvc.AddItem(ctx, customerID, AddItemInput{
		MealID: meal.ID, ChefID: chef.ID, Quantity: 1, UnitPrice: 15.99,
	})
	require.NoError(t, err)
	_, err = cartSvc.SetDelivery(ctx, customerID, DeliveryInput{DeliveryType: models.DeliveryTypePickup})
	require.NoError(t, err)

	res, err := checkoutSvc.Checkout(ctx, customerID, CheckoutInput{PaymentIntentID: "pi_123"})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, models.PaymentStatusPaid, res.Orders[0].PaymentStatus)
	assert.Equal(t, "pi_123", res.Orders[0].PaymentIntentID)
}
