package repo

import (
	"context"
	"sync"
	"testing"

	"github.com/chefmarket/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMeal(t *testing.T, r *GormRepo, quantity int) *models.Meal {
	t.Helper()

	meal := &models.Meal{
		ChefID:            uuid.New(),
		Name:              "ramen",
		Price:             12.50,
		IsActive:          true,
		Quantity:          quantity,
		RemainingQuantity: quantity,
	}
	require.NoError(t, r.DB.Create(meal).Error)
	return meal
}

func TestReserveMeal_DecrementsRemaining(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	meal := seedMeal(t, r, 5)

	require.NoError(t, r.ReserveMeal(ctx, meal.ID, 3))

	got, err := r.MealByID(ctx, meal.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RemainingQuantity)
	assert.Equal(t, 3, got.TotalOrders)
}

func TestReserveMeal_RejectsOverdraw(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	meal := seedMeal(t, r, 5)

	require.NoError(t, r.ReserveMeal(ctx, meal.ID, 4))

	err := r.ReserveMeal(ctx, meal.ID, 2)
	require.ErrorIs(t, err, ErrInsufficientStock)

	got, err := r.MealByID(ctx, meal.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RemainingQuantity, "failed reservation must not change remaining quantity")
	assert.Equal(t, 4, got.TotalOrders)
}

func TestReserveMeal_ConcurrentNeverOversells(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	meal := seedMeal(t, r, 10)

	const workers = 25
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.ReserveMeal(ctx, meal.ID, 1)
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	assert.Equal(t, 10, successes)

	got, err := r.MealByID(ctx, meal.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RemainingQuantity)
	assert.Equal(t, 10, got.TotalOrders)
}

func TestReleaseMeal_ClampsAtDailyQuantity(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	meal := seedMeal(t, r, 5)

	require.NoError(t, r.ReserveMeal(ctx, meal.ID, 2))
	require.NoError(t, r.ReleaseMeal(ctx, meal.ID, 10))

	got, err := r.MealByID(ctx, meal.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.RemainingQuantity, "release must not exceed the day's quantity")
	assert.Equal(t, 0, got.TotalOrders, "total orders floors at zero")
}

func TestReleaseMeal_UnknownMeal(t *testing.T) {
	r, _ := newTestRepo(t)

	err := r.ReleaseMeal(context.Background(), uuid.New(), 1)
	require.ErrorIs(t, err, ErrNotFound)
}
