package repo

import (
	"context"
	"errors"

	"github.com/chefmarket/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *GormRepo) MealByID(ctx context.Context, id uuid.UUID) (*models.Meal, error) {
	var meal models.Meal
	err := r.DB.WithContext(ctx).First(&meal, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

func (r *GormRepo) ChefByID(ctx context.Context, id uuid.UUID) (*models.Chef, error) {
	var chef models.Chef
	err := r.DB.WithContext(ctx).First(&chef, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chef, nil
}

// ReserveMeal decrements remaining quantity in a single conditional UPDATE.
// The remaining_quantity >= ? guard is what makes concurrent checkouts
// against the same meal safe: the loser sees zero rows affected and fails
// instead of overselling.
func (r *GormRepo) ReserveMeal(ctx context.Context, mealID uuid.UUID, qty int) error {
	res := r.DB.WithContext(ctx).Model(&models.Meal{}).
		Where("id = ? AND remaining_quantity >= ?", mealID, qty).
		Updates(map[string]any{
			"remaining_quantity": gorm.Expr("remaining_quantity - ?", qty),
			"total_orders":       gorm.Expr("total_orders + ?", qty),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// ReleaseMeal gives reserved quantity back. The increment is clamped at
// the day's total and total_orders is floored at zero, so repeated or
// overlapping releases can never corrupt the counters.
func (r *GormRepo) ReleaseMeal(ctx context.Context, mealID uuid.UUID, qty int) error {
	res := r.DB.WithContext(ctx).Model(&models.Meal{}).
		Where("id = ?", mealID).
		Updates(map[string]any{
			"remaining_quantity": gorm.Expr(
				"CASE WHEN remaining_quantity + ? > quantity THEN quantity ELSE remaining_quantity + ? END",
				qty, qty),
			"total_orders": gorm.Expr(
				"CASE WHEN total_orders - ? < 0 THEN 0 ELSE total_orders - ? END",
				qty, qty),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
