package repo

import (
	"context"
	"errors"

	"github.com/chefmarket/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

func (r *GormRepo) OrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) OrderByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).Preload("Items").
		First(&order, "payment_intent_id = ?", intentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) OrdersByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&orders).Error
	return orders, err
}

func (r *GormRepo) OrdersByChef(ctx context.Context, chefID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).Preload("Items").
		Where("chef_id = ?", chefID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&orders).Error
	return orders, err
}

func (r *GormRepo) OrdersByIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).Preload("Items").
		Where("customer_id = ? AND idempotency_key = ?", customerID, key).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

// UpdateOrderStatus is a compare-and-set: the update applies only while the
// order is still in the expected status. Returns false when another writer
// got there first.
func (r *GormRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from models.OrderStatus, updates map[string]any) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) SetOrderPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	return r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_intent_id", intentID).Error
}

// MarkOrderPaid applies the succeeded-payment effect at most once:
// payment goes to paid unless it already is, and a still-pending order is
// promoted to confirmed in the same statement.
func (r *GormRepo) MarkOrderPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", id, models.PaymentStatusPaid).
		Updates(map[string]any{
			"payment_status": models.PaymentStatusPaid,
			"status": gorm.Expr(
				"CASE WHEN status = ? THEN ? ELSE status END",
				models.OrderStatusPending, models.OrderStatusConfirmed),
		})
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) MarkOrderPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", id, models.PaymentStatusFailed).
		Update("payment_status", models.PaymentStatusFailed)
	return res.RowsAffected > 0, res.Error
}
