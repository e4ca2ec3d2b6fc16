package repo

import (
	"context"
	"errors"

	"github.com/chefmarket/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartByCustomer loads the customer's cart with items in insertion order.
// Returns ErrNotFound when the customer has no cart yet.
func (r *GormRepo) CartByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("added_at ASC") }).
		Where("customer_id = ?", customerID).
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// SaveCart creates or updates the cart row itself; items are managed
// through the item methods.
func (r *GormRepo) SaveCart(ctx context.Context, cart *models.Cart) error {
	return r.DB.WithContext(ctx).Omit("Items").Save(cart).Error
}

func (r *GormRepo) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Create(item).Error
}

func (r *GormRepo) UpdateCartItem(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Save(item).Error
}

func (r *GormRepo) DeleteCartItem(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", id).Error
}

// ClearCart empties the cart after a successful checkout or an explicit
// clear: items removed, promo dropped. The cart row survives.
func (r *GormRepo) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	if err := r.DB.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{"promo_code": "", "discount": 0}).Error
}
