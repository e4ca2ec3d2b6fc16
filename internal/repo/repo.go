package repo

import (
	"context"
	"errors"

	"github.com/chefmarket/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient remaining quantity")
)

// Store is the persistence port consumed by the services. GormRepo is the
// production implementation; tests may wrap it to inject failures.
type Store interface {
	// Transaction runs fn against a store scoped to one database
	// transaction. Returning an error rolls everything back.
	Transaction(ctx context.Context, fn func(Store) error) error

	CartByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	CreateCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItem(ctx context.Context, item *models.CartItem) error
	DeleteCartItem(ctx context.Context, id uuid.UUID) error
	ClearCart(ctx context.Context, cartID uuid.UUID) error

	MealByID(ctx context.Context, id uuid.UUID) (*models.Meal, error)
	ChefByID(ctx context.Context, id uuid.UUID) (*models.Chef, error)
	ReserveMeal(ctx context.Context, mealID uuid.UUID, qty int) error
	ReleaseMeal(ctx context.Context, mealID uuid.UUID, qty int) error

	CreateOrder(ctx context.Context, order *models.Order) error
	OrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	OrderByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	OrdersByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error)
	OrdersByChef(ctx context.Context, chefID uuid.UUID, limit, offset int) ([]models.Order, error)
	OrdersByIdempotencyKey(ctx context.Context, customerID uuid.UUID, key string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from models.OrderStatus, updates map[string]any) (bool, error)
	SetOrderPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error
	MarkOrderPaid(ctx context.Context, id uuid.UUID) (bool, error)
	MarkOrderPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error)
}

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

func (r *GormRepo) Transaction(ctx context.Context, fn func(Store) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}
