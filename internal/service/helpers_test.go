package service

import (
	"testing"
	"time"

	"github.com/chefmarket/backend/internal/models"
	"github.com/chefmarket/backend/internal/repo"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testFees = FeeConfig{
	TaxRate:          0.08,
	BaseDeliveryFee:  2.50,
	PerKmDeliveryFee: 1.20,
}

type testEnv struct {
	db    *gorm.DB
	store *repo.GormRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// every connection to :memory: is its own database, so keep exactly one
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Chef{},
		&models.Meal{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.ProcessedWebhookEvent{},
	))

	return &testEnv{db: db, store: repo.New(db)}
}

func (e *testEnv) seedChef(t *testing.T, lat, lon float64) *models.Chef {
	t.Helper()

	chef := &models.Chef{
		Name:      "chef " + uuid.NewString()[:8],
		Latitude:  lat,
		Longitude: lon,
		IsActive:  true,
	}
	require.NoError(t, e.db.Create(chef).Error)
	return chef
}

func (e *testEnv) seedMeal(t *testing.T, chefID uuid.UUID, price float64, quantity int) *models.Meal {
	t.Helper()

	meal := &models.Meal{
		ChefID:            chefID,
		Name:              "meal " + uuid.NewString()[:8],
		Price:             price,
		PrepTimeMinutes:   30,
		IsActive:          true,
		Quantity:          quantity,
		RemainingQuantity: quantity,
	}
	require.NoError(t, e.db.Create(meal).Error)
	return meal
}

func (e *testEnv) mealRemaining(t *testing.T, mealID uuid.UUID) int {
	t.Helper()

	var meal models.Meal
	require.NoError(t, e.db.First(&meal, "id = ?", mealID).Error)
	return meal.RemainingQuantity
}

func (e *testEnv) expireCart(t *testing.T, customerID uuid.UUID) {
	t.Helper()

	require.NoError(t, e.db.Model(&models.Cart{}).
		Where("customer_id = ?", customerID).
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)
}

func ptr(f float64) *float64 { return &f }
