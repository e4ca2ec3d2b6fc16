package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

const (
	DeliveryTypeDelivery = "delivery"
	DeliveryTypePickup   = "pickup"
)

type Chef struct {
	ID              uuid.UUID `gorm:"primaryKey"        json:"id"`
	Name            string    `gorm:"not null"          json:"name"`
	Latitude        float64   `gorm:"not null"          json:"latitude"`
	Longitude       float64   `gorm:"not null"          json:"longitude"`
	ServiceRadiusKm float64   `gorm:"default:10"        json:"service_radius_km"`
	IsActive        bool      `gorm:"default:true"      json:"is_active"`
}

func (c *Chef) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Chef) TableName() string { return "chefs" }

// Meal carries the chef's daily availability inline: Quantity is the total
// offered for the day, RemainingQuantity is decremented by reservations and
// never exceeds Quantity.
type Meal struct {
	ID                uuid.UUID `gorm:"primaryKey"     json:"id"`
	ChefID            uuid.UUID `gorm:"index;not null" json:"chef_id"`
	Name              string    `gorm:"not null"       json:"name"`
	Price             float64   `gorm:"not null"       json:"price"`
	PrepTimeMinutes   int       `gorm:"default:30"     json:"prep_time_minutes"`
	IsActive          bool      `gorm:"default:true"   json:"is_active"`
	AvailableFrom     time.Time `json:"available_from"`
	AvailableUntil    time.Time `json:"available_until"`
	Quantity          int       `gorm:"not null"       json:"quantity"`
	RemainingQuantity int       `gorm:"not null"       json:"remaining_quantity"`
	TotalOrders       int       `gorm:"default:0"      json:"total_orders"`
}

func (m *Meal) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (Meal) TableName() string { return "meals" }

type Cart struct {
	ID           uuid.UUID  `gorm:"primaryKey"           json:"id"`
	CustomerID   uuid.UUID  `gorm:"uniqueIndex;not null" json:"customer_id"`
	DeliveryType string     `gorm:"default:delivery"     json:"delivery_type"`
	Street       string     `json:"street"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	ZipCode      string     `json:"zip_code"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	PromoCode    string     `json:"promo_code"`
	Discount     float64    `gorm:"default:0"            json:"discount"`
	ExpiresAt    time.Time  `json:"expires_at"`
	Items        []CartItem `gorm:"foreignKey:CartID"    json:"items"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Cart) TableName() string { return "carts" }

// IsExpired reports whether the cart is past its sliding expiry. Expired
// carts are treated as empty by readers; a scheduled sweep removes the
// rows later.
func (c *Cart) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

type CartItem struct {
	ID                  uuid.UUID `gorm:"primaryKey"                         json:"id"`
	CartID              uuid.UUID `gorm:"uniqueIndex:idx_cart_meal;not null" json:"cart_id"`
	MealID              uuid.UUID `gorm:"uniqueIndex:idx_cart_meal;not null" json:"meal_id"`
	ChefID              uuid.UUID `gorm:"index;not null"                     json:"chef_id"`
	Quantity            int       `gorm:"default:1;check:quantity>0"         json:"quantity"`
	UnitPrice           float64   `gorm:"not null"                           json:"unit_price"`
	SpecialInstructions string    `json:"special_instructions"`
	AddedAt             time.Time `json:"added_at"`
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string { return "cart_items" }

// Order is created only by checkout, one per (checkout, chef). Orders are
// never deleted; delivered and cancelled are terminal.
//
// IdempotencyKey is nullable on purpose: the unique claim over
// (customer, key, chef) must only bind checkouts that actually sent a
// key, and NULLs never collide.
type Order struct {
	ID                    uuid.UUID     `gorm:"primaryKey"        json:"id"`
	CheckoutID            uuid.UUID     `gorm:"index;not null"    json:"checkout_id"`
	IdempotencyKey        *string       `gorm:"uniqueIndex:idx_checkout_claim" json:"-"`
	CustomerID            uuid.UUID     `gorm:"index;uniqueIndex:idx_checkout_claim;not null" json:"customer_id"`
	ChefID                uuid.UUID     `gorm:"index;uniqueIndex:idx_checkout_claim;not null" json:"chef_id"`
	TotalAmount           float64       `gorm:"not null"          json:"total_amount"`
	DeliveryFee           float64       `gorm:"default:0"         json:"delivery_fee"`
	Tax                   float64       `gorm:"default:0"         json:"tax"`
	Discount              float64       `gorm:"default:0"         json:"discount"`
	FinalAmount           float64       `gorm:"not null"          json:"final_amount"`
	DeliveryType          string        `gorm:"not null"          json:"delivery_type"`
	Street                string        `json:"street"`
	City                  string        `json:"city"`
	State                 string        `json:"state"`
	ZipCode               string        `json:"zip_code"`
	Latitude              *float64      `json:"latitude,omitempty"`
	Longitude             *float64      `json:"longitude,omitempty"`
	Status                OrderStatus   `gorm:"not null;default:pending" json:"status"`
	PaymentStatus         PaymentStatus `gorm:"not null;default:pending" json:"payment_status"`
	PaymentIntentID       string        `gorm:"index"             json:"payment_intent_id,omitempty"`
	CustomerNotes         string        `json:"customer_notes,omitempty"`
	CancellationReason    string        `json:"cancellation_reason,omitempty"`
	EstimatedDeliveryTime time.Time     `json:"estimated_delivery_time"`
	ActualDeliveryTime    *time.Time    `json:"actual_delivery_time,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
	Items                 []OrderItem   `gorm:"foreignKey:OrderID" json:"items"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID                  uuid.UUID `gorm:"primaryKey"     json:"id"`
	OrderID             uuid.UUID `gorm:"index;not null" json:"order_id"`
	MealID              uuid.UUID `gorm:"not null"       json:"meal_id"`
	ChefID              uuid.UUID `gorm:"not null"       json:"chef_id"`
	Quantity            int       `gorm:"not null"       json:"quantity"`
	UnitPrice           float64   `gorm:"not null"       json:"unit_price"`
	LineTotal           float64   `gorm:"not null"       json:"line_total"`
	SpecialInstructions string    `json:"special_instructions,omitempty"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (OrderItem) TableName() string { return "order_items" }

// ProcessedWebhookEvent backs webhook idempotency when redis is not
// configured. EventKey is "<type>:<payment_intent_id>".
type ProcessedWebhookEvent struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventKey    string    `gorm:"uniqueIndex;not null"     json:"event_key"`
	ProcessedAt time.Time `json:"processed_at"`
}

func (ProcessedWebhookEvent) TableName() string { return "processed_webhook_events" }
