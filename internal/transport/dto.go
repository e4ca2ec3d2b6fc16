package transport

import "github.com/google/uuid"

// Result is the envelope every API response uses.
type Result struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type AddItemRequest struct {
	MealID              uuid.UUID `json:"meal_id"`
	ChefID              uuid.UUID `json:"chef_id"`
	Quantity            int       `json:"quantity"`
	UnitPrice           float64   `json:"unit_price"`
	SpecialInstructions string    `json:"special_instructions"`
}

type UpdateQuantityRequest struct {
	MealID   uuid.UUID `json:"meal_id"`
	Quantity int       `json:"quantity"`
}

type ApplyPromoRequest struct {
	Code string `json:"code"`
}

type SetDeliveryRequest struct {
	DeliveryType string   `json:"delivery_type"`
	Street       string   `json:"street"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	ZipCode      string   `json:"zip_code"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

type CheckoutRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	CustomerNotes   string `json:"customer_notes"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type CreateIntentRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

type RefundRequest struct {
	Amount *float64 `json:"amount"`
	Reason string   `json:"reason"`
}
