package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/chefmarket/backend/internal/models"
	"github.com/chefmarket/backend/internal/money"
	"github.com/chefmarket/backend/internal/repo"
	"github.com/google/uuid"
)

const (
	cartTTL        = 24 * time.Hour
	priceTolerance = 0.01
)

// Availability verdicts for cart lines.
const (
	VerdictOK                   = "ok"
	VerdictMealDeleted          = "mealDeleted"
	VerdictInactive             = "inactive"
	VerdictInsufficientQuantity = "insufficientQuantity"
	VerdictOutsideWindow        = "outsideWindow"
)

type CartService struct {
	Store repo.Store
	Fees  FeeConfig

	// Promos maps an accepted promo code to its discount amount. Clients
	// only ever send the code; the amount is resolved here.
	Promos map[string]float64
}

type AddItemInput struct {
	MealID              uuid.UUID
	ChefID              uuid.UUID
	Quantity            int
	UnitPrice           float64
	SpecialInstructions string
}

type DeliveryInput struct {
	DeliveryType string
	Street       string
	City         string
	State        string
	ZipCode      string
	Latitude     *float64
	Longitude    *float64
}

type LineVerdict struct {
	MealID   uuid.UUID `json:"meal_id"`
	Quantity int       `json:"quantity"`
	Verdict  string    `json:"verdict"`
}

type ChefGroup struct {
	ChefID   uuid.UUID
	Items    []models.CartItem
	Subtotal float64
}

// GetCart returns the customer's cart, lazily creating an empty one in
// memory. A cart read past its expiry is presented as empty; the sweep
// job deletes the row later.
func (s *CartService) GetCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Store.CartByCustomer(ctx, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		return &models.Cart{CustomerID: customerID, DeliveryType: models.DeliveryTypeDelivery}, nil
	}
	if err != nil {
		return nil, err
	}
	if cart.IsExpired(time.Now().UTC()) {
		cart.Items = nil
	}
	return cart, nil
}

func (s *CartService) AddItem(ctx context.Context, customerID uuid.UUID, in AddItemInput) (*models.Cart, error) {
	if in.Quantity < 1 {
		return nil, Errf(CodeValidation, "quantity must be at least 1")
	}

	meal, err := s.Store.MealByID(ctx, in.MealID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, Errf(CodeItemNotFound, "meal %s not found", in.MealID)
	}
	if err != nil {
		return nil, err
	}
	if meal.ChefID != in.ChefID {
		return nil, Errf(CodeChefMismatch, "meal %s does not belong to chef %s", in.MealID, in.ChefID)
	}
	if math.Abs(in.UnitPrice-meal.Price) > priceTolerance+1e-9 {
		return nil, Errf(CodeMealPriceMismatch, "price %.2f does not match catalog price %.2f", in.UnitPrice, meal.Price)
	}

	var out *models.Cart
	err = s.Store.Transaction(ctx, func(tx repo.Store) error {
		now := time.Now().UTC()
		cart, err := s.loadOrCreateCart(ctx, tx, customerID, now)
		if err != nil {
			return err
		}

		merged := false
		for i := range cart.Items {
			if cart.Items[i].MealID == in.MealID {
				cart.Items[i].Quantity += in.Quantity
				cart.Items[i].UnitPrice = in.UnitPrice
				cart.Items[i].SpecialInstructions = in.SpecialInstructions
				if err := tx.UpdateCartItem(ctx, &cart.Items[i]); err != nil {
					return err
				}
				merged = true
				break
			}
		}
		if !merged {
			item := models.CartItem{
				CartID:              cart.ID,
				MealID:              in.MealID,
				ChefID:              meal.ChefID,
				Quantity:            in.Quantity,
				UnitPrice:           in.UnitPrice,
				SpecialInstructions: in.SpecialInstructions,
				AddedAt:             now,
			}
			if err := tx.CreateCartItem(ctx, &item); err != nil {
				return err
			}
			cart.Items = append(cart.Items, item)
		}

		s.extendExpiry(cart, now)
		if err := tx.SaveCart(ctx, cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	return out, err
}

// UpdateQuantity sets a line's quantity; zero or negative removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, customerID, mealID uuid.UUID, qty int) (*models.Cart, error) {
	var out *models.Cart
	err := s.Store.Transaction(ctx, func(tx repo.Store) error {
		now := time.Now().UTC()
		cart, err := tx.CartByCustomer(ctx, customerID)
		if errors.Is(err, repo.ErrNotFound) {
			return Errf(CodeItemNotFound, "meal %s is not in the cart", mealID)
		}
		if err != nil {
			return err
		}

		// an expired cart reads as empty; mutating it must not revive it,
		// so refuse before extendExpiry can touch the deadline
		if cart.IsExpired(now) {
			return Errf(CodeItemNotFound, "meal %s is not in the cart", mealID)
		}

		idx := -1
		for i := range cart.Items {
			if cart.Items[i].MealID == mealID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Errf(CodeItemNotFound, "meal %s is not in the cart", mealID)
		}

		if qty <= 0 {
			if err := tx.DeleteCartItem(ctx, cart.Items[idx].ID); err != nil {
				return err
			}
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		} else {
			meal, err := tx.MealByID(ctx, mealID)
			if errors.Is(err, repo.ErrNotFound) {
				return Errf(CodeItemNotFound, "meal %s not found", mealID)
			}
			if err != nil {
				return err
			}
			if meal.RemainingQuantity < qty {
				return Errf(CodeInsufficientAvailability, "only %d of meal %s left", meal.RemainingQuantity, mealID)
			}
			cart.Items[idx].Quantity = qty
			if err := tx.UpdateCartItem(ctx, &cart.Items[idx]); err != nil {
				return err
			}
		}

		if len(cart.Items) > 0 {
			s.extendExpiry(cart, now)
		}
		if err := tx.SaveCart(ctx, cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	return out, err
}

func (s *CartService) RemoveItem(ctx context.Context, customerID, mealID uuid.UUID) (*models.Cart, error) {
	return s.UpdateQuantity(ctx, customerID, mealID, 0)
}

// ApplyPromo attaches a promo to the cart. The code is resolved to its
// discount here, never taken from the client, and the discount is capped
// at the current subtotal so it can never exceed what the items cost.
func (s *CartService) ApplyPromo(ctx context.Context, customerID uuid.UUID, code string) (*models.Cart, error) {
	if code == "" {
		return nil, Errf(CodeValidation, "promo code required")
	}
	discount, ok := s.Promos[code]
	if !ok {
		return nil, Errf(CodeValidation, "unknown promo code %q", code)
	}

	cart, err := s.Store.CartByCustomer(ctx, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, Errf(CodeEmptyCart, "cart is empty")
	}
	if err != nil {
		return nil, err
	}
	if cart.IsExpired(time.Now().UTC()) {
		return nil, Errf(CodeEmptyCart, "cart is empty")
	}

	subtotal := cartSubtotal(cart)
	if discount > subtotal {
		discount = subtotal
	}
	cart.PromoCode = code
	cart.Discount = discount
	if err := s.Store.SaveCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) RemovePromo(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Store.CartByCustomer(ctx, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, Errf(CodeEmptyCart, "cart is empty")
	}
	if err != nil {
		return nil, err
	}
	if cart.IsExpired(time.Now().UTC()) {
		return nil, Errf(CodeEmptyCart, "cart is empty")
	}
	cart.PromoCode = ""
	cart.Discount = 0
	if err := s.Store.SaveCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) SetDelivery(ctx context.Context, customerID uuid.UUID, in DeliveryInput) (*models.Cart, error) {
	if in.DeliveryType != models.DeliveryTypeDelivery && in.DeliveryType != models.DeliveryTypePickup {
		return nil, Errf(CodeValidation, "delivery_type must be %q or %q", models.DeliveryTypeDelivery, models.DeliveryTypePickup)
	}

	var out *models.Cart
	err := s.Store.Transaction(ctx, func(tx repo.Store) error {
		cart, err := s.loadOrCreateCart(ctx, tx, customerID, time.Now().UTC())
		if err != nil {
			return err
		}
		cart.DeliveryType = in.DeliveryType
		cart.Street = in.Street
		cart.City = in.City
		cart.State = in.State
		cart.ZipCode = in.ZipCode
		cart.Latitude = in.Latitude
		cart.Longitude = in.Longitude
		if err := tx.SaveCart(ctx, cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	return out, err
}

// ValidateAvailability produces a verdict per cart line against the live
// meal records without mutating anything. Callers decide whether a
// non-ok verdict blocks checkout.
func ValidateAvailability(ctx context.Context, store repo.Store, cart *models.Cart, now time.Time) ([]LineVerdict, error) {
	verdicts := make([]LineVerdict, 0, len(cart.Items))
	for _, item := range cart.Items {
		v := LineVerdict{MealID: item.MealID, Quantity: item.Quantity, Verdict: VerdictOK}

		meal, err := store.MealByID(ctx, item.MealID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			v.Verdict = VerdictMealDeleted
		case err != nil:
			return nil, err
		case !meal.IsActive:
			v.Verdict = VerdictInactive
		case outsideWindow(meal, now):
			v.Verdict = VerdictOutsideWindow
		case meal.RemainingQuantity < item.Quantity:
			v.Verdict = VerdictInsufficientQuantity
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, nil
}

func outsideWindow(meal *models.Meal, now time.Time) bool {
	if !meal.AvailableFrom.IsZero() && now.Before(meal.AvailableFrom) {
		return true
	}
	if !meal.AvailableUntil.IsZero() && now.After(meal.AvailableUntil) {
		return true
	}
	return false
}

// GroupByChef splits cart lines per chef, preserving the order in which
// chefs first appear in the cart so checkout iterates deterministically.
func GroupByChef(cart *models.Cart) []ChefGroup {
	var groups []ChefGroup
	index := make(map[uuid.UUID]int)
	for _, item := range cart.Items {
		i, ok := index[item.ChefID]
		if !ok {
			i = len(groups)
			index[item.ChefID] = i
			groups = append(groups, ChefGroup{ChefID: item.ChefID})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	for i := range groups {
		groups[i].Subtotal = money.Subtotal(itemLines(groups[i].Items))
	}
	return groups
}

func (s *CartService) loadOrCreateCart(ctx context.Context, tx repo.Store, customerID uuid.UUID, now time.Time) (*models.Cart, error) {
	cart, err := tx.CartByCustomer(ctx, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		cart = &models.Cart{
			CustomerID:   customerID,
			DeliveryType: models.DeliveryTypeDelivery,
			ExpiresAt:    now.Add(cartTTL),
		}
		if err := tx.SaveCart(ctx, cart); err != nil {
			return nil, err
		}
		return cart, nil
	}
	if err != nil {
		return nil, err
	}

	// An expired cart behaves as if the sweep already emptied it.
	if cart.IsExpired(now) && len(cart.Items) > 0 {
		if err := tx.ClearCart(ctx, cart.ID); err != nil {
			return nil, err
		}
		cart.Items = nil
		cart.PromoCode = ""
		cart.Discount = 0
	}
	return cart, nil
}

// extendExpiry slides the expiry forward on item mutation; it never moves
// the deadline closer.
func (s *CartService) extendExpiry(cart *models.Cart, now time.Time) {
	next := now.Add(cartTTL)
	if next.After(cart.ExpiresAt) {
		cart.ExpiresAt = next
	}
}

func cartSubtotal(cart *models.Cart) float64 {
	return money.Subtotal(itemLines(cart.Items))
}

func itemLines(items []models.CartItem) []money.Line {
	lines := make([]money.Line, len(items))
	for i, it := range items {
		lines[i] = money.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity}
	}
	return lines
}
