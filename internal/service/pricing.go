package service

import (
	"context"
	"errors"
	"time"

	"github.com/chefmarket/backend/internal/models"
	"github.com/chefmarket/backend/internal/money"
	"github.com/chefmarket/backend/internal/repo"
	"github.com/google/uuid"
)

type FeeConfig struct {
	TaxRate          float64
	BaseDeliveryFee  float64
	PerKmDeliveryFee float64
}

// pricedGroup is one chef's share of a cart with all money math applied.
// The same computation backs the cart summary preview and checkout, so
// the preview a customer sees is exactly what checkout charges.
type pricedGroup struct {
	Group       ChefGroup
	Chef        *models.Chef
	DeliveryFee float64
	Tax         float64
	Discount    float64
	FinalAmount float64
	MaxPrepMin  int
}

type GroupSummary struct {
	ChefID      uuid.UUID `json:"chef_id"`
	ChefName    string    `json:"chef_name"`
	Subtotal    float64   `json:"subtotal"`
	DeliveryFee float64   `json:"delivery_fee"`
	Tax         float64   `json:"tax"`
	Discount    float64   `json:"discount"`
	Total       float64   `json:"total"`
}

type CartSummary struct {
	Groups      []GroupSummary `json:"groups"`
	Subtotal    float64        `json:"subtotal"`
	DeliveryFee float64        `json:"delivery_fee"`
	Tax         float64        `json:"tax"`
	Discount    float64        `json:"discount"`
	Total       float64        `json:"total"`
}

// priceGroups computes fees, tax and the discount split for every chef
// group. The delivery fee is withheld for pickup carts and for carts
// without coordinates.
func (f FeeConfig) priceGroups(ctx context.Context, store repo.Store, cart *models.Cart, groups []ChefGroup) ([]pricedGroup, error) {
	subtotals := make([]float64, len(groups))
	for i, g := range groups {
		subtotals[i] = g.Subtotal
	}
	shares := money.AllocateDiscount(cart.Discount, subtotals)

	charging := cart.DeliveryType == models.DeliveryTypeDelivery &&
		cart.Latitude != nil && cart.Longitude != nil

	priced := make([]pricedGroup, len(groups))
	for i, g := range groups {
		chef, err := store.ChefByID(ctx, g.ChefID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, Errf(CodeItemsUnavailable, "chef %s no longer exists", g.ChefID)
			}
			return nil, err
		}

		var fee float64
		if charging {
			fee = money.DeliveryFee(f.BaseDeliveryFee, f.PerKmDeliveryFee,
				chef.Latitude, chef.Longitude, *cart.Latitude, *cart.Longitude)
		}
		tax := money.Tax(g.Subtotal, f.TaxRate)

		maxPrep := 0
		for _, item := range g.Items {
			meal, err := store.MealByID(ctx, item.MealID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return nil, Errf(CodeItemsUnavailable, "meal %s no longer exists", item.MealID)
				}
				return nil, err
			}
			if meal.PrepTimeMinutes > maxPrep {
				maxPrep = meal.PrepTimeMinutes
			}
		}

		priced[i] = pricedGroup{
			Group:       g,
			Chef:        chef,
			DeliveryFee: fee,
			Tax:         tax,
			Discount:    shares[i],
			FinalAmount: money.FinalAmount(g.Subtotal, fee, tax, shares[i]),
			MaxPrepMin:  maxPrep,
		}
	}
	return priced, nil
}

// Summary prices the current cart without touching inventory or orders.
func (s *CartService) Summary(ctx context.Context, customerID uuid.UUID) (*CartSummary, error) {
	cart, err := s.Store.CartByCustomer(ctx, customerID)
	if errors.Is(err, repo.ErrNotFound) {
		return &CartSummary{Groups: []GroupSummary{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if cart.IsExpired(time.Now().UTC()) || len(cart.Items) == 0 {
		return &CartSummary{Groups: []GroupSummary{}}, nil
	}

	priced, err := s.Fees.priceGroups(ctx, s.Store, cart, GroupByChef(cart))
	if err != nil {
		return nil, err
	}

	summary := &CartSummary{Groups: make([]GroupSummary, 0, len(priced))}
	for _, p := range priced {
		summary.Groups = append(summary.Groups, GroupSummary{
			ChefID:      p.Group.ChefID,
			ChefName:    p.Chef.Name,
			Subtotal:    p.Group.Subtotal,
			DeliveryFee: p.DeliveryFee,
			Tax:         p.Tax,
			Discount:    p.Discount,
			Total:       p.FinalAmount,
		})
		summary.Subtotal = money.Round2(summary.Subtotal + p.Group.Subtotal)
		summary.DeliveryFee = money.Round2(summary.DeliveryFee + p.DeliveryFee)
		summary.Tax = money.Round2(summary.Tax + p.Tax)
		summary.Discount = money.Round2(summary.Discount + p.Discount)
		summary.Total = money.Round2(summary.Total + p.FinalAmount)
	}
	return summary, nil
}
