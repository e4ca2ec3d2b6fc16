package service

import (
	"context"
	"errors"

	"github.com/chefmarket/backend/internal/models"
	"github.com/chefmarket/backend/internal/repo"
	"github.com/google/uuid"
)

type OrderService struct {
	Store repo.Store
}

func (s *OrderService) Get(ctx context.Context, orderID, requesterID uuid.UUID) (*models.Order, error) {
	order, err := s.Store.OrderByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, Errf(CodeOrderNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, err
	}
	if order.CustomerID != requesterID && order.ChefID != requesterID {
		return nil, Errf(CodeOrderNotFound, "order %s not found", orderID)
	}
	return order, nil
}

func (s *OrderService) ListForCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return s.Store.OrdersByCustomer(ctx, customerID, normalizeLimit(limit), offset)
}

func (s *OrderService) ListForChef(ctx context.Context, chefID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return s.Store.OrdersByChef(ctx, chefID, normalizeLimit(limit), offset)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
