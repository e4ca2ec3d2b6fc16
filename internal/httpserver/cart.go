package httpserver

import (
	"net/http"

	"github.com/chefmarket/backend/internal/logging"
	"github.com/chefmarket/backend/internal/service"
	"github.com/chefmarket/backend/internal/transport"
	"github.com/labstack/echo/v4"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := userID(c)
	if err != nil {
		return err
	}

	cart, err := h.Svc.GetCart(ctx, customerID)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, cart)
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	customerID, err := userID(c)
	if err != nil {
		return err
	}

	var req transport.AddItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("bad request body", "error", err)
		return respondErr(c, service.Errf(service.CodeValidation, "invalid body"))
	}

	cart, err := h.Svc.AddItem(ctx, customerID, service.AddItemInput{
		MealID:              req.MealID,
		ChefID:              req.ChefID,
		Quantity:            req.Quantity,
		UnitPrice:           req.UnitPrice,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		return respondErr(c, err)
	}

	l.Info("item added to cart", "meal_id", req.MealID, "quantity", req.Quantity)
	return respondOK(c, http.StatusCreated, cart)
}

func (h *CartHTTP) UpdateQuantity(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := userID(c)
	if err != nil {
		return err
	}

	var req transport.UpdateQuantityRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid body"))
	}

	cart, err := h.Svc.UpdateQuantity(ctx, customerID, req.MealID, req.Quantity)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, cart)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := userID(c)
	if err != nil {
		return err
	}

	mealID, err := uuidParam(c, "mealId")
	if err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid meal id"))
	}

	cart, err := h.Svc.RemoveItem(ctx, customerID, mealID)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, cart)
}

func (h *CartHTTP) ApplyPromo(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := userID(c)
	if err != nil {
		return err
	}

	var req transport.ApplyPromoRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid body"))
	}

	cart, err := h.Svc.ApplyPromo(ctx, customerID, req.Code)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, cart)
}

func (h *CartHTTP) RemovePromo(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := userID(c)
	if err != nil {
		return err
	}

	cart, err := h.Svc.RemovePromo(ctx, customerID)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, cart)
}

func (h *CartHTTP) SetDelivery(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := userID(c)
	if err != nil {
		return err
	}

	var req transport.SetDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid body"))
	}

	cart, err := h.Svc.SetDelivery(ctx, customerID, service.DeliveryInput{
		DeliveryType: req.DeliveryType,
		Street:       req.Street,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, cart)
}

func (h *CartHTTP) Summary(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := userID(c)
	if err != nil {
		return err
	}

	summary, err := h.Svc.Summary(ctx, customerID)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, summary)
}
