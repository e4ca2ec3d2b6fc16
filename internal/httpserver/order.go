package httpserver

import (
	"net/http"
	"strconv"

	"github.com/chefmarket/backend/internal/models"
	"github.com/chefmarket/backend/internal/service"
	"github.com/chefmarket/backend/internal/transport"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type OrderHTTP struct {
	Orders *service.OrderService
	Status *service.StatusService
}

func (h *OrderHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()

	requesterID, err := userID(c)
	if err != nil {
		return err
	}
	orderID, err := uuidParam(c, "id")
	if err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid order id"))
	}

	order, err := h.Orders.Get(ctx, orderID, requesterID)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, order)
}

func (h *OrderHTTP) ListMine(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := userID(c)
	if err != nil {
		return err
	}

	orders, err := h.Orders.ListForCustomer(ctx, customerID, queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, orders)
}

func (h *OrderHTTP) ListForChef(c echo.Context) error {
	ctx := c.Request().Context()

	chefID, err := userID(c)
	if err != nil {
		return err
	}

	orders, err := h.Orders.ListForChef(ctx, chefID, queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, orders)
}

// UpdateStatus moves an order along the fulfillment path; only the order's
// chef may call it.
func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	chefID, err := userID(c)
	if err != nil {
		return err
	}
	orderID, err := uuidParam(c, "id")
	if err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid order id"))
	}

	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid body"))
	}

	order, err := h.Status.UpdateStatus(ctx, orderID, models.OrderStatus(req.Status), service.ActorChef, chefID)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, order)
}

func (h *OrderHTTP) Cancel(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := userID(c)
	if err != nil {
		return err
	}
	orderID, err := uuidParam(c, "id")
	if err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid order id"))
	}

	var req transport.CancelOrderRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid body"))
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled by customer"
	}

	order, err := h.Status.Cancel(ctx, orderID, service.ActorCustomer, customerID, reason)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, order)
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}

func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}
