package httpserver

import (
	"net/http"
	"strings"

	"github.com/chefmarket/backend/internal/service"
	"github.com/chefmarket/backend/internal/transport"
	"github.com/labstack/echo/v4"
)

const idempotencyHeader = "Idempotency-Key"

type CheckoutHTTP struct {
	Svc *service.CheckoutService
}

func (h *CheckoutHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	customerID, err := userID(c)
	if err != nil {
		return err
	}

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid body"))
	}

	result, err := h.Svc.Checkout(ctx, customerID, service.CheckoutInput{
		PaymentIntentID: req.PaymentIntentID,
		CustomerNotes:   req.CustomerNotes,
		IdempotencyKey:  strings.TrimSpace(c.Request().Header.Get(idempotencyHeader)),
	})
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusCreated, result)
}
