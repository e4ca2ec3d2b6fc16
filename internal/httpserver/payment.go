package httpserver

import (
	"io"
	"net/http"

	"github.com/chefmarket/backend/internal/logging"
	"github.com/chefmarket/backend/internal/payments"
	"github.com/chefmarket/backend/internal/service"
	"github.com/chefmarket/backend/internal/transport"
	"github.com/labstack/echo/v4"
)

const signatureHeader = "X-Gateway-Signature"

type PaymentHTTP struct {
	Svc           *service.PaymentService
	WebhookSecret []byte
}

func (h *PaymentHTTP) CreateIntent(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := userID(c); err != nil {
		return err
	}
	orderID, err := uuidParam(c, "id")
	if err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid order id"))
	}

	var req transport.CreateIntentRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid body"))
	}

	intent, err := h.Svc.CreateIntent(ctx, orderID, req.Amount, req.Currency)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusCreated, intent)
}

func (h *PaymentHTTP) Confirm(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := userID(c); err != nil {
		return err
	}

	var req transport.ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil || req.PaymentIntentID == "" {
		return respondErr(c, service.Errf(service.CodeValidation, "payment_intent_id required"))
	}

	order, err := h.Svc.Confirm(ctx, req.PaymentIntentID)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, order)
}

func (h *PaymentHTTP) Refund(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := userID(c); err != nil {
		return err
	}
	orderID, err := uuidParam(c, "id")
	if err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid order id"))
	}

	var req transport.RefundRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid body"))
	}

	order, err := h.Svc.Refund(ctx, orderID, req.Amount, req.Reason)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, order)
}

func (h *PaymentHTTP) Retry(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := userID(c); err != nil {
		return err
	}
	orderID, err := uuidParam(c, "id")
	if err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "invalid order id"))
	}

	order, err := h.Svc.Retry(ctx, orderID)
	if err != nil {
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, order)
}

// Webhook receives gateway callbacks. Signature failures get a 400 so the
// gateway retries; a valid but unknown event is acknowledged to stop
// redelivery.
func (h *PaymentHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payments.webhook")

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return respondErr(c, service.Errf(service.CodeValidation, "unreadable body"))
	}

	event, err := payments.DecodeWebhook(payload, c.Request().Header.Get(signatureHeader), h.WebhookSecret)
	if err != nil {
		l.Warn("webhook rejected", "error", err)
		return respondErr(c, service.Errf(service.CodeValidation, "invalid webhook"))
	}

	if err := h.Svc.ReconcileWebhook(ctx, event); err != nil {
		if service.IsCode(err, service.CodeOrderNotFound) {
			// ack events for orders we do not know; retrying won't help
			l.Warn("webhook for unknown order", "intent_id", event.PaymentIntentID)
			return respondOK(c, http.StatusOK, nil)
		}
		return respondErr(c, err)
	}
	return respondOK(c, http.StatusOK, nil)
}
