package httpserver

import (
	"github.com/chefmarket/backend/internal/metrics"
	"github.com/labstack/echo/v4"
)

type Deps struct {
	JWTSecret []byte

	Cart     *CartHTTP
	Checkout *CheckoutHTTP
	Order    *OrderHTTP
	Payment  *PaymentHTTP
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	v1 := e.Group("/api/v1")

	// gateway callbacks authenticate via signature, not JWT
	v1.POST("/webhooks/payment", d.Payment.Webhook)

	auth := v1.Group("", RequireAuth(d.JWTSecret))

	cart := auth.Group("/cart")
	cart.GET("", d.Cart.GetCart)
	cart.POST("/items", d.Cart.AddItem)
	cart.PATCH("/items", d.Cart.UpdateQuantity)
	cart.DELETE("/items/:mealId", d.Cart.RemoveItem)
	cart.POST("/promo", d.Cart.ApplyPromo)
	cart.DELETE("/promo", d.Cart.RemovePromo)
	cart.PUT("/delivery", d.Cart.SetDelivery)
	cart.GET("/summary", d.Cart.Summary)

	auth.POST("/checkout", d.Checkout.Checkout)

	orders := auth.Group("/orders")
	orders.GET("", d.Order.ListMine)
	orders.GET("/:id", d.Order.Get)
	orders.PATCH("/:id/status", d.Order.UpdateStatus)
	orders.POST("/:id/cancel", d.Order.Cancel)
	orders.POST("/:id/payment-intent", d.Payment.CreateIntent)
	orders.POST("/:id/refund", d.Payment.Refund)
	orders.POST("/:id/payment-retry", d.Payment.Retry)

	auth.GET("/chef/orders", d.Order.ListForChef)
	auth.POST("/payments/confirm", d.Payment.Confirm)
}
