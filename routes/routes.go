package routes

import (
	"github.com/scotthooker/commerce-stripe/controllers"
	"github.com/scotthooker/commerce-stripe/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterPaymentRoutes mounts the gateway endpoints. guards run after
// authentication on every protected route, e.g. rate limiting and
// idempotency.
func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, guards ...gin.HandlerFunc) {
	// Publishable config for the tokenization widget (no auth)
	r.GET("/payments/config", pc.GetConfig)

	protected := append([]gin.HandlerFunc{middleware.AuthMiddleware()}, guards...)

	methods := r.Group("/payment-methods", protected...)
	methods.POST("", pc.CreatePaymentMethod)
	methods.DELETE("/:id", pc.DeletePaymentMethod)

	payments := r.Group("/payments", protected...)
	payments.POST("", pc.CreatePayment)
	payments.GET("/:id", pc.GetPayment)
	payments.POST("/:id/capture", pc.CapturePayment)
	payments.POST("/:id/refund", pc.RefundPayment)
	payments.POST("/:id/void", pc.VoidPayment)
}
