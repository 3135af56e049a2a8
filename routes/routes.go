package routes

import (
	"time"

	"github.com/Bames007/sauni/common/auth"
	"github.com/Bames007/sauni/common/middleware"
	"github.com/Bames007/sauni/controllers"
	"github.com/gin-gonic/gin"
)

// Controllers groups everything the router mounts.
type Controllers struct {
	Payments *controllers.PaymentController
	Webhooks *controllers.WebhookController
	Admin    *controllers.AdminController
	Health   *controllers.HealthController
}

// RegisterRoutes sets up all routes. The event stream is mounted outside the
// request timeout.
func RegisterRoutes(r *gin.Engine, c Controllers, tokens *auth.TokenManager, requestTimeout time.Duration) {
	r.GET("/health", c.Health.Health)
	r.GET("/payments/:reference/events", c.Payments.StreamPayment)

	api := r.Group("/", middleware.Timeout(requestTimeout))

	// Public: called by the admissions portal
	api.POST("/verify-payment", c.Payments.VerifyPayment)
	api.POST("/payments/create-pending", c.Payments.CreatePending)
	api.GET("/payments/:reference", c.Payments.GetPayment)

	// Public: Paystack signs these
	api.POST("/paystack/webhook", c.Webhooks.PaystackWebhook)

	admin := api.Group("/admin", middleware.BearerAuth(tokens), middleware.AdminOnly())
	admin.GET("/applications/:prospectiveId", c.Admin.GetApplication)
	admin.GET("/applications/:prospectiveId/payments", c.Admin.ListPayments)
	admin.GET("/notifications", c.Admin.ListNotifications)
}
