package controllers

import (
	"io"
	"net/http"

	"github.com/Bames007/sauni/models"
	"github.com/Bames007/sauni/services"
	"github.com/gin-gonic/gin"
)

const msgMissingDetails = "Missing required payment details"

// PaymentController handles the applicant-facing payment endpoints.
type PaymentController struct {
	paymentService services.PaymentService
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(svc services.PaymentService) *PaymentController {
	return &PaymentController{paymentService: svc}
}

// VerifyPayment handles POST /verify-payment
func (pc *PaymentController) VerifyPayment(ctx *gin.Context) {
	var req models.VerifyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msgMissingDetails, "details": err.Error()})
		return
	}
	req.Source = "http"

	result, svcErr := pc.paymentService.Verify(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"success": false, "message": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// CreatePending handles POST /payments/create-pending
func (pc *PaymentController) CreatePending(ctx *gin.Context) {
	var req models.CreatePendingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msgMissingDetails, "details": err.Error()})
		return
	}

	reference, svcErr := pc.paymentService.CreatePending(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"success": false, "message": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Pending payment created",
		"reference": reference,
	})
}

// GetPayment handles GET /payments/:reference
func (pc *PaymentController) GetPayment(ctx *gin.Context) {
	record, svcErr := pc.paymentService.GetPayment(ctx.Request.Context(), ctx.Param("reference"))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"success": false, "message": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "payment": record})
}

// StreamPayment handles GET /payments/:reference/events. It sends a
// "payment" event per change and stops after a terminal status or when the
// client goes away.
func (pc *PaymentController) StreamPayment(ctx *gin.Context) {
	reference := ctx.Param("reference")
	updates, unsubscribe, svcErr := pc.paymentService.WatchPayment(ctx.Request.Context(), reference)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"success": false, "message": svcErr.Message})
		return
	}
	defer unsubscribe()

	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("X-Accel-Buffering", "no")

	ctx.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Request.Context().Done():
			return false
		case rec, ok := <-updates:
			if !ok {
				return false
			}
			if rec == nil {
				ctx.SSEvent("missing", gin.H{"reference": reference})
				return true
			}
			ctx.SSEvent("payment", rec)
			return !rec.Status.Terminal()
		}
	})
}
