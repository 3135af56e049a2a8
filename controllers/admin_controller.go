package controllers

import (
	"net/http"
	"strconv"

	"github.com/Bames007/sauni/models"
	"github.com/Bames007/sauni/repository"
	"github.com/Bames007/sauni/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminController serves the read-only administrator views.
type AdminController struct {
	paymentService services.PaymentService
	outbox         repository.OutboxRepository
	logger         *zap.Logger
}

// NewAdminController creates a new AdminController. outbox may be nil when
// notifications are sent directly.
func NewAdminController(svc services.PaymentService, outbox repository.OutboxRepository, logger *zap.Logger) *AdminController {
	return &AdminController{paymentService: svc, outbox: outbox, logger: logger}
}

// GetApplication handles GET /admin/applications/:prospectiveId
func (ac *AdminController) GetApplication(ctx *gin.Context) {
	app, svcErr := ac.paymentService.GetApplication(ctx.Request.Context(), ctx.Param("prospectiveId"))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"application": app})
}

// ListPayments handles GET /admin/applications/:prospectiveId/payments
func (ac *AdminController) ListPayments(ctx *gin.Context) {
	payments, svcErr := ac.paymentService.ListStudentPayments(ctx.Request.Context(), ctx.Param("prospectiveId"))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"payments": payments, "count": len(payments)})
}

// ListNotifications handles GET /admin/notifications?status=&page=&limit=
func (ac *AdminController) ListNotifications(ctx *gin.Context) {
	if ac.outbox == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Notification outbox is not enabled"})
		return
	}

	status := models.OutboxStatus(ctx.Query("status"))
	switch status {
	case "", models.OutboxStatusPending, models.OutboxStatusSent, models.OutboxStatusFailed:
	default:
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	page, limit := parsePaginationParams(ctx)
	rows, total, err := ac.outbox.List(ctx.Request.Context(), models.OutboxFilter{
		Status: status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		ac.logger.Error("ListNotifications failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"notifications": rows,
		"total":         total,
		"page":          page,
		"limit":         limit,
	})
}

// parsePaginationParams extracts and validates page/limit query params.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const maxLimit = 100
	pageInt, limitInt := 1, 20
	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "20")); err == nil && l > 0 {
		if l > maxLimit {
			l = maxLimit
		}
		limitInt = l
	}
	return pageInt, limitInt
}
