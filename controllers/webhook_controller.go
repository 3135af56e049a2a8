package controllers

import (
	"io"
	"net/http"

	"github.com/Bames007/sauni/services"
	"github.com/gin-gonic/gin"
)

const (
	paystackSignatureHeader = "x-paystack-signature"
	maxWebhookBody          = 1 << 20
)

type WebhookController struct {
	webhookService services.WebhookService
}

func NewWebhookController(svc services.WebhookService) *WebhookController {
	return &WebhookController{webhookService: svc}
}

// PaystackWebhook handles POST /paystack/webhook. The body is read raw
// because the signature covers the exact bytes.
func (wc *WebhookController) PaystackWebhook(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	svcErr := wc.webhookService.HandlePaystack(ctx.Request.Context(), body, ctx.GetHeader(paystackSignatureHeader))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"received": true})
}
