package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Bames007/sauni/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) HandlePaystack(ctx context.Context, body []byte, signature string) *services.ServiceError {
	args := m.Called(ctx, body, signature)
	return svcErrArg(args, 0)
}

func setupWebhookRouter(svc services.WebhookService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/paystack/webhook", NewWebhookController(svc).PaystackWebhook)
	return r
}

func TestPaystackWebhook(t *testing.T) {
	payload := `{"event":"charge.success","data":{"reference":"R1"}}`

	t.Run("Success - raw body and signature passed through", func(t *testing.T) {
		svc := new(MockWebhookService)
		svc.On("HandlePaystack", mock.Anything, []byte(payload), "abc123").Return(nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/paystack/webhook", bytes.NewBufferString(payload))
		req.Header.Set("X-Paystack-Signature", "abc123")
		w := httptest.NewRecorder()
		setupWebhookRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Failure - Invalid Signature - 401", func(t *testing.T) {
		svc := new(MockWebhookService)
		svc.On("HandlePaystack", mock.Anything, mock.Anything, "").Return(&services.ServiceError{
			StatusCode: http.StatusUnauthorized, Message: "Invalid signature",
		}).Once()

		w := httptest.NewRecorder()
		setupWebhookRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/paystack/webhook", bytes.NewBufferString(payload)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid signature")
	})
}
