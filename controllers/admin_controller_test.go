package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/models"
	"github.com/Bames007/sauni/repository"
	"github.com/Bames007/sauni/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Enqueue(ctx context.Context, n *models.NotificationOutbox) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]models.NotificationOutbox, error) {
	args := m.Called(ctx, now, limit, lease)
	return args.Get(0).([]models.NotificationOutbox), args.Error(1)
}

func (m *MockOutboxRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockOutboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, lastErr string, next time.Time) error {
	return m.Called(ctx, id, lastErr, next).Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string) error {
	return m.Called(ctx, id, lastErr).Error(0)
}

func (m *MockOutboxRepository) List(ctx context.Context, filter models.OutboxFilter) ([]models.NotificationOutbox, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.NotificationOutbox), args.Get(1).(int64), args.Error(2)
}

func setupAdminRouter(svc services.PaymentService, outbox repository.OutboxRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ac := NewAdminController(svc, outbox, zap.NewNop())
	r.GET("/admin/applications/:prospectiveId", ac.GetApplication)
	r.GET("/admin/applications/:prospectiveId/payments", ac.ListPayments)
	r.GET("/admin/notifications", ac.ListNotifications)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestAdminGetApplication(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("GetApplication", mock.Anything, "SAU-2025-0001").
		Return(docstore.Document{"paymentStatus": "paid", "amountPaid": 25000.0}, nil).Once()
	svc.On("GetApplication", mock.Anything, "SAU-0").
		Return(nil, &services.ServiceError{StatusCode: http.StatusNotFound, Message: "Application not found"}).Once()
	r := setupAdminRouter(svc, nil)

	w := get(r, "/admin/applications/SAU-2025-0001")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paymentStatus":"paid"`)

	w = get(r, "/admin/applications/SAU-0")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Application not found")
}

func TestAdminListPayments(t *testing.T) {
	svc := new(MockPaymentService)
	svc.On("ListStudentPayments", mock.Anything, "SAU-2025-0001").Return([]models.PaymentRecord{
		{Reference: "R2", Status: models.PaymentStatusSuccess},
		{Reference: "R1", Status: models.PaymentStatusFailed},
	}, nil).Once()

	w := get(setupAdminRouter(svc, nil), "/admin/applications/SAU-2025-0001/payments")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)
	svc.AssertExpectations(t)
}

func TestAdminListNotifications(t *testing.T) {
	t.Run("Success - filter and pagination", func(t *testing.T) {
		outbox := new(MockOutboxRepository)
		outbox.On("List", mock.Anything, models.OutboxFilter{Status: models.OutboxStatusFailed, Limit: 10, Offset: 10}).
			Return([]models.NotificationOutbox{{Recipient: "a@b.com", Status: models.OutboxStatusFailed}}, int64(11), nil).Once()

		w := get(setupAdminRouter(new(MockPaymentService), outbox), "/admin/notifications?status=failed&page=2&limit=10")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"total":11`)
		assert.Contains(t, w.Body.String(), "a@b.com")
		outbox.AssertExpectations(t)
	})

	t.Run("Limit is capped", func(t *testing.T) {
		outbox := new(MockOutboxRepository)
		outbox.On("List", mock.Anything, models.OutboxFilter{Limit: 100}).
			Return([]models.NotificationOutbox{}, int64(0), nil).Once()

		w := get(setupAdminRouter(new(MockPaymentService), outbox), "/admin/notifications?limit=5000")
		assert.Equal(t, http.StatusOK, w.Code)
		outbox.AssertExpectations(t)
	})

	t.Run("Failure - Invalid Status - 400", func(t *testing.T) {
		outbox := new(MockOutboxRepository)
		w := get(setupAdminRouter(new(MockPaymentService), outbox), "/admin/notifications?status=bogus")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		outbox.AssertNotCalled(t, "List")
	})

	t.Run("Failure - Repository Error - 500", func(t *testing.T) {
		outbox := new(MockOutboxRepository)
		outbox.On("List", mock.Anything, mock.Anything).
			Return([]models.NotificationOutbox(nil), int64(0), errors.New("db down")).Once()

		w := get(setupAdminRouter(new(MockPaymentService), outbox), "/admin/notifications")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("Outbox disabled - 503", func(t *testing.T) {
		w := get(setupAdminRouter(new(MockPaymentService), nil), "/admin/notifications")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ok := NewHealthController("admissions-payment-service", map[string]Pinger{
		"docstore": func(context.Context) error { return nil },
	})
	r := gin.New()
	r.GET("/health", ok.Health)
	w := get(r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"service":"admissions-payment-service"`)

	degraded := NewHealthController("admissions-payment-service", map[string]Pinger{
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	r = gin.New()
	r.GET("/health", degraded.Health)
	w = get(r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
