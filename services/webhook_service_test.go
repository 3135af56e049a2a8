package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/models"
	"github.com/Bames007/sauni/repository"
	"github.com/Bames007/sauni/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- mock webhook log repository ----

type mockWebhookLogs struct {
	mu       sync.Mutex
	created  []models.WebhookLog
	outcomes map[uuid.UUID]string
}

func newMockWebhookLogs() *mockWebhookLogs {
	return &mockWebhookLogs{outcomes: map[uuid.UUID]string{}}
}

func (m *mockWebhookLogs) Create(_ context.Context, l *models.WebhookLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	m.created = append(m.created, *l)
	return nil
}

func (m *mockWebhookLogs) SetOutcome(_ context.Context, id uuid.UUID, outcome string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[id] = outcome
	return nil
}

func (m *mockWebhookLogs) lastOutcome() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.created) == 0 {
		return ""
	}
	return m.outcomes[m.created[len(m.created)-1].ID]
}

// ---- mock queue ----

type mockQueue struct {
	err    error
	bodies []string
}

func (m *mockQueue) SendMessage(_ context.Context, body string) error {
	if m.err != nil {
		return m.err
	}
	m.bodies = append(m.bodies, body)
	return nil
}

func chargeSuccessBody(t *testing.T, amount int64) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"event": "charge.success",
		"data": map[string]any{
			"status":    "success",
			"reference": testReference,
			"amount":    amount,
			"metadata":  map[string]any{"prospectiveId": testProspectiveID},
		},
	})
	require.NoError(t, err)
	return b
}

func newWebhookFixture(gw *mockGateway, queue services.VerifyQueue) (*fixture, *mockWebhookLogs, services.WebhookService) {
	f := newFixture(nil, gw)
	logs := newMockWebhookLogs()
	wh := services.NewWebhookService(gw, f.repo.Payments, logs, f.svc, queue, zap.NewNop())
	return f, logs, wh
}

func TestWebhook_InvalidSignatureWritesNothing(t *testing.T) {
	gw := &mockGateway{validSig: false, resp: paystackSuccess(testAmount)}
	f, logs, wh := newWebhookFixture(gw, nil)
	seedPending(f)

	svcErr := wh.HandlePaystack(context.Background(), chargeSuccessBody(t, testAmount), "deadbeef")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusUnauthorized, svcErr.StatusCode)
	assert.Empty(t, logs.created)
	assert.Equal(t, int32(0), gw.calls.Load())
	assert.Equal(t, models.PaymentStatusPending, loadPayment(t, f, repository.PaymentPath(testReference)).Status)
}

func TestWebhook_MissingSignature(t *testing.T) {
	gw := &mockGateway{validSig: true}
	_, logs, wh := newWebhookFixture(gw, nil)

	svcErr := wh.HandlePaystack(context.Background(), chargeSuccessBody(t, testAmount), "")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusUnauthorized, svcErr.StatusCode)
	assert.Empty(t, logs.created)
}

func TestWebhook_ChargeSuccessReconcilesWithStoredAmount(t *testing.T) {
	gw := &mockGateway{validSig: true, resp: paystackSuccess(testAmount)}
	f, logs, wh := newWebhookFixture(gw, nil)
	seedPending(f)

	// The webhook claims a different amount; only the stored amount counts.
	svcErr := wh.HandlePaystack(context.Background(), chargeSuccessBody(t, 100), "sig")
	require.Nil(t, svcErr)

	assert.Equal(t, int32(1), gw.calls.Load())
	assert.Equal(t, models.PaymentStatusSuccess, loadPayment(t, f, repository.PaymentPath(testReference)).Status)
	require.Len(t, logs.created, 1)
	assert.Equal(t, models.WebhookEventChargeSuccess, logs.created[0].Event)
	assert.Equal(t, testReference, logs.created[0].Reference)
	assert.Equal(t, models.WebhookOutcomeReconciled, logs.lastOutcome())
}

func TestWebhook_QueuesWhenQueueConfigured(t *testing.T) {
	gw := &mockGateway{validSig: true, resp: paystackSuccess(testAmount)}
	queue := &mockQueue{}
	f, logs, wh := newWebhookFixture(gw, queue)
	seedPending(f)

	svcErr := wh.HandlePaystack(context.Background(), chargeSuccessBody(t, testAmount), "sig")
	require.Nil(t, svcErr)
	assert.Equal(t, int32(0), gw.calls.Load())
	require.Len(t, queue.bodies, 1)

	var req models.VerifyRequest
	require.NoError(t, json.Unmarshal([]byte(queue.bodies[0]), &req))
	assert.Equal(t, testReference, req.Reference)
	assert.Equal(t, testProspectiveID, req.ProspectiveID)
	assert.Equal(t, testAmount, req.Amount)
	assert.Equal(t, "webhook", req.Source)
	assert.Equal(t, models.WebhookOutcomeQueued, logs.lastOutcome())
}

func TestWebhook_QueueFailureAsksForRedelivery(t *testing.T) {
	gw := &mockGateway{validSig: true}
	f, logs, wh := newWebhookFixture(gw, &mockQueue{err: errors.New("sqs unavailable")})
	seedPending(f)

	svcErr := wh.HandlePaystack(context.Background(), chargeSuccessBody(t, testAmount), "sig")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Equal(t, models.WebhookOutcomeError, logs.lastOutcome())
}

func TestWebhook_IgnoredEvents(t *testing.T) {
	tests := []struct {
		name  string
		seed  bool
		paid  bool
		event string
	}{
		{name: "other event type", seed: true, event: "transfer.success"},
		{name: "unknown reference", seed: false, event: "charge.success"},
		{name: "already paid", seed: true, paid: true, event: "charge.success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{validSig: true, resp: paystackSuccess(testAmount)}
			f, logs, wh := newWebhookFixture(gw, nil)
			if tt.seed {
				seedPending(f)
			}
			if tt.paid {
				_, svcErr := f.svc.Verify(context.Background(), verifyRequest(testAmount))
				require.Nil(t, svcErr)
			}
			calls := gw.calls.Load()

			body, err := json.Marshal(map[string]any{
				"event": tt.event,
				"data":  map[string]any{"reference": testReference, "amount": testAmount},
			})
			require.NoError(t, err)

			svcErr := wh.HandlePaystack(context.Background(), body, "sig")
			require.Nil(t, svcErr)
			assert.Equal(t, calls, gw.calls.Load())
			assert.Equal(t, models.WebhookOutcomeIgnored, logs.lastOutcome())
		})
	}
}

func TestWebhook_InvalidPayload(t *testing.T) {
	_, logs, wh := newWebhookFixture(&mockGateway{validSig: true}, nil)

	svcErr := wh.HandlePaystack(context.Background(), []byte("not json"), "sig")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)
	assert.Empty(t, logs.created)
}

func TestWebhook_StoredProspectiveIDWins(t *testing.T) {
	gw := &mockGateway{validSig: true, resp: paystackSuccess(testAmount)}
	f, logs, wh := newWebhookFixture(gw, nil)
	seedPending(f)

	body, err := json.Marshal(map[string]any{
		"event": "charge.success",
		"data": map[string]any{
			"status":    "success",
			"reference": testReference,
			"amount":    testAmount,
			"metadata":  map[string]any{"prospectiveId": "SAU-2025-0999"},
		},
	})
	require.NoError(t, err)

	require.Nil(t, wh.HandlePaystack(context.Background(), body, "sig"))
	assert.Equal(t, models.WebhookOutcomeReconciled, logs.lastOutcome())

	app, err := f.store.Get(context.Background(), repository.ApplicationPath(testProspectiveID))
	require.NoError(t, err)
	assert.Equal(t, "paid", app["paymentStatus"])

	_, err = f.store.Get(context.Background(), repository.ApplicationPath("SAU-2025-0999"))
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
