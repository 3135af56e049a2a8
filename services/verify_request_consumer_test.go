package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/models"
	awspkg "github.com/Bames007/sauni/pkg/aws"
	"github.com/Bames007/sauni/repository"
	"github.com/Bames007/sauni/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPoller struct {
	messages []string
	results  []error
}

func (m *mockPoller) StartPolling(ctx context.Context, handler awspkg.MessageHandler) error {
	for _, body := range m.messages {
		m.results = append(m.results, handler(ctx, body))
	}
	return context.Canceled
}

func verifyMessage(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(verifyRequest(testAmount))
	require.NoError(t, err)
	return string(b)
}

func TestVerifyRequestConsumer_ReconcilesMessages(t *testing.T) {
	f := newFixture(nil, &mockGateway{resp: paystackSuccess(testAmount)})
	seedPending(f)
	poller := &mockPoller{messages: []string{verifyMessage(t)}}

	services.NewVerifyRequestConsumer(poller, f.svc, awspkg.DisabledMetrics(), zap.NewNop()).Start(context.Background())

	require.Len(t, poller.results, 1)
	assert.NoError(t, poller.results[0])
	assert.Equal(t, models.PaymentStatusSuccess, loadPayment(t, f, repository.PaymentPath(testReference)).Status)
}

func TestVerifyRequestConsumer_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		store   docstore.Store
		resp    *models.VerifyResponse
		body    func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "malformed json is dropped",
			resp: paystackSuccess(testAmount),
			body: func(*testing.T) string { return "{" },
		},
		{
			name: "business failure is consumed",
			resp: paystackSuccess(1),
			body: verifyMessage,
		},
		{
			name:    "internal failure is redelivered",
			store:   &failingStore{MemoryStore: docstore.NewMemoryStore(), failFrom: 1},
			resp:    paystackSuccess(testAmount),
			body:    verifyMessage,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.store, &mockGateway{resp: tt.resp})
			c := services.NewVerifyRequestConsumer(&mockPoller{}, f.svc, awspkg.DisabledMetrics(), zap.NewNop())

			err := c.Handle(context.Background(), tt.body(t))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifyRequestConsumer_ContentionIsRedelivered(t *testing.T) {
	gw := &mockGateway{
		resp:    paystackSuccess(testAmount),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	f := newFixture(nil, gw)
	seedPending(f)
	c := services.NewVerifyRequestConsumer(&mockPoller{}, f.svc, awspkg.DisabledMetrics(), zap.NewNop())

	msg := verifyMessage(t)
	done := make(chan error, 1)
	go func() { done <- c.Handle(context.Background(), msg) }()
	<-gw.entered

	err := c.Handle(context.Background(), msg)
	var se *services.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 409, se.StatusCode)

	close(gw.release)
	assert.NoError(t, <-done)
}
