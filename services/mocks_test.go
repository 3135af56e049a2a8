package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/models"
	awspkg "github.com/Bames007/sauni/pkg/aws"
	"github.com/Bames007/sauni/repository"
	"github.com/Bames007/sauni/sender"
	"github.com/Bames007/sauni/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	testReference     = "SAUNI1001_1700000000000"
	testProspectiveID = "SAU-2025-0001"
	testAmount        = int64(2500000)
)

// ---- mock gateway ----

type mockGateway struct {
	resp     *models.VerifyResponse
	err      error
	validSig bool
	calls    atomic.Int32
	entered  chan struct{}
	release  chan struct{}
}

func (m *mockGateway) Verify(ctx context.Context, reference string) (*models.VerifyResponse, error) {
	m.calls.Add(1)
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	return m.resp, m.err
}

func (m *mockGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return m.validSig
}

func paystackSuccess(amount int64) *models.VerifyResponse {
	fees := int64(37500)
	return &models.VerifyResponse{
		Status:  true,
		Message: "Verification successful",
		Data: &models.Transaction{
			Status:          models.TransactionStatusSuccess,
			Reference:       testReference,
			Amount:          amount,
			PaidAt:          "2025-01-01T10:00:00Z",
			Channel:         "card",
			Currency:        "NGN",
			GatewayResponse: "Successful",
			Fees:            &fees,
			Customer:        models.TransactionCustomer{Email: "a@b.com", CustomerCode: "CUS_1"},
			Authorization:   map[string]any{"authorization_code": "AUTH_1", "last4": "4081"},
		},
	}
}

// ---- mock notifier ----

type mockNotifier struct {
	mu   sync.Mutex
	err  error
	to   []string
	sent []models.PaymentConfirmation
}

func (m *mockNotifier) PaymentConfirmed(_ context.Context, to string, c models.PaymentConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.sent = append(m.sent, c)
	return m.err
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// ---- mock SNS publisher ----

type mockSNS struct {
	mu         sync.Mutex
	publishErr error
	events     []string
}

func (m *mockSNS) Publish(_ context.Context, _, eventType string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	return m.publishErr
}

// ---- failing store ----

// failingStore fails every Commit from the failFrom-th call on (1-based).
type failingStore struct {
	*docstore.MemoryStore
	failFrom int
	commits  int
}

func (f *failingStore) Commit(ctx context.Context, b *docstore.Batch) error {
	f.commits++
	if f.failFrom > 0 && f.commits >= f.failFrom {
		return errors.New("store unavailable")
	}
	return f.MemoryStore.Commit(ctx, b)
}

// ---- context-aware store ----

// ctxStore fails once its context is done, like the networked backends.
type ctxStore struct {
	*docstore.MemoryStore
}

func (c *ctxStore) Get(ctx context.Context, path string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.MemoryStore.Get(ctx, path)
}

func (c *ctxStore) Set(ctx context.Context, path string, doc docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.MemoryStore.Set(ctx, path, doc)
}

func (c *ctxStore) Update(ctx context.Context, path string, fields docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.MemoryStore.Update(ctx, path, fields)
}

func (c *ctxStore) Commit(ctx context.Context, b *docstore.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.MemoryStore.Commit(ctx, b)
}

// ---- mock outbox repository ----

type mockOutboxRepo struct {
	mu         sync.Mutex
	enqueueErr error
	enqueued   []models.NotificationOutbox
	due        []models.NotificationOutbox
	claimErr   error
	sent       []uuid.UUID
	retried    map[uuid.UUID]time.Time
	failed     map[uuid.UUID]string
}

func newMockOutboxRepo() *mockOutboxRepo {
	return &mockOutboxRepo{retried: map[uuid.UUID]time.Time{}, failed: map[uuid.UUID]string{}}
}

func (m *mockOutboxRepo) Enqueue(_ context.Context, n *models.NotificationOutbox) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.enqueued = append(m.enqueued, *n)
	return nil
}

func (m *mockOutboxRepo) ClaimDue(_ context.Context, _ time.Time, limit int, _ time.Duration) ([]models.NotificationOutbox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	rows := m.due
	m.due = nil
	return rows, nil
}

func (m *mockOutboxRepo) MarkSent(_ context.Context, id uuid.UUID, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, id)
	return nil
}

func (m *mockOutboxRepo) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockOutboxRepo) MarkRetry(_ context.Context, id uuid.UUID, _ string, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retried[id] = next
	return nil
}

func (m *mockOutboxRepo) MarkFailed(_ context.Context, id uuid.UUID, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id] = lastErr
	return nil
}

func (m *mockOutboxRepo) List(_ context.Context, _ models.OutboxFilter) ([]models.NotificationOutbox, int64, error) {
	return m.enqueued, int64(len(m.enqueued)), nil
}

// ---- mock email sender ----

type mockSender struct {
	err   error
	calls int
	to    []string
	body  string
}

func (m *mockSender) SendEmail(_ context.Context, to, _, htmlBody string) (sender.SendResult, error) {
	m.calls++
	m.to = append(m.to, to)
	m.body = htmlBody
	if m.err != nil {
		return sender.SendResult{}, m.err
	}
	return sender.SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

// ---- helpers ----

type fixture struct {
	store    docstore.Store
	repo     *repository.Repository
	gateway  *mockGateway
	notifier *mockNotifier
	sns      *mockSNS
	svc      services.PaymentService
}

func newFixture(store docstore.Store, gw *mockGateway) *fixture {
	if store == nil {
		store = docstore.NewMemoryStore()
	}
	f := &fixture{
		store:    store,
		repo:     repository.New(store),
		gateway:  gw,
		notifier: &mockNotifier{},
		sns:      &mockSNS{},
	}
	f.svc = services.NewPaymentService(f.repo, gw, f.notifier, nil, f.sns,
		"arn:aws:sns:eu-west-1:000000000000:payments", awspkg.DisabledMetrics(), zap.NewNop())
	return f
}

func verifyRequest(amount int64) *models.VerifyRequest {
	return &models.VerifyRequest{
		Reference:     testReference,
		ProspectiveID: testProspectiveID,
		Email:         "a@b.com",
		Amount:        amount,
	}
}

func seedPending(f *fixture) {
	_, svcErr := f.svc.CreatePending(context.Background(), &models.CreatePendingRequest{
		Reference:     testReference,
		ProspectiveID: testProspectiveID,
		Email:         "a@b.com",
		Amount:        testAmount,
		PaymentType:   models.PaymentTypeApplicationFee,
	})
	if svcErr != nil {
		panic(svcErr)
	}
}
