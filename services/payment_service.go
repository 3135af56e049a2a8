package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/lock"
	"github.com/Bames007/sauni/models"
	awspkg "github.com/Bames007/sauni/pkg/aws"
	"github.com/Bames007/sauni/providers"
	"github.com/Bames007/sauni/repository"
	"go.uber.org/zap"
)

// PaymentService defines the payment business logic.
type PaymentService interface {
	CreatePending(ctx context.Context, req *models.CreatePendingRequest) (string, *ServiceError)
	Verify(ctx context.Context, req *models.VerifyRequest) (*models.VerifyResult, *ServiceError)
	GetPayment(ctx context.Context, reference string) (*models.PaymentRecord, *ServiceError)
	WatchPayment(ctx context.Context, reference string) (<-chan *models.PaymentRecord, func(), *ServiceError)
	GetApplication(ctx context.Context, prospectiveID string) (docstore.Document, *ServiceError)
	ListStudentPayments(ctx context.Context, prospectiveID string) ([]models.PaymentRecord, *ServiceError)
}

type paymentServiceImpl struct {
	repo        *repository.Repository
	gateway     providers.PaymentGateway
	notifier    Notifier
	locker      lock.Locker
	snsClient   awspkg.SNSPublisher
	snsTopicArn string
	metrics     *awspkg.MetricsClient
	logger      *zap.Logger
	now         func() time.Time
	workTimeout time.Duration
}

// verifyWorkTimeout bounds one verification once its lock is held.
const verifyWorkTimeout = 45 * time.Second

// NewPaymentService creates a new PaymentService. A nil locker falls back
// to an in-process keyed mutex; a nil metrics client records nothing.
func NewPaymentService(
	repo *repository.Repository,
	gateway providers.PaymentGateway,
	notifier Notifier,
	locker lock.Locker,
	snsClient awspkg.SNSPublisher,
	snsTopicArn string,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) PaymentService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &paymentServiceImpl{
		repo:        repo,
		gateway:     gateway,
		notifier:    notifier,
		locker:      locker,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
		workTimeout: verifyWorkTimeout,
	}
}

func (s *paymentServiceImpl) GetPayment(ctx context.Context, reference string) (*models.PaymentRecord, *ServiceError) {
	if !docstore.ValidKey(reference) {
		return nil, badRequest(msgInvalidReference)
	}
	rec, err := s.repo.Payments.Get(ctx, reference)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "Payment not found"}
	}
	if err != nil {
		s.logger.Error("GetPayment failed", zap.String("reference", reference), zap.Error(err))
		return nil, internalError("Failed to load payment")
	}
	return rec, nil
}

func (s *paymentServiceImpl) WatchPayment(ctx context.Context, reference string) (<-chan *models.PaymentRecord, func(), *ServiceError) {
	if !docstore.ValidKey(reference) {
		return nil, nil, badRequest(msgInvalidReference)
	}
	updates, unsubscribe, err := s.repo.Payments.Watch(ctx, reference)
	if err != nil {
		s.logger.Error("WatchPayment failed", zap.String("reference", reference), zap.Error(err))
		return nil, nil, internalError("Failed to watch payment")
	}
	return updates, unsubscribe, nil
}

func (s *paymentServiceImpl) GetApplication(ctx context.Context, prospectiveID string) (docstore.Document, *ServiceError) {
	if !docstore.ValidKey(prospectiveID) {
		return nil, badRequest(msgInvalidProspective)
	}
	doc, err := s.repo.Applications.Get(ctx, prospectiveID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "Application not found"}
	}
	if err != nil {
		s.logger.Error("GetApplication failed", zap.String("prospective_id", prospectiveID), zap.Error(err))
		return nil, internalError("Failed to load application")
	}
	return doc, nil
}

func (s *paymentServiceImpl) ListStudentPayments(ctx context.Context, prospectiveID string) ([]models.PaymentRecord, *ServiceError) {
	if !docstore.ValidKey(prospectiveID) {
		return nil, badRequest(msgInvalidProspective)
	}
	records, err := s.repo.Payments.ListByStudent(ctx, prospectiveID)
	if err != nil {
		s.logger.Error("ListStudentPayments failed", zap.String("prospective_id", prospectiveID), zap.Error(err))
		return nil, internalError("Failed to list payments")
	}
	return records, nil
}

// publishEvent marshals an event and publishes it to SNS (non-fatal on error).
func (s *paymentServiceImpl) publishEvent(ctx context.Context, event models.PaymentEvent) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		s.logger.Debug("SNS not configured, skipping event publish", zap.String("event_type", event.EventType))
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal SNS event", zap.Error(err))
		return
	}
	if err := s.snsClient.Publish(ctx, s.snsTopicArn, event.EventType, b); err != nil {
		s.logger.Error("Failed to publish SNS event", zap.String("event_type", event.EventType), zap.Error(err))
		return
	}
	s.logger.Info("Published SNS event",
		zap.String("event_type", event.EventType),
		zap.String("reference", event.Reference),
	)
}

func (s *paymentServiceImpl) recordMetric(ctx context.Context, name string, dims map[string]string) {
	recordCount(ctx, s.metrics, s.logger, name, dims)
}

func recordCount(ctx context.Context, m *awspkg.MetricsClient, log *zap.Logger, name string, dims map[string]string) {
	if err := m.RecordCount(ctx, name, dims); err != nil {
		log.Warn("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

func recordLatency(ctx context.Context, m *awspkg.MetricsClient, log *zap.Logger, name string, d time.Duration) {
	if err := m.RecordLatency(ctx, name, d, nil); err != nil {
		log.Warn("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}
