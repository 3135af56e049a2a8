package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/models"
)

var ErrNotFound = errors.New("record not found")

// PaymentRepository reads and writes payment records. Every write lands on
// both the global and the per-student copy in one batch.
type PaymentRepository interface {
	Get(ctx context.Context, reference string) (*models.PaymentRecord, error)
	Put(ctx context.Context, record *models.PaymentRecord) error
	Transition(ctx context.Context, reference, prospectiveID string, fields docstore.Document) error
	ListByStudent(ctx context.Context, prospectiveID string) ([]models.PaymentRecord, error)
	Watch(ctx context.Context, reference string) (<-chan *models.PaymentRecord, func(), error)
}

// ApplicationRepository reads applicant documents and records payment on
// them.
type ApplicationRepository interface {
	Get(ctx context.Context, prospectiveID string) (docstore.Document, error)
	MarkPaid(ctx context.Context, paid models.PaidApplication) error
}

// Repository bundles both repositories over one store and adds the
// cross-record success commit.
type Repository struct {
	Payments     PaymentRepository
	Applications ApplicationRepository
	store        docstore.Store
}

func New(store docstore.Store) *Repository {
	return &Repository{
		Payments:     &DocPaymentRepository{store: store},
		Applications: &DocApplicationRepository{store: store},
		store:        store,
	}
}

// CommitSuccess writes the success fields onto both payment copies and marks
// the application paid, all in one batch.
func (r *Repository) CommitSuccess(ctx context.Context, prospectiveID, reference string, paymentFields docstore.Document, paid models.PaidApplication) error {
	batch := docstore.NewBatch().
		Update(PaymentPath(reference), paymentFields).
		Update(StudentPaymentPath(prospectiveID, reference), paymentFields)
	addPaidApplication(batch, paid)

	if err := r.store.Commit(ctx, batch); err != nil {
		return fmt.Errorf("commit payment success %s: %w", reference, err)
	}
	return nil
}

// DocPaymentRepository implements PaymentRepository on a docstore.Store.
type DocPaymentRepository struct {
	store docstore.Store
}

func NewPaymentRepository(store docstore.Store) *DocPaymentRepository {
	return &DocPaymentRepository{store: store}
}

func (r *DocPaymentRepository) Get(ctx context.Context, reference string) (*models.PaymentRecord, error) {
	doc, err := r.store.Get(ctx, PaymentPath(reference))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", reference, err)
	}
	var rec models.PaymentRecord
	if err := docstore.Decode(doc, &rec); err != nil {
		return nil, fmt.Errorf("get payment %s: %w", reference, err)
	}
	return &rec, nil
}

func (r *DocPaymentRepository) Put(ctx context.Context, record *models.PaymentRecord) error {
	doc, err := docstore.Encode(record)
	if err != nil {
		return err
	}
	batch := docstore.NewBatch().
		Set(PaymentPath(record.Reference), doc).
		Set(StudentPaymentPath(record.ProspectiveID, record.Reference), doc)
	if err := r.store.Commit(ctx, batch); err != nil {
		return fmt.Errorf("put payment %s: %w", record.Reference, err)
	}
	return nil
}

func (r *DocPaymentRepository) Transition(ctx context.Context, reference, prospectiveID string, fields docstore.Document) error {
	batch := docstore.NewBatch().
		Update(PaymentPath(reference), fields).
		Update(StudentPaymentPath(prospectiveID, reference), fields)
	if err := r.store.Commit(ctx, batch); err != nil {
		return fmt.Errorf("transition payment %s: %w", reference, err)
	}
	return nil
}

// ListByStudent returns the student's payment records newest first. The
// application_fee summary that shares the collection is skipped.
func (r *DocPaymentRepository) ListByStudent(ctx context.Context, prospectiveID string) ([]models.PaymentRecord, error) {
	children, err := r.store.List(ctx, StudentPaymentsPath(prospectiveID))
	if err != nil {
		return nil, fmt.Errorf("list payments for %s: %w", prospectiveID, err)
	}

	records := make([]models.PaymentRecord, 0, len(children))
	for key, doc := range children {
		if key == models.ApplicationFeeKey {
			continue
		}
		var rec models.PaymentRecord
		if err := docstore.Decode(doc, &rec); err != nil {
			return nil, fmt.Errorf("list payments for %s: %w", prospectiveID, err)
		}
		if rec.Reference == "" {
			rec.Reference = key
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt > records[j].CreatedAt
		}
		return records[i].Reference < records[j].Reference
	})
	return records, nil
}

// Watch streams the global payment record. A nil value means the record
// does not exist yet.
func (r *DocPaymentRepository) Watch(ctx context.Context, reference string) (<-chan *models.PaymentRecord, func(), error) {
	events, unsubscribe, err := r.store.Subscribe(ctx, PaymentPath(reference))
	if err != nil {
		return nil, nil, fmt.Errorf("watch payment %s: %w", reference, err)
	}

	out := make(chan *models.PaymentRecord, 1)
	go func() {
		defer close(out)
		for ev := range events {
			var rec *models.PaymentRecord
			if ev.Exists {
				rec = &models.PaymentRecord{}
				if err := docstore.Decode(ev.Doc, rec); err != nil {
					continue
				}
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				unsubscribe()
				return
			}
		}
	}()
	return out, unsubscribe, nil
}
