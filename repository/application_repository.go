package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/models"
)

// DocApplicationRepository implements ApplicationRepository on a
// docstore.Store.
type DocApplicationRepository struct {
	store docstore.Store
}

func NewApplicationRepository(store docstore.Store) *DocApplicationRepository {
	return &DocApplicationRepository{store: store}
}

func (r *DocApplicationRepository) Get(ctx context.Context, prospectiveID string) (docstore.Document, error) {
	doc, err := r.store.Get(ctx, ApplicationPath(prospectiveID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", prospectiveID, err)
	}
	return doc, nil
}

func (r *DocApplicationRepository) MarkPaid(ctx context.Context, paid models.PaidApplication) error {
	batch := docstore.NewBatch()
	addPaidApplication(batch, paid)
	if err := r.store.Commit(ctx, batch); err != nil {
		return fmt.Errorf("mark application %s paid: %w", paid.ProspectiveID, err)
	}
	return nil
}

func addPaidApplication(batch *docstore.Batch, paid models.PaidApplication) {
	naira := nairaValue(paid.AmountKobo)
	batch.Update(ApplicationPath(paid.ProspectiveID), docstore.Document{
		"paymentStatus":     models.ApplicationPaymentStatusPaid,
		"amountPaid":        naira,
		"paystackReference": paid.Reference,
		"paidAt":            paid.PaidAt,
		"updatedAt":         paid.Now,
	})
	batch.Update(ApplicationFeePath(paid.ProspectiveID), docstore.Document{
		"status":            models.ApplicationPaymentStatusPaid,
		"paidAt":            paid.PaidAt,
		"paystackReference": paid.Reference,
		"amount":            naira,
		"reference":         paid.Reference,
		"verifiedAt":        paid.Now,
	})
}

// nairaValue is the stored form of a naira amount: a plain JSON number.
func nairaValue(kobo int64) float64 {
	return models.KoboToNaira(kobo).Round(2).InexactFloat64()
}
