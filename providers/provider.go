package providers

import (
	"context"

	"github.com/Bames007/sauni/models"
)

// PaymentGateway is the payment provider integration the reconciler needs.
type PaymentGateway interface {
	// Verify looks up a transaction by reference. A gateway that answered
	// but rejected the lookup returns a response with Status false and a
	// nil error; transport and decoding failures return an error.
	Verify(ctx context.Context, reference string) (*models.VerifyResponse, error)

	// VerifyWebhookSignature checks a webhook body against its signature
	// header.
	VerifyWebhookSignature(body []byte, signature string) bool
}
