package services

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/Bames007/sauni/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const PaymentConfirmationSubject = "Payment Confirmation"

// Templates holds the parsed notification templates.
type Templates struct {
	paymentConfirmation *template.Template
}

func LoadTemplates() (*Templates, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/payment_confirmation.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse payment confirmation template: %w", err)
	}
	return &Templates{paymentConfirmation: tmpl}, nil
}

type paymentConfirmationView struct {
	ProspectiveID string
	Reference     string
	AmountNaira   string
	Date          string
}

// RenderPaymentConfirmation returns the HTML body for a confirmation email.
func (t *Templates) RenderPaymentConfirmation(c models.PaymentConfirmation) (string, error) {
	var buf bytes.Buffer
	err := t.paymentConfirmation.Execute(&buf, paymentConfirmationView{
		ProspectiveID: c.ProspectiveID,
		Reference:     c.Reference,
		AmountNaira:   c.AmountNaira,
		Date:          displayDate(c.PaidAt),
	})
	if err != nil {
		return "", fmt.Errorf("template render failed: %w", err)
	}
	return buf.String(), nil
}

func displayDate(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format("January 2, 2006 3:04 PM MST")
}
