package repository

import (
	"github.com/Bames007/sauni/docstore"
	"github.com/Bames007/sauni/models"
)

const (
	paymentsRoot = "payments"
	studentsRoot = "applications/students"
)

func PaymentPath(reference string) string {
	return docstore.Join(paymentsRoot, reference)
}

func ApplicationPath(prospectiveID string) string {
	return docstore.Join(studentsRoot, prospectiveID)
}

func StudentPaymentsPath(prospectiveID string) string {
	return docstore.Join(studentsRoot, prospectiveID, "payments")
}

func StudentPaymentPath(prospectiveID, reference string) string {
	return docstore.Join(StudentPaymentsPath(prospectiveID), reference)
}

func ApplicationFeePath(prospectiveID string) string {
	return StudentPaymentPath(prospectiveID, models.ApplicationFeeKey)
}
