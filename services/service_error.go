package services

import "net/http"

// ServiceError is a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string { return e.Message }

func badRequest(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Message: msg}
}

func internalError(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusInternalServerError, Message: msg}
}

const (
	msgVerifyInternal     = "Internal server error during payment verification"
	msgVerifyInProgress   = "Payment verification already in progress"
	msgVerifyFailed       = "Payment verification failed"
	msgPaymentNotSuccess  = "Payment was not successful"
	msgVerifySuccess      = "Payment verified successfully"
	msgMissingFields      = "Missing required payment details"
	msgCreatePendingFail  = "Failed to create pending payment"
	msgInvalidReference   = "Invalid payment reference"
	msgInvalidProspective = "Invalid prospective ID"
)
