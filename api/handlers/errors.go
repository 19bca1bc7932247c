package handlers

import (
	"errors"
	"net/http"

	"github.com/yourusername/nicedowns-go/internal/domain"
)

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error      string                  `json:"error"`
	Message    string                  `json:"message"`
	Retryable  bool                    `json:"retryable"`
	Submission *domain.Submission      `json:"submission,omitempty"`
	Attempt    *domain.DeliveryAttempt `json:"attempt,omitempty"`
}

// statusFor maps pipeline errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedPlatform):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrAllProvidersFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoSubmission),
		errors.Is(err, domain.ErrDeliveryInFlight),
		errors.Is(err, domain.ErrSubmissionSuperseded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDeliveryFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the machine readable error string
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoSubmission):
		return "no_submission"
	case errors.Is(err, domain.ErrAssetNotFound):
		return "asset_not_found"
	case errors.Is(err, domain.ErrDeliveryInFlight):
		return "delivery_in_flight"
	case errors.Is(err, domain.ErrSubmissionSuperseded):
		return "superseded"
	case errors.Is(err, domain.ErrDeliveryFailed):
		return "delivery_failed"
	default:
		return string(domain.KindOf(err))
	}
}

func newErrorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Error:     errorCode(err),
		Message:   domain.UserMessage(err),
		Retryable: domain.IsRetryable(err),
	}
}
