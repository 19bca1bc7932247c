package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus represents the lifecycle state of a submission
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionResolved SubmissionStatus = "resolved"
	SubmissionFailed   SubmissionStatus = "failed"
)

// ErrorKind is the machine readable error class shown alongside UserMessage
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindUnsupportedPlatform ErrorKind = "unsupported_platform"
	KindAllProvidersFailed  ErrorKind = "all_providers_failed"
	KindInternal            ErrorKind = "internal"
)

// Submission is the orchestrator's record of one user input
type Submission struct {
	ID             string           `json:"id" gorm:"primaryKey"`
	Input          string           `json:"input" gorm:"not null"`
	Platform       Platform         `json:"platform" gorm:"index"`
	Status         SubmissionStatus `json:"status" gorm:"not null;index"`
	Provider       string           `json:"provider,omitempty"`
	Degraded       bool             `json:"degraded"`
	Descriptor     *MediaDescriptor `json:"descriptor,omitempty" gorm:"-"`
	DescriptorJSON string           `json:"-" gorm:"column:descriptor;type:text"`
	ErrorKind      ErrorKind        `json:"error_kind,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	UserMessage    string           `json:"user_message,omitempty"`
	Retryable      bool             `json:"retryable"`
	CreatedAt      time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
	FailedAt       *time.Time       `json:"failed_at,omitempty"`
}

// NewSubmission creates a pending submission for the given input
func NewSubmission(input string) *Submission {
	now := time.Now()
	return &Submission{
		ID:        uuid.New().String(),
		Input:     input,
		Status:    SubmissionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkResolved stores the resolution and assigns asset ids
func (s *Submission) MarkResolved(res *Resolution) {
	for i := range res.Descriptor.Assets {
		if res.Descriptor.Assets[i].ID == "" {
			res.Descriptor.Assets[i].ID = uuid.New().String()
		}
	}
	s.Status = SubmissionResolved
	s.Platform = res.Platform
	s.Provider = res.Provider
	s.Degraded = res.Degraded
	s.Descriptor = res.Descriptor
	now := time.Now()
	s.ResolvedAt = &now
	s.UpdatedAt = now
}

// MarkFailed records a resolution failure
func (s *Submission) MarkFailed(err error) {
	s.Status = SubmissionFailed
	s.ErrorKind = KindOf(err)
	s.ErrorMessage = err.Error()
	s.UserMessage = UserMessage(err)
	s.Retryable = IsRetryable(err)
	now := time.Now()
	s.FailedAt = &now
	s.UpdatedAt = now
}

// IsResolved checks if the submission holds a descriptor
func (s *Submission) IsResolved() bool {
	return s.Status == SubmissionResolved && s.Descriptor != nil
}

// IsTerminal checks if the submission finished resolving
func (s *Submission) IsTerminal() bool {
	return s.Status == SubmissionResolved || s.Status == SubmissionFailed
}

// KindOf maps an error to its ErrorKind
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrUnsupportedPlatform):
		return KindUnsupportedPlatform
	case errors.Is(err, ErrAllProvidersFailed):
		return KindAllProvidersFailed
	default:
		return KindInternal
	}
}
