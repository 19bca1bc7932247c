package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnsupportedPlatform  = errors.New("unsupported platform")
	ErrAllProvidersFailed   = errors.New("all providers failed")
	ErrDeliveryBlocked      = errors.New("delivery blocked")
	ErrDeliveryFailed       = errors.New("delivery failed")
	ErrSubmissionSuperseded = errors.New("submission superseded")
	ErrNoSubmission         = errors.New("no current submission")
	ErrAssetNotFound        = errors.New("asset not found")
	ErrDeliveryInFlight     = errors.New("delivery already in flight")
	ErrPayloadTooLarge      = errors.New("payload exceeds size limit")
	ErrNotApplicable        = errors.New("strategy not applicable")
	ErrNotMedia             = errors.New("response is not media")
)

// ProviderErrorKind classifies why a provider could not produce a descriptor
type ProviderErrorKind string

const (
	ProviderUnreachable ProviderErrorKind = "unreachable"
	ProviderMalformed   ProviderErrorKind = "malformed"
	ProviderEmptyResult ProviderErrorKind = "empty_result"
)

// ProviderError is returned by provider clients and consumed by the resolver
type ProviderError struct {
	Provider string
	Kind     ProviderErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a provider error of the given kind
func NewProviderError(provider string, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// UnsupportedPlatformError names the platform that matched (if any) and the
// platforms that currently have a provider chain
type UnsupportedPlatformError struct {
	Platform  Platform
	Supported []Platform
}

func (e *UnsupportedPlatformError) Error() string {
	if e.Platform == PlatformNone {
		return fmt.Sprintf("%s (supported: %s)", ErrUnsupportedPlatform, platformNames(e.Supported))
	}
	return fmt.Sprintf("%s: %s (supported: %s)", ErrUnsupportedPlatform, e.Platform, platformNames(e.Supported))
}

func (e *UnsupportedPlatformError) Is(target error) bool {
	return target == ErrUnsupportedPlatform
}

// IsRetryable reports whether re-submitting the same input may succeed
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAllProvidersFailed)
}

// UserMessage translates an error into text suitable for display
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "That doesn't look like a link. Paste a URL, or just a username for Instagram stories (e.g. sparky.drip)."
	case errors.Is(err, ErrUnsupportedPlatform):
		supported := SupportedPlatforms()
		var upErr *UnsupportedPlatformError
		if errors.As(err, &upErr) && len(upErr.Supported) > 0 {
			supported = upErr.Supported
		}
		return "This platform is not supported. Supported platforms: " + platformNames(supported) + "."
	case errors.Is(err, ErrAllProvidersFailed):
		return "We couldn't fetch this content right now. Check that it is public and try again in a moment."
	case errors.Is(err, ErrDeliveryFailed):
		return "The file link is invalid and cannot be downloaded."
	case errors.Is(err, ErrPayloadTooLarge):
		return "File too large. Maximum size is 500MB."
	case errors.Is(err, ErrNoSubmission):
		return "Submit a link first."
	case errors.Is(err, ErrAssetNotFound):
		return "That file is no longer part of the current result."
	case errors.Is(err, ErrDeliveryInFlight):
		return "This file is already downloading."
	case errors.Is(err, ErrSubmissionSuperseded):
		return "A newer request replaced this one."
	default:
		return "Something went wrong. Please try again."
	}
}

func platformNames(platforms []Platform) string {
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.DisplayName())
	}
	return strings.Join(names, ", ")
}
