package domain

import "context"

// Provider is an adapter for one upstream metadata service
type Provider interface {
	// Name returns the provider identifier used in chain configuration
	Name() string

	// Supports reports whether the provider has an endpoint for the platform
	Supports(platform Platform) bool

	// FetchDescriptor queries the upstream once. Failures are *ProviderError.
	FetchDescriptor(ctx context.Context, platform Platform, rawInput string) (*MediaDescriptor, error)
}

// ProviderStatus is the result of a connectivity probe
type ProviderStatus struct {
	Provider  string `json:"provider"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Prober is implemented by providers that can check their own reachability
type Prober interface {
	Probe(ctx context.Context) ProviderStatus
}
