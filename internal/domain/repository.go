package domain

// HistoryRepository persists submissions and delivery attempts
type HistoryRepository interface {
	// SaveSubmission creates or updates a submission
	SaveSubmission(submission *Submission) error

	// FindSubmission finds a submission by ID
	FindSubmission(id string) (*Submission, error)

	// LatestResolved returns the most recently resolved submission, or nil
	LatestResolved() (*Submission, error)

	// ListSubmissions returns the newest submissions first
	ListSubmissions(limit int) ([]*Submission, error)

	// SaveAttempt creates or updates a delivery attempt
	SaveAttempt(attempt *DeliveryAttempt) error

	// ListAttempts returns the attempts of a submission, oldest first
	ListAttempts(submissionID string) ([]*DeliveryAttempt, error)

	// GetStats returns aggregate counts
	GetStats() (*HistoryStats, error)
}

// DescriptorCache stores recent resolutions keyed by cleaned input
type DescriptorCache interface {
	Get(input string) (*Resolution, bool)
	Put(input string, resolution *Resolution) error
}

// HistoryStats represents history statistics
type HistoryStats struct {
	Submissions int64 `json:"submissions"`
	Resolved    int64 `json:"resolved"`
	Failed      int64 `json:"failed"`
	Degraded    int64 `json:"degraded"`
	Automated   int64 `json:"automated"`
	Assisted    int64 `json:"assisted_manual"`
}
