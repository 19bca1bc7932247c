package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StrategyName identifies a delivery strategy
type StrategyName string

const (
	StrategyDirect       StrategyName = "direct"
	StrategyProxy        StrategyName = "proxy"
	StrategyHostSpecific StrategyName = "host_specific"
	StrategyAssisted     StrategyName = "assisted_manual"
)

// StrategyOutcome is the result of one strategy within an attempt
type StrategyOutcome string

const (
	OutcomeSuccess StrategyOutcome = "success"
	OutcomeBlocked StrategyOutcome = "blocked"
	OutcomeError   StrategyOutcome = "error"
	OutcomeSkipped StrategyOutcome = "skipped"
)

// OutcomeKind distinguishes automated saves from manual hand-offs
type OutcomeKind string

const (
	OutcomeAutomated      OutcomeKind = "automated"
	OutcomeAssistedManual OutcomeKind = "assisted_manual"
)

// DeliveryState is the final state of an attempt
type DeliveryState string

const (
	DeliveryRunning   DeliveryState = "running"
	DeliveryAutomated DeliveryState = "automated"
	DeliveryAssisted  DeliveryState = "assisted_manual"
	DeliveryFailed    DeliveryState = "failed"
)

// StrategyResult is what a strategy reports when it did not fail
type StrategyResult struct {
	Kind         OutcomeKind
	Caveat       string
	Instructions string
	SavedPath    string
	Bytes        int64
}

// DeliveryOutcome is what the delivery engine returns for one asset
type DeliveryOutcome struct {
	Kind         OutcomeKind  `json:"kind"`
	Strategy     StrategyName `json:"strategy"`
	Caveat       string       `json:"caveat,omitempty"`
	Instructions string       `json:"instructions,omitempty"`
	SavedPath    string       `json:"saved_path,omitempty"`
	Bytes        int64        `json:"bytes,omitempty"`
}

// IsAutomated checks if the payload reached disk without user action
func (o *DeliveryOutcome) IsAutomated() bool {
	return o != nil && o.Kind == OutcomeAutomated
}

// StrategyRecord is one entry of an attempt's strategy log
type StrategyRecord struct {
	Strategy StrategyName    `json:"strategy"`
	Outcome  StrategyOutcome `json:"outcome"`
	Detail   string          `json:"detail,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// DeliveryAttempt tracks the delivery of one asset
type DeliveryAttempt struct {
	ID             string           `json:"id" gorm:"primaryKey"`
	SubmissionID   string           `json:"submission_id" gorm:"index"`
	AssetID        string           `json:"asset_id" gorm:"index"`
	AssetURL       string           `json:"asset_url" gorm:"not null"`
	Filename       string           `json:"filename"`
	Manual         bool             `json:"manual,omitempty"`
	State          DeliveryState    `json:"state" gorm:"not null;index"`
	Strategies     []StrategyRecord `json:"strategies" gorm:"-"`
	StrategiesJSON string           `json:"-" gorm:"column:strategies;type:text"`
	Outcome        *DeliveryOutcome `json:"outcome,omitempty" gorm:"-"`
	OutcomeJSON    string           `json:"-" gorm:"column:outcome;type:text"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	StartedAt      time.Time        `json:"started_at" gorm:"autoCreateTime"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
}

// NewDeliveryAttempt creates a running attempt for an asset
func NewDeliveryAttempt(submissionID string, asset AssetVariant, filename string) *DeliveryAttempt {
	return &DeliveryAttempt{
		ID:           uuid.New().String(),
		SubmissionID: submissionID,
		AssetID:      asset.ID,
		AssetURL:     asset.URL,
		Filename:     filename,
		Manual:       asset.Manual,
		State:        DeliveryRunning,
		StartedAt:    time.Now(),
	}
}

// Record appends a strategy log entry
func (a *DeliveryAttempt) Record(strategy StrategyName, outcome StrategyOutcome, detail string, took time.Duration) {
	a.Strategies = append(a.Strategies, StrategyRecord{
		Strategy: strategy,
		Outcome:  outcome,
		Detail:   detail,
		Duration: took,
	})
}

// Finish sets the final state from the engine result
func (a *DeliveryAttempt) Finish(outcome *DeliveryOutcome, err error) {
	now := time.Now()
	a.FinishedAt = &now
	if err != nil {
		a.State = DeliveryFailed
		a.ErrorMessage = err.Error()
		return
	}
	a.Outcome = outcome
	if outcome.IsAutomated() {
		a.State = DeliveryAutomated
	} else {
		a.State = DeliveryAssisted
	}
}

// Asset is the strategy's view of what to deliver
type Asset struct {
	URL      string
	Host     string
	Platform Platform
	// Manual assets are links to a page, not to a payload
	Manual bool
}

// DeliveryStrategy is one step of the delivery cascade
type DeliveryStrategy interface {
	// Name returns the strategy identifier
	Name() StrategyName

	// Applicable reports whether the strategy should be tried for this asset
	Applicable(asset Asset) bool

	// Attempt tries to deliver the asset. Errors wrapping ErrDeliveryBlocked
	// are recorded as blocked, any other error as error.
	Attempt(ctx context.Context, asset Asset, filename string) (*StrategyResult, error)
}

// Saver persists a complete payload under the given filename
type Saver interface {
	Save(ctx context.Context, filename string, payload []byte) (string, error)
}

// Opener hands a URL to the user's browser
type Opener interface {
	Open(ctx context.Context, target string) error
}

// Notifier informs the user about delivery outcomes
type Notifier interface {
	NotifyDelivered(filename string, outcome *DeliveryOutcome)
	NotifyAssisted(filename string)
	NotifyDeliveryFailed(filename string, err error)
}
