package infrastructure

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yourusername/nicedowns-go/internal/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"moul.io/zapgorm2"
)

// SQLiteHistoryRepository implements HistoryRepository using SQLite
type SQLiteHistoryRepository struct {
	db *gorm.DB
}

// NewSQLiteHistoryRepository opens (and migrates) the history database.
// Queries are logged through zap at warn level and above.
func NewSQLiteHistoryRepository(dbPath string, log *zap.Logger) (*SQLiteHistoryRepository, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gormLogger := zapgorm2.New(log.Named("gorm"))
	gormLogger.IgnoreRecordNotFoundError = true

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormLogger.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Submission{}, &domain.DeliveryAttempt{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// SaveSubmission creates or updates a submission
func (r *SQLiteHistoryRepository) SaveSubmission(submission *domain.Submission) error {
	submission.DescriptorJSON = ""
	if submission.Descriptor != nil {
		data, err := json.Marshal(submission.Descriptor)
		if err != nil {
			return fmt.Errorf("failed to encode descriptor: %w", err)
		}
		submission.DescriptorJSON = string(data)
	}
	return r.db.Save(submission).Error
}

// FindSubmission finds a submission by ID. Returns nil if not found.
func (r *SQLiteHistoryRepository) FindSubmission(id string) (*domain.Submission, error) {
	var submission domain.Submission
	if err := r.db.First(&submission, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := decodeSubmission(&submission); err != nil {
		return nil, err
	}
	return &submission, nil
}

// LatestResolved returns the most recently resolved submission, or nil
func (r *SQLiteHistoryRepository) LatestResolved() (*domain.Submission, error) {
	var submission domain.Submission
	err := r.db.Where("status = ?", domain.SubmissionResolved).
		Order("resolved_at DESC").
		First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := decodeSubmission(&submission); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListSubmissions returns the newest submissions first. limit <= 0 means all.
func (r *SQLiteHistoryRepository) ListSubmissions(limit int) ([]*domain.Submission, error) {
	var submissions []*domain.Submission
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&submissions).Error; err != nil {
		return nil, err
	}
	for _, s := range submissions {
		if err := decodeSubmission(s); err != nil {
			return nil, err
		}
	}
	return submissions, nil
}

// SaveAttempt creates or updates a delivery attempt
func (r *SQLiteHistoryRepository) SaveAttempt(attempt *domain.DeliveryAttempt) error {
	strategies, err := json.Marshal(attempt.Strategies)
	if err != nil {
		return fmt.Errorf("failed to encode strategy log: %w", err)
	}
	attempt.StrategiesJSON = string(strategies)

	attempt.OutcomeJSON = ""
	if attempt.Outcome != nil {
		outcome, err := json.Marshal(attempt.Outcome)
		if err != nil {
			return fmt.Errorf("failed to encode outcome: %w", err)
		}
		attempt.OutcomeJSON = string(outcome)
	}
	return r.db.Save(attempt).Error
}

// ListAttempts returns the attempts of a submission, oldest first
func (r *SQLiteHistoryRepository) ListAttempts(submissionID string) ([]*domain.DeliveryAttempt, error) {
	var attempts []*domain.DeliveryAttempt
	err := r.db.Where("submission_id = ?", submissionID).
		Order("started_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	for _, a := range attempts {
		if a.StrategiesJSON != "" {
			if err := json.Unmarshal([]byte(a.StrategiesJSON), &a.Strategies); err != nil {
				return nil, fmt.Errorf("failed to decode strategy log of %s: %w", a.ID, err)
			}
		}
		if a.OutcomeJSON != "" {
			a.Outcome = &domain.DeliveryOutcome{}
			if err := json.Unmarshal([]byte(a.OutcomeJSON), a.Outcome); err != nil {
				return nil, fmt.Errorf("failed to decode outcome of %s: %w", a.ID, err)
			}
		}
	}
	return attempts, nil
}

// GetStats returns history statistics
func (r *SQLiteHistoryRepository) GetStats() (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{}

	if err := r.db.Model(&domain.Submission{}).Count(&stats.Submissions).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&domain.Submission{}).Where("degraded = ?", true).Count(&stats.Degraded).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.SubmissionStatus
		Count  int64
	}{}
	if err := r.db.Model(&domain.Submission{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}
	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.SubmissionResolved:
			stats.Resolved = sc.Count
		case domain.SubmissionFailed:
			stats.Failed = sc.Count
		}
	}

	stateCounts := []struct {
		State domain.DeliveryState
		Count int64
	}{}
	if err := r.db.Model(&domain.DeliveryAttempt{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&stateCounts).Error; err != nil {
		return nil, err
	}
	for _, sc := range stateCounts {
		switch sc.State {
		case domain.DeliveryAutomated:
			stats.Automated = sc.Count
		case domain.DeliveryAssisted:
			stats.Assisted = sc.Count
		}
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteHistoryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decodeSubmission(s *domain.Submission) error {
	if s.DescriptorJSON == "" {
		return nil
	}
	s.Descriptor = &domain.MediaDescriptor{}
	if err := json.Unmarshal([]byte(s.DescriptorJSON), s.Descriptor); err != nil {
		return fmt.Errorf("failed to decode descriptor of %s: %w", s.ID, err)
	}
	return nil
}
