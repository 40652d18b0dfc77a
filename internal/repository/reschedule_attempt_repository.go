package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
)

// RescheduleAttemptRepository stores the audit trail of reschedule requests.
type RescheduleAttemptRepository struct {
	db *sqlx.DB
}

// NewRescheduleAttemptRepository constructs the repository.
func NewRescheduleAttemptRepository(db *sqlx.DB) *RescheduleAttemptRepository {
	return &RescheduleAttemptRepository{db: db}
}

// Create records an attempt.
func (r *RescheduleAttemptRepository) Create(ctx context.Context, attempt *models.RescheduleAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reschedule_attempts (id, occurrence_id, course_id, requested_by, old_date, old_slot_id, new_date, new_slot_id, success, failure_reason, attempted_at)
VALUES (:id, :occurrence_id, :course_id, :requested_by, :old_date, :old_slot_id, :new_date, :new_slot_id, :success, :failure_reason, :attempted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("insert reschedule attempt: %w", err)
	}
	return nil
}

// ListByOccurrence returns the most recent attempts for an occurrence.
func (r *RescheduleAttemptRepository) ListByOccurrence(ctx context.Context, occurrenceID string, limit int) ([]models.RescheduleAttempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, occurrence_id, course_id, requested_by, old_date, old_slot_id, new_date, new_slot_id, success, failure_reason, attempted_at
FROM reschedule_attempts WHERE occurrence_id = $1 ORDER BY attempted_at DESC LIMIT $2`
	attempts := []models.RescheduleAttempt{}
	if err := r.db.SelectContext(ctx, &attempts, query, occurrenceID, limit); err != nil {
		return nil, fmt.Errorf("list reschedule attempts: %w", err)
	}
	return attempts, nil
}
