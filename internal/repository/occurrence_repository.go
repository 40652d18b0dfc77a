package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/pkg/dateutil"
)

const occurrenceColumns = `id, course_id, lecture_id, lecture_title, module_name, is_demo_lecture, is_placeholder, duration_minutes,
slot_id, scheduled_date, starts_at, ends_at, is_rescheduled, course_format, created_at, updated_at`

// OccurrenceRepository persists scheduled lecture occurrences.
type OccurrenceRepository struct {
	db *sqlx.DB
}

// NewOccurrenceRepository constructs the repository.
func NewOccurrenceRepository(db *sqlx.DB) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

func (r *OccurrenceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByCourse returns the occurrences of a course ordered by date and slot.
func (r *OccurrenceRepository) ListByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]models.ScheduledOccurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM scheduled_occurrences WHERE course_id = $1 ORDER BY scheduled_date ASC, slot_id ASC`
	var items []models.ScheduledOccurrence
	if err := sqlx.SelectContext(ctx, r.exec(exec), &items, query, courseID); err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	return normalizeDates(items), nil
}

// ListInRange returns occurrences of the given courses whose date falls in
// [from, to], ordered by date, slot and course.
func (r *OccurrenceRepository) ListInRange(ctx context.Context, courseIDs []string, from, to time.Time) ([]models.ScheduledOccurrence, error) {
	if len(courseIDs) == 0 {
		return []models.ScheduledOccurrence{}, nil
	}
	query := `SELECT ` + occurrenceColumns + ` FROM scheduled_occurrences
WHERE course_id = ANY($1) AND scheduled_date BETWEEN $2 AND $3
ORDER BY scheduled_date ASC, slot_id ASC, course_id ASC`
	var items []models.ScheduledOccurrence
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(courseIDs), dateutil.Normalize(from), dateutil.Normalize(to)); err != nil {
		return nil, fmt.Errorf("list occurrences in range: %w", err)
	}
	return normalizeDates(items), nil
}

// NextDateFrom returns the earliest scheduled date on or after from across
// the given courses. The boolean is false when nothing is scheduled.
func (r *OccurrenceRepository) NextDateFrom(ctx context.Context, courseIDs []string, from time.Time) (time.Time, bool, error) {
	if len(courseIDs) == 0 {
		return time.Time{}, false, nil
	}
	const query = `SELECT MIN(scheduled_date) FROM scheduled_occurrences WHERE course_id = ANY($1) AND scheduled_date >= $2`
	var next sql.NullTime
	if err := r.db.GetContext(ctx, &next, query, pq.Array(courseIDs), dateutil.Normalize(from)); err != nil {
		return time.Time{}, false, fmt.Errorf("next scheduled date: %w", err)
	}
	if !next.Valid {
		return time.Time{}, false, nil
	}
	return dateutil.Normalize(next.Time), true, nil
}

// FindByID returns an occurrence by id.
func (r *OccurrenceRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ScheduledOccurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM scheduled_occurrences WHERE id = $1`
	var item models.ScheduledOccurrence
	if err := sqlx.GetContext(ctx, r.exec(exec), &item, query, id); err != nil {
		return nil, err
	}
	item.ScheduledDate = dateutil.Normalize(item.ScheduledDate)
	return &item, nil
}

// LockByID reads an occurrence with a row lock. Must run inside a transaction.
func (r *OccurrenceRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ScheduledOccurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM scheduled_occurrences WHERE id = $1 FOR UPDATE`
	var item models.ScheduledOccurrence
	if err := sqlx.GetContext(ctx, r.exec(exec), &item, query, id); err != nil {
		return nil, err
	}
	item.ScheduledDate = dateutil.Normalize(item.ScheduledDate)
	return &item, nil
}

// FindAtCell returns the occurrence of courseID at (date, slotID), skipping
// excludeID when set. Returns sql.ErrNoRows when the cell is free.
func (r *OccurrenceRepository) FindAtCell(ctx context.Context, exec sqlx.ExtContext, courseID string, date time.Time, slotID int, excludeID string) (*models.ScheduledOccurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM scheduled_occurrences
WHERE course_id = $1 AND scheduled_date = $2 AND slot_id = $3 AND id <> $4
LIMIT 1`
	var item models.ScheduledOccurrence
	if err := sqlx.GetContext(ctx, r.exec(exec), &item, query, courseID, dateutil.Normalize(date), slotID, excludeID); err != nil {
		return nil, err
	}
	item.ScheduledDate = dateutil.Normalize(item.ScheduledDate)
	return &item, nil
}

// InsertBatch inserts occurrences, skipping rows whose id or cell already
// exists. Returns the number of rows inserted.
func (r *OccurrenceRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, items []models.ScheduledOccurrence) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO scheduled_occurrences (id, course_id, lecture_id, lecture_title, module_name, is_demo_lecture, is_placeholder, duration_minutes,
    slot_id, scheduled_date, starts_at, ends_at, is_rescheduled, course_format, created_at, updated_at)
VALUES (:id, :course_id, :lecture_id, :lecture_title, :module_name, :is_demo_lecture, :is_placeholder, :duration_minutes,
    :slot_id, :scheduled_date, :starts_at, :ends_at, :is_rescheduled, :course_format, :created_at, :updated_at)
ON CONFLICT DO NOTHING`

	inserted := 0
	for i := range items {
		item := &items[i]
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = item.CreatedAt
		}
		item.ScheduledDate = dateutil.Normalize(item.ScheduledDate)
		res, err := sqlx.NamedExecContext(ctx, target, query, item)
		if err != nil {
			return inserted, fmt.Errorf("insert occurrence: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("check inserted occurrence rows: %w", err)
		}
		inserted += int(affected)
	}
	return inserted, nil
}

// UpdatePlacement moves an occurrence to its current placement provided it
// still sits at prev. Returns sql.ErrNoRows when the row moved concurrently.
func (r *OccurrenceRepository) UpdatePlacement(ctx context.Context, exec sqlx.ExtContext, item *models.ScheduledOccurrence, prev models.Placement) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE scheduled_occurrences
SET scheduled_date = $1, slot_id = $2, starts_at = $3, ends_at = $4, is_rescheduled = $5, updated_at = $6
WHERE id = $7 AND scheduled_date = $8 AND slot_id = $9`
	result, err := r.exec(exec).ExecContext(ctx, query,
		dateutil.Normalize(item.ScheduledDate), item.SlotID, item.StartsAt, item.EndsAt, item.IsRescheduled, item.UpdatedAt,
		item.ID, dateutil.Normalize(prev.ScheduledDate), prev.SlotID)
	if err != nil {
		return fmt.Errorf("update occurrence placement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated occurrence rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteGenerated removes the occurrences of a course that were never
// rescheduled. Returns the number of rows removed.
func (r *OccurrenceRepository) DeleteGenerated(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error) {
	const query = `DELETE FROM scheduled_occurrences WHERE course_id = $1 AND is_rescheduled = FALSE`
	result, err := r.exec(exec).ExecContext(ctx, query, courseID)
	if err != nil {
		return 0, fmt.Errorf("delete generated occurrences: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check deleted occurrence rows: %w", err)
	}
	return int(affected), nil
}

func normalizeDates(items []models.ScheduledOccurrence) []models.ScheduledOccurrence {
	if items == nil {
		return []models.ScheduledOccurrence{}
	}
	for i := range items {
		items[i].ScheduledDate = dateutil.Normalize(items[i].ScheduledDate)
	}
	return items
}
