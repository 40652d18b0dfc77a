package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
)

// EnrollmentRepository reads learner enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListActiveCourseIDs returns the ids of courses the learner is actively enrolled in.
func (r *EnrollmentRepository) ListActiveCourseIDs(ctx context.Context, learnerID string) ([]string, error) {
	const query = `SELECT course_id FROM enrollments WHERE learner_id = $1 AND status = $2 ORDER BY course_id ASC`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, learnerID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	return ids, nil
}

// IsEnrolled reports whether the learner holds an active enrollment in the course.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, learnerID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE learner_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, learnerID, courseID, models.EnrollmentStatusActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}
