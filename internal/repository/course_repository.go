package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/pkg/dateutil"
)

// CourseRepository reads course content and scheduling configuration.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

type schedulingConfigRow struct {
	CourseID        string        `db:"course_id"`
	WeekDay         int           `db:"week_day"`
	StartDate       time.Time     `db:"start_date"`
	SelectedSlotIDs pq.Int64Array `db:"selected_slot_ids"`
	TotalWeeks      int           `db:"total_weeks"`
}

// FindByID loads a course with its modules, lectures and scheduling
// configuration. Returns sql.ErrNoRows when the course does not exist.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const courseQuery = `SELECT id, title, format, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, courseQuery, id); err != nil {
		return nil, err
	}

	modules, err := r.listModules(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Modules = modules

	cfg, err := r.FindSchedulingConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	course.Scheduling = cfg

	return &course, nil
}

func (r *CourseRepository) listModules(ctx context.Context, courseID string) ([]models.Module, error) {
	const moduleQuery = `SELECT id, course_id, name, module_index FROM course_modules WHERE course_id = $1 ORDER BY module_index ASC`
	var modules []models.Module
	if err := r.db.SelectContext(ctx, &modules, moduleQuery, courseID); err != nil {
		return nil, fmt.Errorf("list course modules: %w", err)
	}
	if len(modules) == 0 {
		return modules, nil
	}

	const lectureQuery = `SELECT l.id, l.module_id, l.title, m.name AS module_name, m.module_index, l.lecture_index, l.is_demo_lecture, l.duration_minutes
FROM course_lectures l
JOIN course_modules m ON m.id = l.module_id
WHERE m.course_id = $1
ORDER BY m.module_index ASC, l.lecture_index ASC`
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, lectureQuery, courseID); err != nil {
		return nil, fmt.Errorf("list course lectures: %w", err)
	}

	byModule := make(map[string]int, len(modules))
	for i := range modules {
		byModule[modules[i].ID] = i
	}
	for _, lecture := range lectures {
		if idx, ok := byModule[lecture.ModuleID]; ok {
			modules[idx].Lectures = append(modules[idx].Lectures, lecture)
		}
	}
	return modules, nil
}

// FindSchedulingConfig returns the scheduling configuration of a course or nil
// when none is attached.
func (r *CourseRepository) FindSchedulingConfig(ctx context.Context, courseID string) (*models.SchedulingConfig, error) {
	const query = `SELECT course_id, week_day, start_date, selected_slot_ids, total_weeks FROM course_scheduling_configs WHERE course_id = $1`
	var rows []schedulingConfigRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("get scheduling config: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	slots := make([]int, len(row.SelectedSlotIDs))
	for i, id := range row.SelectedSlotIDs {
		slots[i] = int(id)
	}
	return &models.SchedulingConfig{
		CourseID:        row.CourseID,
		WeekDay:         time.Weekday(row.WeekDay),
		StartDate:       dateutil.Normalize(row.StartDate),
		SelectedSlotIDs: slots,
		TotalWeeks:      row.TotalWeeks,
	}, nil
}

// SaveSchedulingConfig upserts the scheduling configuration of a course.
func (r *CourseRepository) SaveSchedulingConfig(ctx context.Context, cfg models.SchedulingConfig) error {
	slots := make(pq.Int64Array, len(cfg.SelectedSlotIDs))
	for i, id := range cfg.SelectedSlotIDs {
		slots[i] = int64(id)
	}
	const query = `INSERT INTO course_scheduling_configs (course_id, week_day, start_date, selected_slot_ids, total_weeks)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (course_id) DO UPDATE
SET week_day = EXCLUDED.week_day,
    start_date = EXCLUDED.start_date,
    selected_slot_ids = EXCLUDED.selected_slot_ids,
    total_weeks = EXCLUDED.total_weeks`
	if _, err := r.db.ExecContext(ctx, query, cfg.CourseID, int(cfg.WeekDay), dateutil.Normalize(cfg.StartDate), slots, cfg.TotalWeeks); err != nil {
		return fmt.Errorf("save scheduling config: %w", err)
	}
	return nil
}
