package models

import "time"

// CourseFormat describes how a course is delivered.
type CourseFormat string

const (
	CourseFormatLive     CourseFormat = "live"
	CourseFormatRecorded CourseFormat = "recorded"
)

// Valid reports whether the format is a known delivery format.
func (f CourseFormat) Valid() bool {
	return f == CourseFormatLive || f == CourseFormatRecorded
}

// Course is the read-only view of a course needed for scheduling.
type Course struct {
	ID         string            `db:"id" json:"id"`
	Title      string            `db:"title" json:"title"`
	Format     CourseFormat      `db:"format" json:"format"`
	Modules    []Module          `db:"-" json:"modules"`
	Scheduling *SchedulingConfig `db:"-" json:"scheduling,omitempty"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// Module groups lectures of a course.
type Module struct {
	ID       string    `db:"id" json:"id"`
	CourseID string    `db:"course_id" json:"course_id"`
	Name     string    `db:"name" json:"name"`
	Index    int       `db:"module_index" json:"module_index"`
	Lectures []Lecture `db:"-" json:"lectures"`
}

// Lecture is a single lesson ordered within a module.
type Lecture struct {
	ID              string `db:"id" json:"id"`
	ModuleID        string `db:"module_id" json:"module_id"`
	Title           string `db:"title" json:"title"`
	ModuleName      string `db:"module_name" json:"module_name"`
	ModuleIndex     int    `db:"module_index" json:"module_index"`
	LectureIndex    int    `db:"lecture_index" json:"lecture_index"`
	IsDemoLecture   bool   `db:"is_demo_lecture" json:"is_demo_lecture"`
	DurationMinutes int    `db:"duration_minutes" json:"duration_minutes"`
}

// SchedulingConfig is the recurring weekly configuration attached to a course.
type SchedulingConfig struct {
	CourseID        string       `db:"course_id" json:"course_id"`
	WeekDay         time.Weekday `db:"week_day" json:"week_day"`
	StartDate       time.Time    `db:"start_date" json:"start_date"`
	SelectedSlotIDs []int        `db:"-" json:"selected_slot_ids"`
	TotalWeeks      int          `db:"total_weeks" json:"total_weeks"`
}

// HasSlot reports whether the slot id belongs to the selected set.
func (c *SchedulingConfig) HasSlot(slotID int) bool {
	if c == nil {
		return false
	}
	for _, id := range c.SelectedSlotIDs {
		if id == slotID {
			return true
		}
	}
	return false
}

// HasContent reports whether the course carries any modules or lectures.
func (c *Course) HasContent() bool {
	return len(c.Modules) > 0
}
