package models

import (
	"time"

	"github.com/noah-isme/lms-scheduling-api/pkg/dateutil"
)

// LectureRef is the lecture snapshot carried by an occurrence.
type LectureRef struct {
	LectureID       string `db:"lecture_id" json:"lecture_id,omitempty"`
	Title           string `db:"lecture_title" json:"title"`
	ModuleName      string `db:"module_name" json:"module_name,omitempty"`
	IsDemoLecture   bool   `db:"is_demo_lecture" json:"is_demo_lecture"`
	IsPlaceholder   bool   `db:"is_placeholder" json:"is_placeholder"`
	DurationMinutes int    `db:"duration_minutes" json:"duration_minutes,omitempty"`
}

// ScheduledOccurrence is one dated placement of a lecture into a slot.
type ScheduledOccurrence struct {
	ID            string       `db:"id" json:"id"`
	CourseID      string       `db:"course_id" json:"course_id"`
	LectureRef    `json:"lecture"`
	SlotID        int          `db:"slot_id" json:"slot_id"`
	ScheduledDate time.Time    `db:"scheduled_date" json:"scheduled_date"`
	StartsAt      time.Time    `db:"starts_at" json:"starts_at"`
	EndsAt        time.Time    `db:"ends_at" json:"ends_at"`
	IsRescheduled bool         `db:"is_rescheduled" json:"is_rescheduled"`
	CourseFormat  CourseFormat `db:"course_format" json:"course_format"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// SameCell reports whether the occurrence sits at the given date and slot.
// Dates are compared by calendar day.
func (o *ScheduledOccurrence) SameCell(date time.Time, slotID int) bool {
	return o.SlotID == slotID && dateutil.SameDay(o.ScheduledDate, date)
}

// Placement is a (date, slot) cell on the calendar grid.
type Placement struct {
	ScheduledDate time.Time `json:"scheduled_date"`
	SlotID        int       `json:"slot_id"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
}

// Placement returns the occurrence's current cell.
func (o *ScheduledOccurrence) Placement() Placement {
	return Placement{ScheduledDate: o.ScheduledDate, SlotID: o.SlotID, StartsAt: o.StartsAt, EndsAt: o.EndsAt}
}

// MoveTo applies a new placement and marks the occurrence as rescheduled.
func (o *ScheduledOccurrence) MoveTo(p Placement) {
	o.ScheduledDate = p.ScheduledDate
	o.SlotID = p.SlotID
	o.StartsAt = p.StartsAt
	o.EndsAt = p.EndsAt
	o.IsRescheduled = true
}

// RescheduleAttempt records the outcome of a drag-and-drop move for auditing.
type RescheduleAttempt struct {
	ID            string     `db:"id" json:"id"`
	OccurrenceID  string     `db:"occurrence_id" json:"occurrence_id"`
	CourseID      string     `db:"course_id" json:"course_id"`
	RequestedBy   string     `db:"requested_by" json:"requested_by,omitempty"`
	OldDate       time.Time  `db:"old_date" json:"old_date"`
	OldSlotID     int        `db:"old_slot_id" json:"old_slot_id"`
	NewDate       *time.Time `db:"new_date" json:"new_date,omitempty"`
	NewSlotID     *int       `db:"new_slot_id" json:"new_slot_id,omitempty"`
	Success       bool       `db:"success" json:"success"`
	FailureReason string     `db:"failure_reason" json:"failure_reason,omitempty"`
	AttemptedAt   time.Time  `db:"attempted_at" json:"attempted_at"`
}

// RescheduleReason names why a reschedule request was rejected.
type RescheduleReason string

// Rejection reasons reported to callers.
const (
	ReasonNotFound           RescheduleReason = "NotFound"
	ReasonNotDraggable       RescheduleReason = "NotDraggable"
	ReasonNoOp               RescheduleReason = "NoOp"
	ReasonSlotConflict       RescheduleReason = "SlotConflict"
	ReasonPersistenceFailure RescheduleReason = "PersistenceFailure"
)
