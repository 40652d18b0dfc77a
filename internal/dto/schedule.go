package dto

import (
	"time"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
)

// CourseScheduleResponse lists every occurrence of a course.
type CourseScheduleResponse struct {
	CourseID    string                       `json:"courseId"`
	Generated   bool                         `json:"generated"`
	Occurrences []models.ScheduledOccurrence `json:"occurrences"`
}

// RegenerateScheduleResponse summarises a regeneration run.
type RegenerateScheduleResponse struct {
	CourseID    string                       `json:"courseId"`
	Preserved   int                          `json:"preserved"`
	Removed     int                          `json:"removed"`
	Inserted    int                          `json:"inserted"`
	Occurrences []models.ScheduledOccurrence `json:"occurrences"`
}

// RegenerateJobResponse is returned when regeneration is queued.
type RegenerateJobResponse struct {
	JobID    string `json:"jobId"`
	CourseID string `json:"courseId"`
}

// SchedulingConfigRequest replaces the weekly configuration of a course.
// WeekDay counts from Sunday (0) to Saturday (6).
type SchedulingConfigRequest struct {
	WeekDay         int    `json:"weekDay"`
	StartDate       string `json:"startDate"`
	SelectedSlotIDs []int  `json:"selectedSlotIds"`
	TotalWeeks      int    `json:"totalWeeks"`
}

// RescheduleRequest moves an occurrence to a new cell.
type RescheduleRequest struct {
	OccurrenceID  string          `json:"-"`
	TargetDate    string          `json:"targetDate" validate:"required,datetime=2006-01-02"`
	TargetSlotID  int             `json:"targetSlotId" validate:"required,min=1"`
	RequestedBy   string          `json:"-"`
	RequesterRole models.UserRole `json:"-"`
}

// RescheduleResult is the typed outcome of a reschedule request. Reason is
// empty on success.
type RescheduleResult struct {
	Success    bool                        `json:"success"`
	Occurrence *models.ScheduledOccurrence `json:"occurrence,omitempty"`
	Reason     models.RescheduleReason     `json:"reason,omitempty"`
	Message    string                      `json:"message,omitempty"`
}

// WeeklyView is a seven day grid of catalog slots.
type WeeklyView struct {
	LearnerID   string      `json:"learnerId"`
	WeekStart   string      `json:"weekStart"`
	GeneratedAt time.Time   `json:"generatedAt"`
	Days        []WeeklyDay `json:"days"`
}

// WeeklyDay holds every slot of one date.
type WeeklyDay struct {
	Date    string       `json:"date"`
	Weekday string       `json:"weekday"`
	Slots   []WeeklySlot `json:"slots"`
}

// WeeklySlot is one (day, slot) cell. Overlapping lists further occurrences
// booked into the same cell from other courses.
type WeeklySlot struct {
	SlotID      int                          `json:"slotId"`
	Label       string                       `json:"label"`
	Occurrence  *models.ScheduledOccurrence  `json:"occurrence"`
	Accessible  bool                         `json:"accessible"`
	Draggable   bool                         `json:"draggable"`
	Overlapping []models.ScheduledOccurrence `json:"overlapping,omitempty"`
}

// NextLearningDay lists the occurrences of the learner's next scheduled date.
type NextLearningDay struct {
	LearnerID   string             `json:"learnerId"`
	Date        *string            `json:"date"`
	Occurrences []LearningDayEntry `json:"occurrences"`
}

// LearningDayEntry pairs an occurrence with its lock state.
type LearningDayEntry struct {
	Occurrence models.ScheduledOccurrence `json:"occurrence"`
	SlotLabel  string                     `json:"slotLabel"`
	Accessible bool                       `json:"accessible"`
}

// ExportFile is a rendered document ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CalendarFeedResponse carries a signed subscription link.
type CalendarFeedResponse struct {
	Token     string    `json:"token"`
	Path      string    `json:"path"`
	ExpiresAt time.Time `json:"expiresAt"`
}
