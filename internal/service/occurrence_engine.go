package service

import (
	"time"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
)

// Messages shown when a drag is refused by policy.
const (
	msgLiveNotDraggable = "Live courses cannot be rescheduled"
	msgDemoNotDraggable = "Demo lectures cannot be rescheduled"
)

// OccurrencesFor returns the occurrences sitting at (day, slotID). Dates
// match by calendar day.
func OccurrencesFor(day time.Time, slotID int, set []models.ScheduledOccurrence) []models.ScheduledOccurrence {
	var out []models.ScheduledOccurrence
	for i := range set {
		if set[i].SameCell(day, slotID) {
			out = append(out, set[i])
		}
	}
	return out
}

// HasConflict reports whether any occurrence other than excludeID occupies
// (date, slotID).
func HasConflict(set []models.ScheduledOccurrence, date time.Time, slotID int, excludeID string) bool {
	for i := range set {
		if set[i].ID != excludeID && set[i].SameCell(date, slotID) {
			return true
		}
	}
	return false
}

// IsAccessible reports whether the occurrence is unlocked at now. Recorded
// lectures are always open; live lectures open once their slot starts.
func IsAccessible(occ models.ScheduledOccurrence, now time.Time) bool {
	if occ.CourseFormat != models.CourseFormatLive {
		return true
	}
	opensAt := occ.StartsAt
	if opensAt.IsZero() {
		opensAt = occ.ScheduledDate
	}
	return !now.Before(opensAt)
}

// IsDraggable reports whether the occurrence may be rescheduled.
func IsDraggable(occ models.ScheduledOccurrence) bool {
	return occ.CourseFormat == models.CourseFormatRecorded && !occ.IsDemoLecture
}

// dragRejection explains why IsDraggable is false; empty when draggable.
func dragRejection(occ models.ScheduledOccurrence) string {
	switch {
	case occ.CourseFormat != models.CourseFormatRecorded:
		return msgLiveNotDraggable
	case occ.IsDemoLecture:
		return msgDemoNotDraggable
	default:
		return ""
	}
}
