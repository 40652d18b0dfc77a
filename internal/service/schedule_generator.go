package service

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/pkg/dateutil"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
)

// occurrenceNamespace seeds deterministic occurrence ids.
var occurrenceNamespace = uuid.MustParse("6f1c2a8e-3b7d-4d59-9a43-2e8f5c1b7d20")

// ScheduleGenerator expands a course and its weekly configuration into dated
// occurrences. It holds no mutable state.
type ScheduleGenerator struct {
	catalog *SlotCatalog
	loc     *time.Location
}

// NewScheduleGenerator builds a generator. Slot start times are interpreted
// in loc.
func NewScheduleGenerator(catalog *SlotCatalog, loc *time.Location) *ScheduleGenerator {
	if catalog == nil {
		catalog = DefaultSlotCatalog()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleGenerator{catalog: catalog, loc: loc}
}

// Location returns the location used to place slots on the clock.
func (g *ScheduleGenerator) Location() *time.Location {
	return g.loc
}

// ValidateConfig checks a scheduling configuration against the catalog.
func (g *ScheduleGenerator) ValidateConfig(cfg *models.SchedulingConfig) error {
	if cfg == nil {
		return appErrors.Clone(appErrors.ErrInvalidConfig, "course has no scheduling configuration")
	}
	if len(cfg.SelectedSlotIDs) == 0 {
		return appErrors.Clone(appErrors.ErrInvalidConfig, "selectedSlotIds must not be empty")
	}
	seen := make(map[int]struct{}, len(cfg.SelectedSlotIDs))
	for _, id := range cfg.SelectedSlotIDs {
		if _, dup := seen[id]; dup {
			return appErrors.Clone(appErrors.ErrInvalidConfig, fmt.Sprintf("slot %d selected more than once", id))
		}
		if !g.catalog.Has(id) {
			return appErrors.Clone(appErrors.ErrInvalidConfig, fmt.Sprintf("slot %d is not in the catalog", id))
		}
		seen[id] = struct{}{}
	}
	if cfg.TotalWeeks <= 0 {
		return appErrors.Clone(appErrors.ErrInvalidConfig, "totalWeeks must be at least 1")
	}
	if cfg.StartDate.IsZero() {
		return appErrors.Clone(appErrors.ErrInvalidConfig, "startDate is required")
	}
	if cfg.WeekDay < time.Sunday || cfg.WeekDay > time.Saturday {
		return appErrors.Clone(appErrors.ErrInvalidConfig, "weekDay is invalid")
	}
	return nil
}

// Generate returns totalWeeks x len(selectedSlotIds) occurrences ordered by
// week then slot priority. Lectures are consumed in order; once exhausted the
// remaining cells receive "Lecture {n}" placeholders where n is the cell's
// 1-based position in the grid.
func (g *ScheduleGenerator) Generate(course *models.Course, cfg *models.SchedulingConfig) ([]models.ScheduledOccurrence, error) {
	if course == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if err := g.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if !course.HasContent() {
		return nil, appErrors.Clone(appErrors.ErrIncompleteCourseData, "")
	}

	lectures := orderedLectures(course.Modules)
	firstDate := dateutil.NextWeekday(cfg.StartDate, cfg.WeekDay)
	out := make([]models.ScheduledOccurrence, 0, cfg.TotalWeeks*len(cfg.SelectedSlotIDs))

	for week := 0; week < cfg.TotalWeeks; week++ {
		date := dateutil.AddDays(firstDate, week*7)
		for _, slotID := range cfg.SelectedSlotIDs {
			slot, _ := g.catalog.GetSlot(slotID)
			n := len(out)

			var ref models.LectureRef
			if n < len(lectures) {
				lec := lectures[n]
				ref = models.LectureRef{
					LectureID:       lec.ID,
					Title:           lec.Title,
					ModuleName:      lec.ModuleName,
					IsDemoLecture:   lec.IsDemoLecture,
					DurationMinutes: lec.DurationMinutes,
				}
			} else {
				ref = models.LectureRef{
					Title:           "Lecture " + strconv.Itoa(n+1),
					IsPlaceholder:   true,
					DurationMinutes: int(slot.Duration() / time.Minute),
				}
			}

			out = append(out, models.ScheduledOccurrence{
				ID:            occurrenceID(course.ID, date, slotID, ref),
				CourseID:      course.ID,
				LectureRef:    ref,
				SlotID:        slotID,
				ScheduledDate: date,
				StartsAt:      dateutil.At(date, slot.StartOffset(), g.loc),
				EndsAt:        dateutil.At(date, slot.EndOffset(), g.loc),
				CourseFormat:  course.Format,
			})
		}
	}
	return out, nil
}

// Placement resolves the clock times of (date, slotID).
func (g *ScheduleGenerator) Placement(date time.Time, slotID int) (models.Placement, error) {
	slot, err := g.catalog.GetSlot(slotID)
	if err != nil {
		return models.Placement{}, err
	}
	date = dateutil.Normalize(date)
	return models.Placement{
		ScheduledDate: date,
		SlotID:        slotID,
		StartsAt:      dateutil.At(date, slot.StartOffset(), g.loc),
		EndsAt:        dateutil.At(date, slot.EndOffset(), g.loc),
	}, nil
}

// ReconcileRescheduled filters a freshly generated grid against the stored
// set: rescheduled occurrences are preserved, so any generated cell whose
// lecture is already held by one, or whose cell one occupies, is dropped.
func ReconcileRescheduled(fresh, stored []models.ScheduledOccurrence) (kept, insert []models.ScheduledOccurrence) {
	heldLectures := make(map[string]struct{})
	for _, occ := range stored {
		if !occ.IsRescheduled {
			continue
		}
		kept = append(kept, occ)
		heldLectures[lectureKey(occ.LectureRef)] = struct{}{}
	}
	for _, occ := range fresh {
		if _, held := heldLectures[lectureKey(occ.LectureRef)]; held {
			continue
		}
		if HasConflict(kept, occ.ScheduledDate, occ.SlotID, "") {
			continue
		}
		insert = append(insert, occ)
	}
	return kept, insert
}

// SortOccurrences orders occurrences by date, slot and course.
func SortOccurrences(items []models.ScheduledOccurrence) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.ScheduledDate.Equal(b.ScheduledDate) {
			return a.ScheduledDate.Before(b.ScheduledDate)
		}
		if a.SlotID != b.SlotID {
			return a.SlotID < b.SlotID
		}
		return a.CourseID < b.CourseID
	})
}

// orderedLectures flattens modules into (moduleIndex, lectureIndex) order and
// then moves demo lectures to the front, preserving relative order.
func orderedLectures(modules []models.Module) []models.Lecture {
	var lectures []models.Lecture
	for _, module := range modules {
		for _, lec := range module.Lectures {
			lec.ModuleIndex = module.Index
			if lec.ModuleName == "" {
				lec.ModuleName = module.Name
			}
			lectures = append(lectures, lec)
		}
	}
	sort.SliceStable(lectures, func(i, j int) bool {
		if lectures[i].ModuleIndex != lectures[j].ModuleIndex {
			return lectures[i].ModuleIndex < lectures[j].ModuleIndex
		}
		return lectures[i].LectureIndex < lectures[j].LectureIndex
	})
	sort.SliceStable(lectures, func(i, j int) bool {
		return lectures[i].IsDemoLecture && !lectures[j].IsDemoLecture
	})
	return lectures
}

func lectureKey(ref models.LectureRef) string {
	if ref.IsPlaceholder || ref.LectureID == "" {
		return "placeholder:" + ref.Title
	}
	return "lecture:" + ref.LectureID
}

func occurrenceID(courseID string, date time.Time, slotID int, ref models.LectureRef) string {
	name := fmt.Sprintf("%s|%s|%d|%s", courseID, dateutil.Format(date), slotID, lectureKey(ref))
	return uuid.NewSHA1(occurrenceNamespace, []byte(name)).String()
}
