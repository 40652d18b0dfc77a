package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-scheduling-api/internal/dto"
	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/pkg/dateutil"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
)

type enrollmentReader interface {
	ListActiveCourseIDs(ctx context.Context, learnerID string) ([]string, error)
}

type occurrenceRangeReader interface {
	ListInRange(ctx context.Context, courseIDs []string, from, to time.Time) ([]models.ScheduledOccurrence, error)
	NextDateFrom(ctx context.Context, courseIDs []string, from time.Time) (time.Time, bool, error)
}

type scheduleMaterializer interface {
	GetSchedule(ctx context.Context, courseID string) (*dto.CourseScheduleResponse, bool, error)
}

// WeeklyViewService composes learner calendars from enrolled course schedules.
type WeeklyViewService struct {
	enrollments enrollmentReader
	occurrences occurrenceRangeReader
	schedules   scheduleMaterializer
	catalog     *SlotCatalog
	loc         *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

// NewWeeklyViewService wires the weekly view. A nil clock uses time.Now.
func NewWeeklyViewService(
	enrollments enrollmentReader,
	occurrences occurrenceRangeReader,
	schedules scheduleMaterializer,
	catalog *SlotCatalog,
	loc *time.Location,
	clock func() time.Time,
	logger *zap.Logger,
) *WeeklyViewService {
	if catalog == nil {
		catalog = DefaultSlotCatalog()
	}
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeeklyViewService{
		enrollments: enrollments,
		occurrences: occurrences,
		schedules:   schedules,
		catalog:     catalog,
		loc:         loc,
		now:         clock,
		logger:      logger,
	}
}

// WeeklyView returns seven days from weekStart. A zero weekStart selects the
// Monday of the current week.
func (s *WeeklyViewService) WeeklyView(ctx context.Context, learnerID string, weekStart time.Time) (*dto.WeeklyView, error) {
	now := s.now()
	if weekStart.IsZero() {
		today := dateutil.DateOf(now, s.loc)
		weekStart = dateutil.AddDays(today, -((int(today.Weekday()) + 6) % 7))
	}
	weekStart = dateutil.Normalize(weekStart)

	courseIDs, err := s.learnerCourses(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	occs, err := s.occurrences.ListInRange(ctx, courseIDs, weekStart, dateutil.AddDays(weekStart, 6))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly occurrences")
	}

	view := BuildWeeklyView(s.catalog, weekStart, occs, now)
	view.LearnerID = learnerID
	return &view, nil
}

// NextLearningDay returns the earliest date on or after today holding any of
// the learner's occurrences. Date is nil when nothing is scheduled.
func (s *WeeklyViewService) NextLearningDay(ctx context.Context, learnerID string) (*dto.NextLearningDay, error) {
	now := s.now()
	today := dateutil.DateOf(now, s.loc)

	courseIDs, err := s.learnerCourses(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	resp := &dto.NextLearningDay{LearnerID: learnerID, Occurrences: []dto.LearningDayEntry{}}

	next, ok, err := s.occurrences.NextDateFrom(ctx, courseIDs, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find next learning day")
	}
	if !ok {
		return resp, nil
	}
	occs, err := s.occurrences.ListInRange(ctx, courseIDs, next, next)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load next learning day")
	}
	SortOccurrences(occs)

	date := dateutil.Format(next)
	resp.Date = &date
	for _, occ := range occs {
		entry := dto.LearningDayEntry{Occurrence: occ, Accessible: IsAccessible(occ, now)}
		if slot, err := s.catalog.GetSlot(occ.SlotID); err == nil {
			entry.SlotLabel = slot.Label()
		}
		resp.Occurrences = append(resp.Occurrences, entry)
	}
	return resp, nil
}

// learnerCourses returns the learner's enrolled courses after making sure
// each has a materialised schedule. Courses that cannot be scheduled yet are
// skipped.
func (s *WeeklyViewService) learnerCourses(ctx context.Context, learnerID string) ([]string, error) {
	if learnerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "learner id is required")
	}
	ids, err := s.enrollments.ListActiveCourseIDs(ctx, learnerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	if s.schedules == nil {
		return ids, nil
	}
	ready := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, _, err := s.schedules.GetSchedule(ctx, id); err != nil {
			appErr := appErrors.FromError(err)
			if appErr.Status >= 500 {
				return nil, err
			}
			s.logger.Info("skipping unschedulable course", zap.String("course_id", id), zap.String("code", appErr.Code))
			continue
		}
		ready = append(ready, id)
	}
	return ready, nil
}

// BuildWeeklyView lays occurrences onto a seven day by catalog-slot grid.
// Cells take the first occurrence by course id; the rest are listed as
// overlapping.
func BuildWeeklyView(catalog *SlotCatalog, weekStart time.Time, occs []models.ScheduledOccurrence, now time.Time) dto.WeeklyView {
	sorted := make([]models.ScheduledOccurrence, len(occs))
	copy(sorted, occs)
	SortOccurrences(sorted)

	slots := catalog.ListSlots()
	view := dto.WeeklyView{
		WeekStart:   dateutil.Format(weekStart),
		GeneratedAt: now.UTC(),
		Days:        make([]dto.WeeklyDay, 0, 7),
	}
	for _, day := range dateutil.WeekDays(weekStart) {
		wd := dto.WeeklyDay{
			Date:    dateutil.Format(day),
			Weekday: day.Weekday().String(),
			Slots:   make([]dto.WeeklySlot, 0, len(slots)),
		}
		for _, slot := range slots {
			cell := dto.WeeklySlot{SlotID: slot.ID, Label: slot.Label()}
			if found := OccurrencesFor(day, slot.ID, sorted); len(found) > 0 {
				occ := found[0]
				cell.Occurrence = &occ
				cell.Accessible = IsAccessible(occ, now)
				cell.Draggable = IsDraggable(occ)
				if len(found) > 1 {
					cell.Overlapping = found[1:]
				}
			}
			wd.Slots = append(wd.Slots, cell)
		}
		view.Days = append(view.Days, wd)
	}
	return view
}
