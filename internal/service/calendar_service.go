package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-scheduling-api/internal/dto"
	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/pkg/dateutil"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
	"github.com/noah-isme/lms-scheduling-api/pkg/export"
	"github.com/noah-isme/lms-scheduling-api/pkg/signing"
)

// FeedScope is the signing scope of calendar subscription tokens.
const FeedScope = "calendar"

// Supported weekly view export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

const (
	contentTypeCSV  = "text/csv"
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

type weeklyViewer interface {
	WeeklyView(ctx context.Context, learnerID string, weekStart time.Time) (*dto.WeeklyView, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type calendarRenderer interface {
	Render(name string, events []export.CalendarEvent, stamp time.Time) ([]byte, error)
}

type feedSigner interface {
	Issue(subject, scope string) (string, time.Time, error)
	Verify(token, scope string) (signing.FeedClaims, error)
}

// CalendarConfig tunes exported documents.
type CalendarConfig struct {
	APIPrefix string
	ProductID string
}

// CalendarRenderers groups the document renderers. Nil entries use the
// package defaults.
type CalendarRenderers struct {
	CSV  datasetRenderer
	PDF  datasetRenderer
	XLSX datasetRenderer
	ICS  calendarRenderer
}

// CalendarService renders learner schedules as downloadable documents and
// subscription feeds.
type CalendarService struct {
	views       weeklyViewer
	enrollments enrollmentReader
	schedules   scheduleMaterializer
	catalog     *SlotCatalog
	signer      feedSigner
	renderers   CalendarRenderers
	cfg         CalendarConfig
	now         func() time.Time
	logger      *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(
	views weeklyViewer,
	enrollments enrollmentReader,
	schedules scheduleMaterializer,
	catalog *SlotCatalog,
	signer feedSigner,
	renderers CalendarRenderers,
	cfg CalendarConfig,
	clock func() time.Time,
	logger *zap.Logger,
) *CalendarService {
	if catalog == nil {
		catalog = DefaultSlotCatalog()
	}
	if renderers.CSV == nil {
		renderers.CSV = export.NewCSVExporter()
	}
	if renderers.PDF == nil {
		renderers.PDF = export.NewPDFExporter()
	}
	if renderers.XLSX == nil {
		renderers.XLSX = export.NewXLSXExporter()
	}
	if renderers.ICS == nil {
		renderers.ICS = export.NewICSExporter(cfg.ProductID)
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{
		views:       views,
		enrollments: enrollments,
		schedules:   schedules,
		catalog:     catalog,
		signer:      signer,
		renderers:   renderers,
		cfg:         cfg,
		now:         clock,
		logger:      logger,
	}
}

// ExportWeeklyView renders the learner's week in the requested format.
func (s *CalendarService) ExportWeeklyView(ctx context.Context, learnerID string, weekStart time.Time, format string) (*dto.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	var (
		renderer    datasetRenderer
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		renderer, contentType = s.renderers.CSV, contentTypeCSV
	case ExportFormatPDF:
		renderer, contentType = s.renderers.PDF, contentTypePDF
	case ExportFormatXLSX:
		renderer, contentType = s.renderers.XLSX, contentTypeXLSX
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be one of csv, pdf, xlsx")
	}

	view, err := s.views.WeeklyView(ctx, learnerID, weekStart)
	if err != nil {
		return nil, err
	}
	data, err := renderer.Render(WeeklyViewDataset(*view))
	if err != nil {
		s.logger.Error("weekly view export failed", zap.String("learner_id", learnerID), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render weekly view")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("weekly-view-%s-%s.%s", learnerID, view.WeekStart, format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// WeeklyViewDataset flattens the occupied cells of a weekly view into rows.
func WeeklyViewDataset(view dto.WeeklyView) export.Dataset {
	data := export.Dataset{
		Title:   "Weekly schedule from " + view.WeekStart,
		Headers: []string{"Date", "Day", "Slot", "Course", "Lecture", "Accessible", "Overlapping"},
	}
	for _, day := range view.Days {
		for _, cell := range day.Slots {
			if cell.Occurrence == nil {
				continue
			}
			data.Rows = append(data.Rows, []string{
				day.Date,
				day.Weekday,
				cell.Label,
				cell.Occurrence.CourseID,
				cell.Occurrence.Title,
				strconv.FormatBool(cell.Accessible),
				strconv.Itoa(len(cell.Overlapping)),
			})
		}
	}
	return data
}

// LearnerCalendar renders every occurrence of the learner's enrolled courses
// as an iCalendar document.
func (s *CalendarService) LearnerCalendar(ctx context.Context, learnerID string) (*dto.ExportFile, error) {
	if learnerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "learner id is required")
	}
	ids, err := s.enrollments.ListActiveCourseIDs(ctx, learnerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	var occs []models.ScheduledOccurrence
	for _, id := range ids {
		schedule, _, err := s.schedules.GetSchedule(ctx, id)
		if err != nil {
			if appErrors.FromError(err).Status >= 500 {
				return nil, err
			}
			s.logger.Info("calendar skipping unschedulable course", zap.String("course_id", id), zap.Error(err))
			continue
		}
		occs = append(occs, schedule.Occurrences...)
	}
	SortOccurrences(occs)

	events := make([]export.CalendarEvent, 0, len(occs))
	for _, occ := range occs {
		event, ok := s.calendarEvent(occ)
		if !ok {
			continue
		}
		events = append(events, event)
	}

	data, err := s.renderers.ICS.Render("Lecture schedule", events, s.now())
	if err != nil {
		s.logger.Error("calendar render failed", zap.String("learner_id", learnerID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render calendar")
	}
	return &dto.ExportFile{Filename: "calendar.ics", ContentType: contentTypeICS, Data: data}, nil
}

func (s *CalendarService) calendarEvent(occ models.ScheduledOccurrence) (export.CalendarEvent, bool) {
	start, end := occ.StartsAt, occ.EndsAt
	if start.IsZero() || !end.After(start) {
		slot, err := s.catalog.GetSlot(occ.SlotID)
		if err != nil {
			return export.CalendarEvent{}, false
		}
		day := dateutil.Normalize(occ.ScheduledDate)
		start, end = day.Add(slot.StartOffset()), day.Add(slot.EndOffset())
	}
	description := "Course " + occ.CourseID
	if occ.ModuleName != "" {
		description += " / " + occ.ModuleName
	}
	return export.CalendarEvent{
		UID:         occ.ID,
		Summary:     occ.Title,
		Description: description,
		Start:       start,
		End:         end,
		Modified:    occ.UpdatedAt,
	}, true
}

// IssueFeedToken signs a calendar subscription link for the learner.
func (s *CalendarService) IssueFeedToken(learnerID string) (*dto.CalendarFeedResponse, error) {
	if learnerID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "learner id is required")
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "calendar feeds are not configured")
	}
	token, expiresAt, err := s.signer.Issue(learnerID, FeedScope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue feed token")
	}
	return &dto.CalendarFeedResponse{
		Token:     token,
		Path:      fmt.Sprintf("%s/feeds/%s/calendar.ics", strings.TrimSuffix(s.cfg.APIPrefix, "/"), token),
		ExpiresAt: expiresAt,
	}, nil
}

// FeedCalendar serves the calendar behind a signed subscription token.
func (s *CalendarService) FeedCalendar(ctx context.Context, token string) (*dto.ExportFile, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar feeds are not configured")
	}
	claims, err := s.signer.Verify(token, FeedScope)
	if err != nil {
		if errors.Is(err, signing.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "feed link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid feed link")
	}
	return s.LearnerCalendar(ctx, claims.Subject)
}
