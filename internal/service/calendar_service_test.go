package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-scheduling-api/internal/dto"
	"github.com/noah-isme/lms-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
	"github.com/noah-isme/lms-scheduling-api/pkg/export"
	"github.com/noah-isme/lms-scheduling-api/pkg/signing"
)

// scheduleSourceStub serves GetSchedule straight from an occurrence store.
type scheduleSourceStub struct {
	store *occurrenceStoreStub
	errs  map[string]error
}

func (s scheduleSourceStub) GetSchedule(ctx context.Context, courseID string) (*dto.CourseScheduleResponse, bool, error) {
	if err := s.errs[courseID]; err != nil {
		return nil, false, err
	}
	occs, err := s.store.ListByCourse(ctx, nil, courseID)
	if err != nil {
		return nil, false, err
	}
	return &dto.CourseScheduleResponse{CourseID: courseID, Occurrences: occs}, false, nil
}

type failingRenderer struct{}

func (failingRenderer) Render(export.Dataset) ([]byte, error) { return nil, errors.New("boom") }

func newCalendarFixture(t *testing.T, now time.Time) (*CalendarService, *signing.FeedSigner) {
	t.Helper()
	course := fixtureCourse(models.CourseFormatRecorded, 3, false)
	store := newOccurrenceStoreStub(generateFixture(course)...)
	enrollments := enrollmentReaderStub{courses: map[string][]string{"learner-1": {"course-1", "draft"}}}
	schedules := scheduleSourceStub{store: store, errs: map[string]error{
		"draft": appErrors.Clone(appErrors.ErrInvalidConfig, "no config"),
	}}
	clock := fixedNow(now)
	views := NewWeeklyViewService(enrollments, store, schedules, nil, time.UTC, clock, nil)
	signer := signing.NewFeedSigner("feed-secret", time.Hour).WithClock(clock)
	svc := NewCalendarService(views, enrollments, schedules, nil, signer, CalendarRenderers{},
		CalendarConfig{APIPrefix: "/api/v1/"}, clock, nil)
	return svc, signer
}

func TestExportWeeklyViewCSV(t *testing.T) {
	svc, _ := newCalendarFixture(t, mondayMarch2)

	file, err := svc.ExportWeeklyView(context.Background(), "learner-1", mondayMarch2, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "weekly-view-learner-1-2026-03-02.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Day,Slot,Course,Lecture,Accessible,Overlapping", lines[0])
	assert.Equal(t, "2026-03-02,Monday,9:00 AM - 9:45 AM,course-1,Lesson A,true,0", lines[1])
	assert.Contains(t, lines[2], "10:30 AM - 11:15 AM")
}

func TestExportWeeklyViewFormats(t *testing.T) {
	svc, _ := newCalendarFixture(t, mondayMarch2)

	pdf, err := svc.ExportWeeklyView(context.Background(), "learner-1", mondayMarch2, "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Data, []byte("%PDF")))

	xlsx, err := svc.ExportWeeklyView(context.Background(), "learner-1", mondayMarch2, "xlsx")
	require.NoError(t, err)
	assert.Equal(t, contentTypeXLSX, xlsx.ContentType)
	assert.True(t, bytes.HasPrefix(xlsx.Data, []byte("PK")))

	_, err = svc.ExportWeeklyView(context.Background(), "learner-1", mondayMarch2, "docx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportWeeklyViewRenderFailure(t *testing.T) {
	store := newOccurrenceStoreStub()
	views := NewWeeklyViewService(enrollmentReaderStub{}, store, nil, nil, time.UTC, fixedNow(mondayMarch2), nil)
	svc := NewCalendarService(views, enrollmentReaderStub{}, nil, nil, nil,
		CalendarRenderers{CSV: failingRenderer{}}, CalendarConfig{}, nil, nil)

	_, err := svc.ExportWeeklyView(context.Background(), "learner-1", mondayMarch2, "csv")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestLearnerCalendarRendersEveryOccurrence(t *testing.T) {
	svc, _ := newCalendarFixture(t, mondayMarch2)

	file, err := svc.LearnerCalendar(context.Background(), "learner-1")
	require.NoError(t, err)
	assert.Equal(t, "calendar.ics", file.Filename)

	cal, err := ics.ParseCalendar(bytes.NewReader(file.Data))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 6)

	first := events[0]
	assert.Equal(t, "Lesson A", first.GetProperty(ics.ComponentPropertySummary).Value)
	start, err := first.GetStartAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), start.UTC())
	end, err := first.GetEndAt()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, end.Sub(start))
}

func TestLearnerCalendarFallsBackToCatalogTimes(t *testing.T) {
	occ := generateFixture(fixtureCourse(models.CourseFormatRecorded, 1, false))[0]
	occ.StartsAt, occ.EndsAt = time.Time{}, time.Time{}
	store := newOccurrenceStoreStub(occ)
	enrollments := enrollmentReaderStub{courses: map[string][]string{"learner-1": {"course-1"}}}
	svc := NewCalendarService(nil, enrollments, scheduleSourceStub{store: store}, nil, nil,
		CalendarRenderers{}, CalendarConfig{}, fixedNow(mondayMarch2), nil)

	file, err := svc.LearnerCalendar(context.Background(), "learner-1")
	require.NoError(t, err)
	cal, err := ics.ParseCalendar(bytes.NewReader(file.Data))
	require.NoError(t, err)
	require.Len(t, cal.Events(), 1)
	start, err := cal.Events()[0].GetStartAt()
	require.NoError(t, err)
	assert.Equal(t, 9, start.UTC().Hour())
}

func TestIssueAndServeFeed(t *testing.T) {
	svc, _ := newCalendarFixture(t, mondayMarch2)

	feed, err := svc.IssueFeedToken("learner-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/feeds/"+feed.Token+"/calendar.ics", feed.Path)
	assert.Equal(t, mondayMarch2.Add(time.Hour), feed.ExpiresAt)

	file, err := svc.FeedCalendar(context.Background(), feed.Token)
	require.NoError(t, err)
	assert.Contains(t, string(file.Data), "BEGIN:VCALENDAR")

	_, err = svc.FeedCalendar(context.Background(), feed.Token+"x")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.IssueFeedToken("")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestFeedCalendarExpired(t *testing.T) {
	svc, _ := newCalendarFixture(t, mondayMarch2)
	feed, err := svc.IssueFeedToken("learner-1")
	require.NoError(t, err)

	later, _ := newCalendarFixture(t, mondayMarch2.Add(2*time.Hour))
	_, err = later.FeedCalendar(context.Background(), feed.Token)
	require.Error(t, err)
	assert.Equal(t, "feed link expired", appErrors.FromError(err).Message)
}
