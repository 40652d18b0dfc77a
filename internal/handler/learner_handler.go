package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-scheduling-api/internal/dto"
	"github.com/noah-isme/lms-scheduling-api/pkg/dateutil"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
	"github.com/noah-isme/lms-scheduling-api/pkg/response"
)

type learnerCalendar interface {
	WeeklyView(ctx context.Context, learnerID string, weekStart time.Time) (*dto.WeeklyView, error)
	NextLearningDay(ctx context.Context, learnerID string) (*dto.NextLearningDay, error)
}

type calendarExporter interface {
	ExportWeeklyView(ctx context.Context, learnerID string, weekStart time.Time, format string) (*dto.ExportFile, error)
	LearnerCalendar(ctx context.Context, learnerID string) (*dto.ExportFile, error)
	IssueFeedToken(learnerID string) (*dto.CalendarFeedResponse, error)
	FeedCalendar(ctx context.Context, token string) (*dto.ExportFile, error)
}

// LearnerHandler serves learner-facing calendar views.
type LearnerHandler struct {
	views    learnerCalendar
	exporter calendarExporter
}

// NewLearnerHandler constructs the handler.
func NewLearnerHandler(views learnerCalendar, exporter calendarExporter) *LearnerHandler {
	return &LearnerHandler{views: views, exporter: exporter}
}

// WeeklyView godoc
// @Summary Learner weekly calendar
// @Description Seven days of catalog slots starting at weekStart (defaults to the current week's Monday) with the occupying occurrence and its lock state.
// @Tags Learners
// @Produce json
// @Param id path string true "Learner ID"
// @Param weekStart query string false "Week start (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /learners/{id}/weekly-view [get]
func (h *LearnerHandler) WeeklyView(c *gin.Context) {
	weekStart, ok := parseWeekStart(c)
	if !ok {
		return
	}
	view, err := h.views.WeeklyView(c.Request.Context(), c.Param("id"), weekStart)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// NextLearningDay godoc
// @Summary Learner's next learning day
// @Tags Learners
// @Produce json
// @Param id path string true "Learner ID"
// @Success 200 {object} response.Envelope
// @Router /learners/{id}/next-learning-day [get]
func (h *LearnerHandler) NextLearningDay(c *gin.Context) {
	day, err := h.views.NextLearningDay(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day, nil)
}

// ExportWeeklyView godoc
// @Summary Download the weekly calendar
// @Tags Learners
// @Produce octet-stream
// @Param id path string true "Learner ID"
// @Param weekStart query string false "Week start (YYYY-MM-DD)"
// @Param format query string true "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /learners/{id}/weekly-view/export [get]
func (h *LearnerHandler) ExportWeeklyView(c *gin.Context) {
	weekStart, ok := parseWeekStart(c)
	if !ok {
		return
	}
	file, err := h.exporter.ExportWeeklyView(c.Request.Context(), c.Param("id"), weekStart, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Calendar godoc
// @Summary Download the learner's iCalendar
// @Tags Learners
// @Produce text/calendar
// @Param id path string true "Learner ID"
// @Success 200 {file} file
// @Router /learners/{id}/calendar.ics [get]
func (h *LearnerHandler) Calendar(c *gin.Context) {
	file, err := h.exporter.LearnerCalendar(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// IssueFeed godoc
// @Summary Create a calendar subscription link
// @Tags Learners
// @Produce json
// @Param id path string true "Learner ID"
// @Success 201 {object} response.Envelope
// @Router /learners/{id}/calendar-feed [post]
func (h *LearnerHandler) IssueFeed(c *gin.Context) {
	feed, err := h.exporter.IssueFeedToken(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, feed, nil)
}

// Feed godoc
// @Summary Subscribed iCalendar feed
// @Description Authenticated by the signed token in the path instead of a bearer token.
// @Tags Learners
// @Produce text/calendar
// @Param token path string true "Feed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /feeds/{token}/calendar.ics [get]
func (h *LearnerHandler) Feed(c *gin.Context) {
	file, err := h.exporter.FeedCalendar(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func parseWeekStart(c *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query("weekStart"))
	if raw == "" {
		return time.Time{}, true
	}
	weekStart, err := dateutil.ParseDate(raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "weekStart must be in YYYY-MM-DD format"))
		return time.Time{}, false
	}
	return weekStart, true
}
