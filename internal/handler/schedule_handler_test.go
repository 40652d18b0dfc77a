package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-scheduling-api/internal/dto"
	internalmiddleware "github.com/noah-isme/lms-scheduling-api/internal/middleware"
	"github.com/noah-isme/lms-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
)

type schedulerMock struct {
	cacheHit    bool
	getErr      error
	regenerated []string
	queued      []string
	configs     []dto.SchedulingConfigRequest
}

func (m *schedulerMock) GetSchedule(ctx context.Context, courseID string) (*dto.CourseScheduleResponse, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	return &dto.CourseScheduleResponse{CourseID: courseID, Occurrences: []models.ScheduledOccurrence{{ID: "occ-1", CourseID: courseID}}}, m.cacheHit, nil
}

func (m *schedulerMock) Regenerate(ctx context.Context, courseID string) (*dto.RegenerateScheduleResponse, error) {
	m.regenerated = append(m.regenerated, courseID)
	return &dto.RegenerateScheduleResponse{CourseID: courseID, Inserted: 6}, nil
}

func (m *schedulerMock) RegenerateAsync(ctx context.Context, courseID string) (*dto.RegenerateJobResponse, error) {
	m.queued = append(m.queued, courseID)
	return &dto.RegenerateJobResponse{JobID: "job-1", CourseID: courseID}, nil
}

func (m *schedulerMock) UpdateSchedulingConfig(ctx context.Context, courseID string, req dto.SchedulingConfigRequest) (*dto.RegenerateScheduleResponse, error) {
	if len(req.SelectedSlotIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfig, "selectedSlotIds must not be empty")
	}
	m.configs = append(m.configs, req)
	return &dto.RegenerateScheduleResponse{CourseID: courseID, Inserted: req.TotalWeeks * len(req.SelectedSlotIDs)}, nil
}

func scheduleRouter(h *ScheduleHandler, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(internalmiddleware.WithResponseMeta())
	router.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(internalmiddleware.ContextUserKey, claims)
		}
		c.Next()
	})
	router.GET("/courses/:id/schedule", h.Get)
	router.POST("/courses/:id/schedule/regenerate", internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), h.Regenerate)
	router.PUT("/courses/:id/scheduling-config", internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleInstructor), h.UpdateConfig)
	return router
}

func TestScheduleHandlerGet(t *testing.T) {
	router := scheduleRouter(NewScheduleHandler(&schedulerMock{cacheHit: true}), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/courses/course-1/schedule", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, true, body.Meta["cache_hit"])
	var schedule dto.CourseScheduleResponse
	require.NoError(t, json.Unmarshal(body.Data, &schedule))
	assert.Equal(t, "course-1", schedule.CourseID)
	assert.Len(t, schedule.Occurrences, 1)
}

func TestScheduleHandlerGetIncompleteCourse(t *testing.T) {
	router := scheduleRouter(NewScheduleHandler(&schedulerMock{getErr: appErrors.Clone(appErrors.ErrIncompleteCourseData, "")}), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/courses/course-1/schedule", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INCOMPLETE_COURSE_DATA", decodeEnvelope(t, w).Error.Code)
}

func TestScheduleHandlerRegenerate(t *testing.T) {
	mockSvc := &schedulerMock{}
	router := scheduleRouter(NewScheduleHandler(mockSvc), &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/courses/course-1/schedule/regenerate", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"course-1"}, mockSvc.regenerated)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/courses/course-1/schedule/regenerate?async=true", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"course-1"}, mockSvc.queued)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/courses/course-1/schedule/regenerate?async=maybe", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerRegenerateForbiddenForLearners(t *testing.T) {
	mockSvc := &schedulerMock{}
	router := scheduleRouter(NewScheduleHandler(mockSvc), &models.JWTClaims{UserID: "learner-1", Role: models.RoleLearner})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/courses/course-1/schedule/regenerate", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, mockSvc.regenerated)
}

func TestScheduleHandlerUpdateConfig(t *testing.T) {
	mockSvc := &schedulerMock{}
	router := scheduleRouter(NewScheduleHandler(mockSvc), &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, "/courses/course-1/scheduling-config",
		strings.NewReader(`{"weekDay":3,"startDate":"2026-03-02","selectedSlotIds":[2,4],"totalWeeks":5}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mockSvc.configs, 1)
	assert.Equal(t, []int{2, 4}, mockSvc.configs[0].SelectedSlotIDs)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPut, "/courses/course-1/scheduling-config",
		strings.NewReader(`{"weekDay":3,"startDate":"2026-03-02","selectedSlotIds":[],"totalWeeks":5}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INVALID_CONFIG", decodeEnvelope(t, w).Error.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPut, "/courses/course-1/scheduling-config", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
