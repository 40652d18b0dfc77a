package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-scheduling-api/internal/dto"
	internalmiddleware "github.com/noah-isme/lms-scheduling-api/internal/middleware"
	"github.com/noah-isme/lms-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
)

type reschedulerMock struct {
	captured dto.RescheduleRequest
	result   *dto.RescheduleResult
	err      error
}

func (m *reschedulerMock) Reschedule(ctx context.Context, req dto.RescheduleRequest) (*dto.RescheduleResult, error) {
	m.captured = req
	return m.result, m.err
}

func (m *reschedulerMock) Attempts(ctx context.Context, occurrenceID string, limit int) ([]models.RescheduleAttempt, error) {
	return []models.RescheduleAttempt{{ID: "a-1", OccurrenceID: occurrenceID}}, nil
}

type envelopeBody struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
	Meta  map[string]any   `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelopeBody {
	t.Helper()
	var body envelopeBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func rescheduleRequest(t *testing.T, h *RescheduleHandler, claims *models.JWTClaims, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	req, _ := http.NewRequest(http.MethodPost, "/occurrences/occ-1/reschedule", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "occ-1"}}
	if claims != nil {
		c.Set(internalmiddleware.ContextUserKey, claims)
	}
	h.Reschedule(c)
	return w
}

func TestRescheduleHandlerSuccess(t *testing.T) {
	mockSvc := &reschedulerMock{result: &dto.RescheduleResult{Success: true, Occurrence: &models.ScheduledOccurrence{ID: "occ-1", SlotID: 3}}}
	h := NewRescheduleHandler(mockSvc)

	w := rescheduleRequest(t, h, &models.JWTClaims{UserID: "learner-1", Role: models.RoleLearner}, `{"targetDate":"2026-03-03","targetSlotId":3}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "occ-1", mockSvc.captured.OccurrenceID)
	assert.Equal(t, "2026-03-03", mockSvc.captured.TargetDate)
	assert.Equal(t, 3, mockSvc.captured.TargetSlotID)
	assert.Equal(t, "learner-1", mockSvc.captured.RequestedBy)
	assert.Equal(t, models.RoleLearner, mockSvc.captured.RequesterRole)

	var result dto.RescheduleResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.True(t, result.Success)
}

func TestRescheduleHandlerRejectionStatuses(t *testing.T) {
	cases := map[models.RescheduleReason]int{
		models.ReasonNotFound:           http.StatusNotFound,
		models.ReasonNotDraggable:       http.StatusForbidden,
		models.ReasonNoOp:               http.StatusOK,
		models.ReasonSlotConflict:       http.StatusConflict,
		models.ReasonPersistenceFailure: http.StatusServiceUnavailable,
	}
	for reason, status := range cases {
		t.Run(string(reason), func(t *testing.T) {
			h := NewRescheduleHandler(&reschedulerMock{result: &dto.RescheduleResult{Success: false, Reason: reason}})
			w := rescheduleRequest(t, h, nil, `{"targetDate":"2026-03-03","targetSlotId":3}`)

			require.Equal(t, status, w.Code)
			var result dto.RescheduleResult
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
			assert.False(t, result.Success)
			assert.Equal(t, reason, result.Reason)
		})
	}
}

func TestRescheduleHandlerInvalidPayload(t *testing.T) {
	h := NewRescheduleHandler(&reschedulerMock{})
	w := rescheduleRequest(t, h, nil, `{"targetDate":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRescheduleHandlerServiceError(t *testing.T) {
	h := NewRescheduleHandler(&reschedulerMock{err: appErrors.Clone(appErrors.ErrValidation, "bad date")})
	w := rescheduleRequest(t, h, nil, `{"targetDate":"x","targetSlotId":3}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
}

func TestRescheduleAttemptsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRescheduleHandler(&reschedulerMock{})
	router := gin.New()
	router.GET("/occurrences/:id/reschedule-attempts", h.Attempts)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/occurrences/occ-9/reschedule-attempts?limit=5", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var attempts []models.RescheduleAttempt
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &attempts))
	require.Len(t, attempts, 1)
	assert.Equal(t, "occ-9", attempts[0].OccurrenceID)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/occurrences/occ-9/reschedule-attempts?limit=x", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRescheduleRouteRequiresKnownRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reschedulerMock{result: &dto.RescheduleResult{Success: true}}
	h := NewRescheduleHandler(mockSvc)
	var claims *models.JWTClaims
	router := gin.New()
	router.POST("/occurrences/:id/reschedule", func(c *gin.Context) {
		if claims != nil {
			c.Set(internalmiddleware.ContextUserKey, claims)
		}
	}, internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleInstructor, models.RoleLearner), h.Reschedule)

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/occurrences/occ-1/reschedule", bytes.NewReader([]byte(`{"targetDate":"2026-03-03","targetSlotId":3}`)))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, send().Code)

	claims = &models.JWTClaims{UserID: "guest-1", Role: models.UserRole("GUEST")}
	assert.Equal(t, http.StatusForbidden, send().Code)
	assert.Empty(t, mockSvc.captured.OccurrenceID)

	claims = &models.JWTClaims{UserID: "instructor-1", Role: models.RoleInstructor}
	require.Equal(t, http.StatusOK, send().Code)
	assert.Equal(t, models.RoleInstructor, mockSvc.captured.RequesterRole)
}

func TestRescheduleHandlerUnenrolledLearnerForbidden(t *testing.T) {
	h := NewRescheduleHandler(&reschedulerMock{err: appErrors.Clone(appErrors.ErrForbidden, "learner is not enrolled in this course")})
	w := rescheduleRequest(t, h, &models.JWTClaims{UserID: "learner-2", Role: models.RoleLearner}, `{"targetDate":"2026-03-03","targetSlotId":3}`)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, appErrors.ErrForbidden.Code, decodeEnvelope(t, w).Error.Code)
}
