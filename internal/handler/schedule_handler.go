package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-scheduling-api/internal/dto"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
	"github.com/noah-isme/lms-scheduling-api/pkg/response"
)

type courseScheduler interface {
	GetSchedule(ctx context.Context, courseID string) (*dto.CourseScheduleResponse, bool, error)
	Regenerate(ctx context.Context, courseID string) (*dto.RegenerateScheduleResponse, error)
	RegenerateAsync(ctx context.Context, courseID string) (*dto.RegenerateJobResponse, error)
	UpdateSchedulingConfig(ctx context.Context, courseID string, req dto.SchedulingConfigRequest) (*dto.RegenerateScheduleResponse, error)
}

// ScheduleHandler exposes course schedule endpoints.
type ScheduleHandler struct {
	service courseScheduler
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc courseScheduler) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Get godoc
// @Summary Get course schedule
// @Description Returns every scheduled occurrence of the course, generating and persisting the schedule on first access.
// @Tags Schedules
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/schedule [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, cacheHit, err := h.service.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil, responseMeta(c, cacheHit))
}

// Regenerate godoc
// @Summary Regenerate course schedule
// @Description Rebuilds generated occurrences from the course configuration. Rescheduled occurrences are preserved. Pass async=true to queue the run.
// @Tags Schedules
// @Produce json
// @Param id path string true "Course ID"
// @Param async query bool false "Queue regeneration"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /courses/{id}/schedule/regenerate [post]
func (h *ScheduleHandler) Regenerate(c *gin.Context) {
	courseID := c.Param("id")
	async, err := strconv.ParseBool(c.DefaultQuery("async", "false"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "async must be a boolean"))
		return
	}
	if async {
		job, err := h.service.RegenerateAsync(c.Request.Context(), courseID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, job)
		return
	}
	result, err := h.service.Regenerate(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UpdateConfig godoc
// @Summary Replace course scheduling configuration
// @Description Stores a new weekly configuration and regenerates the schedule. Rescheduled occurrences are preserved.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.SchedulingConfigRequest true "Scheduling configuration"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/scheduling-config [put]
func (h *ScheduleHandler) UpdateConfig(c *gin.Context) {
	var req dto.SchedulingConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	result, err := h.service.UpdateSchedulingConfig(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
