package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-scheduling-api/internal/dto"
	"github.com/noah-isme/lms-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
	"github.com/noah-isme/lms-scheduling-api/pkg/response"
)

type occurrenceRescheduler interface {
	Reschedule(ctx context.Context, req dto.RescheduleRequest) (*dto.RescheduleResult, error)
	Attempts(ctx context.Context, occurrenceID string, limit int) ([]models.RescheduleAttempt, error)
}

// rejectionStatus maps typed reschedule outcomes onto HTTP statuses.
var rejectionStatus = map[models.RescheduleReason]int{
	models.ReasonNotFound:           appErrors.ErrNotFound.Status,
	models.ReasonNotDraggable:       appErrors.ErrNotDraggable.Status,
	models.ReasonNoOp:               appErrors.ErrNoOp.Status,
	models.ReasonSlotConflict:       appErrors.ErrSlotConflict.Status,
	models.ReasonPersistenceFailure: appErrors.ErrPersistenceFailure.Status,
}

// RescheduleHandler exposes drag-and-drop rescheduling.
type RescheduleHandler struct {
	service occurrenceRescheduler
}

// NewRescheduleHandler constructs the handler.
func NewRescheduleHandler(svc occurrenceRescheduler) *RescheduleHandler {
	return &RescheduleHandler{service: svc}
}

// Reschedule godoc
// @Summary Move an occurrence to another day and slot
// @Description The body always carries the typed result. Rejections set success=false and reason to NotFound, NotDraggable, NoOp, SlotConflict or PersistenceFailure.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Occurrence ID"
// @Param payload body dto.RescheduleRequest true "Target cell"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /occurrences/{id}/reschedule [post]
func (h *RescheduleHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	req.OccurrenceID = c.Param("id")
	if claims := claimsFromContext(c); claims != nil {
		req.RequestedBy = claims.UserID
		req.RequesterRole = claims.Role
	}

	result, err := h.service.Reschedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		if mapped, ok := rejectionStatus[result.Reason]; ok {
			status = mapped
		}
	}
	response.JSON(c, status, result, nil)
}

// Attempts godoc
// @Summary List reschedule attempts of an occurrence
// @Tags Schedules
// @Produce json
// @Param id path string true "Occurrence ID"
// @Param limit query int false "Maximum entries (default 20)"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id}/reschedule-attempts [get]
func (h *RescheduleHandler) Attempts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be an integer"))
		return
	}
	attempts, err := h.service.Attempts(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempts, nil)
}
