package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
	"github.com/noah-isme/lms-scheduling-api/pkg/response"
)

type slotResponse struct {
	models.TimeSlot
	Label string `json:"label"`
}

// SlotHandler serves the daily slot catalog.
type SlotHandler struct {
	catalog *service.SlotCatalog
}

// NewSlotHandler constructs the handler.
func NewSlotHandler(catalog *service.SlotCatalog) *SlotHandler {
	if catalog == nil {
		catalog = service.DefaultSlotCatalog()
	}
	return &SlotHandler{catalog: catalog}
}

// List godoc
// @Summary List daily time slots
// @Tags Slots
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /slots [get]
func (h *SlotHandler) List(c *gin.Context) {
	slots := h.catalog.ListSlots()
	out := make([]slotResponse, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slotResponse{TimeSlot: slot, Label: slot.Label()})
	}
	response.JSON(c, http.StatusOK, out, nil)
}

// Get godoc
// @Summary Get a time slot
// @Tags Slots
// @Produce json
// @Param id path int true "Slot ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /slots/{id} [get]
func (h *SlotHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "slot id must be an integer"))
		return
	}
	slot, err := h.catalog.GetSlot(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slotResponse{TimeSlot: slot, Label: slot.Label()}, nil)
}
