package service

import (
	"fmt"
	"sort"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/lms-scheduling-api/pkg/errors"
)

// DefaultSlots is the daily grid: eleven contiguous 45 minute slots from 9:00 to 17:15.
var DefaultSlots = []models.TimeSlot{
	{ID: 1, StartTime: "09:00", EndTime: "09:45"},
	{ID: 2, StartTime: "09:45", EndTime: "10:30"},
	{ID: 3, StartTime: "10:30", EndTime: "11:15"},
	{ID: 4, StartTime: "11:15", EndTime: "12:00"},
	{ID: 5, StartTime: "12:00", EndTime: "12:45"},
	{ID: 6, StartTime: "12:45", EndTime: "13:30"},
	{ID: 7, StartTime: "13:30", EndTime: "14:15"},
	{ID: 8, StartTime: "14:15", EndTime: "15:00"},
	{ID: 9, StartTime: "15:00", EndTime: "15:45"},
	{ID: 10, StartTime: "15:45", EndTime: "16:30"},
	{ID: 11, StartTime: "16:30", EndTime: "17:15"},
}

// SlotCatalog is the immutable lookup table of daily time slots.
type SlotCatalog struct {
	slots []models.TimeSlot
	byID  map[int]models.TimeSlot
}

// NewSlotCatalog validates and indexes slots. Ids must be unique and
// positive and each slot must end after it starts.
func NewSlotCatalog(slots []models.TimeSlot) (*SlotCatalog, error) {
	if len(slots) == 0 {
		return nil, fmt.Errorf("slot catalog requires at least one slot")
	}
	ordered := make([]models.TimeSlot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	byID := make(map[int]models.TimeSlot, len(ordered))
	for _, slot := range ordered {
		if slot.ID <= 0 {
			return nil, fmt.Errorf("slot id must be positive, got %d", slot.ID)
		}
		if _, dup := byID[slot.ID]; dup {
			return nil, fmt.Errorf("duplicate slot id %d", slot.ID)
		}
		if slot.Duration() <= 0 {
			return nil, fmt.Errorf("slot %d must end after it starts", slot.ID)
		}
		byID[slot.ID] = slot
	}
	return &SlotCatalog{slots: ordered, byID: byID}, nil
}

// DefaultSlotCatalog returns the catalog built from DefaultSlots.
func DefaultSlotCatalog() *SlotCatalog {
	catalog, err := NewSlotCatalog(DefaultSlots)
	if err != nil {
		panic(err)
	}
	return catalog
}

// GetSlot returns the slot with the given id.
func (c *SlotCatalog) GetSlot(id int) (models.TimeSlot, error) {
	slot, ok := c.byID[id]
	if !ok {
		return models.TimeSlot{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("slot %d not found", id))
	}
	return slot, nil
}

// Has reports whether id is part of the catalog.
func (c *SlotCatalog) Has(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// ListSlots returns the slots ordered by id.
func (c *SlotCatalog) ListSlots() []models.TimeSlot {
	out := make([]models.TimeSlot, len(c.slots))
	copy(out, c.slots)
	return out
}
