package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// CalendarEvent is one VEVENT in an exported calendar.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Modified    time.Time
}

// ICSExporter renders events as an iCalendar document.
type ICSExporter struct {
	productID string
}

// NewICSExporter constructs an ICS exporter.
func NewICSExporter(productID string) *ICSExporter {
	if productID == "" {
		productID = "-//lms-scheduling-api//EN"
	}
	return &ICSExporter{productID: productID}
}

// Render serialises events. stamp is written as DTSTAMP on every event so
// repeated renders of the same schedule are byte-stable.
func (e *ICSExporter) Render(name string, events []CalendarEvent, stamp time.Time) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(e.productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		if ev.UID == "" {
			return nil, fmt.Errorf("ics event requires uid")
		}
		if !ev.End.After(ev.Start) {
			return nil, fmt.Errorf("ics event %s ends before it starts", ev.UID)
		}
		vevent := cal.AddEvent(ev.UID)
		vevent.SetDtStampTime(stamp.UTC())
		vevent.SetStartAt(ev.Start.UTC())
		vevent.SetEndAt(ev.End.UTC())
		vevent.SetSummary(ev.Summary)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if !ev.Modified.IsZero() {
			vevent.SetModifiedAt(ev.Modified.UTC())
		}
	}

	return []byte(cal.Serialize()), nil
}
