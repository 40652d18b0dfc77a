package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/internal/service"
	"github.com/noah-isme/lms-scheduling-api/pkg/dateutil"
)

var (
	colorHeader      = color.New(color.Bold)
	colorDemo        = color.New(color.FgYellow, color.Bold)
	colorPlaceholder = color.New(color.FgWhite, color.Faint)
	colorLive        = color.New(color.FgCyan)
	colorOK          = color.New(color.FgGreen)
)

// DisableColor turns off ANSI colors for all output.
func DisableColor() {
	color.NoColor = true
}

func formatOK(s string) string {
	return colorOK.Sprint(s)
}

// PrintSlots writes the slot catalog as a table.
func PrintSlots(w io.Writer, slots []models.TimeSlot) {
	fmt.Fprintf(w, "  %s\n", colorHeader.Sprint("ID  START  END    LABEL"))
	for _, slot := range slots {
		fmt.Fprintf(w, "  %-3d %-6s %-6s %s\n", slot.ID, slot.StartTime, slot.EndTime, slot.Label())
	}
}

// PrintPreview writes generated occurrences grouped by week.
func PrintPreview(w io.Writer, course *models.Course, occs []models.ScheduledOccurrence, catalog *service.SlotCatalog) {
	title := course.Title
	if title == "" {
		title = course.ID
	}
	format := string(course.Format)
	if course.Format == models.CourseFormatLive {
		format = colorLive.Sprint(format)
	}
	fmt.Fprintf(w, "\n  %s (%s)\n", colorHeader.Sprint(title), format)
	fmt.Fprintln(w, strings.Repeat("─", 72))

	perWeek := len(course.Scheduling.SelectedSlotIDs)
	placeholders, demos := 0, 0
	for i, occ := range occs {
		if perWeek > 0 && i%perWeek == 0 {
			fmt.Fprintf(w, "  %s\n", colorHeader.Sprintf("Week %d · %s %s", i/perWeek+1, occ.ScheduledDate.Weekday(), dateutil.Format(occ.ScheduledDate)))
		}
		label := fmt.Sprintf("slot %d", occ.SlotID)
		if slot, err := catalog.GetSlot(occ.SlotID); err == nil {
			label = slot.Label()
		}
		lecture := occ.Title
		switch {
		case occ.IsDemoLecture:
			demos++
			lecture = colorDemo.Sprint(lecture + " [demo]")
		case occ.IsPlaceholder:
			placeholders++
			lecture = colorPlaceholder.Sprint(lecture + " [placeholder]")
		}
		fmt.Fprintf(w, "    %-20s %s\n", label, lecture)
	}

	fmt.Fprintln(w, strings.Repeat("─", 72))
	fmt.Fprintf(w, "  %d occurrences, %d demo, %d placeholder\n", len(occs), demos, placeholders)
}
