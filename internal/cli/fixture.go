package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
	"github.com/noah-isme/lms-scheduling-api/pkg/dateutil"
)

// CourseFixture is the TOML description of a course used by preview.
type CourseFixture struct {
	Course     CourseSection     `toml:"course"`
	Scheduling SchedulingSection `toml:"scheduling"`
	Modules    []ModuleSection   `toml:"modules"`
}

// CourseSection holds course identity.
type CourseSection struct {
	ID     string `toml:"id"`
	Title  string `toml:"title"`
	Format string `toml:"format"` // "live" or "recorded"
}

// SchedulingSection mirrors models.SchedulingConfig.
type SchedulingSection struct {
	WeekDay         string `toml:"week_day"`   // e.g. "monday"
	StartDate       string `toml:"start_date"` // YYYY-MM-DD
	SelectedSlotIDs []int  `toml:"selected_slot_ids"`
	TotalWeeks      int    `toml:"total_weeks"`
}

// ModuleSection is one module and its lectures.
type ModuleSection struct {
	ID       string           `toml:"id"`
	Name     string           `toml:"name"`
	Index    int              `toml:"index"`
	Lectures []LectureSection `toml:"lectures"`
}

// LectureSection is one lecture of a module.
type LectureSection struct {
	ID              string `toml:"id"`
	Title           string `toml:"title"`
	Index           int    `toml:"index"`
	Demo            bool   `toml:"demo"`
	DurationMinutes int    `toml:"duration_minutes"`
}

// LoadCourseFixture reads and decodes a TOML course file.
func LoadCourseFixture(path string) (*models.Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading course file: %w", err)
	}
	return ParseCourseFixture(data)
}

// ParseCourseFixture decodes TOML course data into a course with its
// scheduling configuration attached.
func ParseCourseFixture(data []byte) (*models.Course, error) {
	var fx CourseFixture
	if err := toml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing course file: %w", err)
	}

	format := models.CourseFormat(strings.ToLower(fx.Course.Format))
	if !format.Valid() {
		return nil, fmt.Errorf("course format must be live or recorded, got %q", fx.Course.Format)
	}
	courseID := fx.Course.ID
	if courseID == "" {
		courseID = "preview"
	}

	weekDay, err := parseWeekday(fx.Scheduling.WeekDay)
	if err != nil {
		return nil, err
	}
	var startDate time.Time
	if fx.Scheduling.StartDate != "" {
		startDate, err = dateutil.ParseDate(fx.Scheduling.StartDate)
		if err != nil {
			return nil, fmt.Errorf("scheduling.start_date: %w", err)
		}
	}

	course := &models.Course{
		ID:     courseID,
		Title:  fx.Course.Title,
		Format: format,
		Scheduling: &models.SchedulingConfig{
			CourseID:        courseID,
			WeekDay:         weekDay,
			StartDate:       startDate,
			SelectedSlotIDs: fx.Scheduling.SelectedSlotIDs,
			TotalWeeks:      fx.Scheduling.TotalWeeks,
		},
	}
	for i, m := range fx.Modules {
		moduleID := m.ID
		if moduleID == "" {
			moduleID = fmt.Sprintf("%s-m%d", courseID, i+1)
		}
		module := models.Module{ID: moduleID, CourseID: courseID, Name: m.Name, Index: m.Index}
		for j, l := range m.Lectures {
			lectureID := l.ID
			if lectureID == "" {
				lectureID = fmt.Sprintf("%s-l%d", moduleID, j+1)
			}
			module.Lectures = append(module.Lectures, models.Lecture{
				ID:              lectureID,
				ModuleID:        moduleID,
				Title:           l.Title,
				ModuleName:      m.Name,
				ModuleIndex:     m.Index,
				LectureIndex:    l.Index,
				IsDemoLecture:   l.Demo,
				DurationMinutes: l.DurationMinutes,
			})
		}
		course.Modules = append(course.Modules, module)
	}
	return course, nil
}

func parseWeekday(raw string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("scheduling.week_day %q is not a day of the week", raw)
}
