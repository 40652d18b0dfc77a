package service

import (
	"time"

	"github.com/noah-isme/lms-scheduling-api/internal/models"
)

var mondayMarch2 = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func fixtureCourse(format models.CourseFormat, lectures int, demoFirst bool) *models.Course {
	module := models.Module{ID: "mod-1", CourseID: "course-1", Name: "Basics", Index: 0}
	for i := 0; i < lectures; i++ {
		module.Lectures = append(module.Lectures, models.Lecture{
			ID:              "lec-" + string(rune('a'+i)),
			ModuleID:        "mod-1",
			Title:           "Lesson " + string(rune('A'+i)),
			LectureIndex:    i,
			IsDemoLecture:   demoFirst && i == 0,
			DurationMinutes: 30,
		})
	}
	return &models.Course{
		ID:      "course-1",
		Title:   "Go 101",
		Format:  format,
		Modules: []models.Module{module},
		Scheduling: &models.SchedulingConfig{
			CourseID:        "course-1",
			WeekDay:         time.Monday,
			StartDate:       mondayMarch2,
			SelectedSlotIDs: []int{1, 3},
			TotalWeeks:      3,
		},
	}
}

func generateFixture(course *models.Course) []models.ScheduledOccurrence {
	occs, err := NewScheduleGenerator(nil, time.UTC).Generate(course, course.Scheduling)
	if err != nil {
		panic(err)
	}
	return occs
}
