package exam

import (
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	duplicateSubjectTag  = "duplicate_subject"
	duplicateSubjectText = "subject appears more than once"

	timeOrderTag  = "time_order"
	timeOrderText = "end time must be after start time"
)

// InitValidators registers the exam validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(scheduleStructValidation, NewSchedule{})
	validate.RegisterStructValidation(marksStructValidation, NewMarks{})
	core.RegisterCustomTranslation(validate, translator, duplicateSubjectTag, duplicateSubjectText)
	core.RegisterCustomTranslation(validate, translator, timeOrderTag, timeOrderText)
}

// Custom Validators

// scheduleStructValidation checks that subjects are unique and that every exam ends after it starts.
func scheduleStructValidation(sl validator.StructLevel) {
	ns, ok := sl.Current().Interface().(NewSchedule)
	if !ok {
		return
	}

	seen := make(map[string]bool, len(ns.Subjects))
	for i, e := range ns.Subjects {
		if seen[e.SubjectName] {
			sl.ReportError(e.SubjectName, fmt.Sprintf("subjects[%d].subject_name", i), fmt.Sprintf("Subjects[%d].SubjectName", i), duplicateSubjectTag, "")
		}
		seen[e.SubjectName] = true

		start, sErr := time.Parse(TimeLayout, e.StartTime)
		end, eErr := time.Parse(TimeLayout, e.EndTime)
		if sErr == nil && eErr == nil && !end.After(start) {
			sl.ReportError(e.EndTime, fmt.Sprintf("subjects[%d].end_time", i), fmt.Sprintf("Subjects[%d].EndTime", i), timeOrderTag, "")
		}
	}
}

// marksStructValidation checks that subjects are unique.
func marksStructValidation(sl validator.StructLevel) {
	nm, ok := sl.Current().Interface().(NewMarks)
	if !ok {
		return
	}

	seen := make(map[string]bool, len(nm.Marks))
	for i, e := range nm.Marks {
		if seen[e.SubjectName] {
			sl.ReportError(e.SubjectName, fmt.Sprintf("marks[%d].subject_name", i), fmt.Sprintf("Marks[%d].SubjectName", i), duplicateSubjectTag, "")
		}
		seen[e.SubjectName] = true
	}
}
