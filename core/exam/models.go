package exam

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

// Results
const (
	ResultPass = "Pass"
	ResultFail = "Fail"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Term struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Name      string    `json:"name"`
	Session   string    `json:"session"` // free text, eg. "2024-2025"
	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewTerm struct {
	Name    string `json:"name" validate:"required,notblank"`
	Session string `json:"session" validate:"required,notblank"`
}

func (nt *NewTerm) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Session = core.CleanString(nt.Session)
	return validate.Struct(nt)
}

type ScheduleEntry struct {
	SubjectName string  `json:"subject_name" yaml:"subject_name" validate:"required,notblank"`
	Date        string  `json:"date" yaml:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string  `json:"start_time" yaml:"start_time" validate:"required,datetime=15:04"`
	EndTime     string  `json:"end_time" yaml:"end_time" validate:"required,datetime=15:04"`
	MaxMarks    float64 `json:"max_marks" yaml:"max_marks" validate:"gte=1"`
}

// Schedule is the ordered subject schedule of a class for a term.
type Schedule struct {
	SchoolID string          `json:"school_id"`
	TermID   string          `json:"term_id"`
	ClassID  string          `json:"class_id"`
	Subjects []ScheduleEntry `json:"subjects"`
}

// MaxMarks returns the max marks of subject, or 0 when it is not scheduled.
func (s Schedule) MaxMarks(subject string) (float64, bool) {
	for _, e := range s.Subjects {
		if e.SubjectName == subject {
			return e.MaxMarks, true
		}
	}
	return 0, false
}

type NewSchedule struct {
	Subjects []ScheduleEntry `json:"subjects" validate:"dive"`
}

func (ns *NewSchedule) Validate(validate *validator.Validate) error {
	for i := range ns.Subjects {
		ns.Subjects[i].SubjectName = core.CleanString(ns.Subjects[i].SubjectName)
		ns.Subjects[i].Date = core.CleanString(ns.Subjects[i].Date)
		ns.Subjects[i].StartTime = core.CleanString(ns.Subjects[i].StartTime)
		ns.Subjects[i].EndTime = core.CleanString(ns.Subjects[i].EndTime)
	}
	return validate.Struct(ns)
}

// MarkEntry holds the marks of a subject. A nil MarksObtained means "not entered yet", not 0.
type MarkEntry struct {
	SubjectName   string   `json:"subject_name" yaml:"subject_name" validate:"required,notblank"`
	MarksObtained *float64 `json:"marks_obtained" yaml:"marks_obtained" validate:"omitempty,gte=0"`
}

type Marks struct {
	SchoolID  string      `json:"school_id"`
	TermID    string      `json:"term_id"`
	StudentID string      `json:"student_id"`
	ClassID   string      `json:"class_id"`
	Marks     []MarkEntry `json:"marks"`
	UpdatedAt time.Time   `json:"updated_at"` // UTC
}

// Find returns the entry of subject.
func (m Marks) Find(subject string) (MarkEntry, bool) {
	for _, e := range m.Marks {
		if e.SubjectName == subject {
			return e, true
		}
	}
	return MarkEntry{}, false
}

type NewMarks struct {
	Marks []MarkEntry `json:"marks" validate:"dive"`
}

func (nm *NewMarks) Validate(validate *validator.Validate) error {
	for i := range nm.Marks {
		nm.Marks[i].SubjectName = core.CleanString(nm.Marks[i].SubjectName)
	}
	return validate.Struct(nm)
}

type TermResult struct {
	TermID     string  `json:"term_id"`
	Max        float64 `json:"max"`
	Obtained   float64 `json:"obtained"`
	Scheduled  bool    `json:"scheduled"`
	Graded     bool    `json:"graded"` // false when scheduled but no marks were entered
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
}

type ReportCardRow struct {
	SubjectName string       `json:"subject_name"`
	Terms       []TermResult `json:"terms"` // in the requested term order
	RowMax      float64      `json:"row_max"`
	RowObtained float64      `json:"row_obtained"`
	Passed      bool         `json:"passed"`
	Ungraded    bool         `json:"ungraded"`
}

type ReportCardSummary struct {
	GrandTotalMax      float64 `json:"grand_total_max"`
	GrandTotalObtained float64 `json:"grand_total_obtained"`
	Percentage         float64 `json:"percentage"`
	PercentageText     string  `json:"percentage_text"`
	Grade              string  `json:"grade"`
	Result             string  `json:"result"`
	HasUngraded        bool    `json:"has_ungraded"`
}

type ReportCard struct {
	Rows    []ReportCardRow   `json:"rows"`
	Summary ReportCardSummary `json:"summary"`
}

// ReportCardView is the report card of a student over the selected terms.
type ReportCardView struct {
	Student student.Student `json:"student"`
	Terms   []Term          `json:"terms"`
	Card    ReportCard      `json:"card"`
}
