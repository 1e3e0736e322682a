package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
)

// NewConfig returns a test mode config on the in-memory storage backend.
func NewConfig() *core.Config {
	return &core.Config{
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Shule",
		DefaultFromEmail: "Shule <no-reply@shule.test>",
		Storage:          core.StorageConfig{Backend: core.StorageMemory},
		Reminder:         core.ReminderConfig{Schedule: "0 7 * * 1"},
	}
}

// NewValidator returns a validator with every app validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	exam.InitValidators(validate, translator)
	return validate, translator
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// LoggerMock records log entries. Fatal does not exit.
type LoggerMock struct {
	mu      sync.Mutex
	Entries []LogEntry
}

var _ core.Logger = (*LoggerMock)(nil)

func (l *LoggerMock) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *LoggerMock) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *LoggerMock) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *LoggerMock) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *LoggerMock) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *LoggerMock) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

// Count returns the number of entries logged at level.
func (l *LoggerMock) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// ErrorFields lists the fields in error, from validator or core validation errors.
func ErrorFields(err error) []string {
	fields := make([]string, 0)
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range e {
			fields = append(fields, core.FieldPath(fe))
		}
	case *core.ValidationError:
		for _, f := range e.Fields {
			fields = append(fields, f.Field)
		}
	}
	return fields
}

func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func CreateStudent(t *testing.T, repo student.Repository, schoolID, classID, name, admissionNumber, guardianEmail string) student.Student {
	t.Helper()
	now := time.Now().UTC()
	std, err := repo.CreateStudent(context.Background(), student.Student{
		ID:              uuid.New().String(),
		SchoolID:        schoolID,
		ClassID:         classID,
		Name:            name,
		AdmissionNumber: admissionNumber,
		GuardianName:    "Guardian of " + name,
		GuardianEmail:   guardianEmail,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

func CreateHead(t *testing.T, repo fee.Repository, schoolID, name, headType string) fee.Head {
	t.Helper()
	now := time.Now().UTC()
	head, err := repo.CreateHead(context.Background(), fee.Head{
		ID:        uuid.New().String(),
		SchoolID:  schoolID,
		Name:      name,
		Type:      headType,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateHead() failed: %v", err)
	}
	return head
}

// SaveStructure stores the structure of classID; amounts are given in head order.
func SaveStructure(t *testing.T, repo fee.Repository, schoolID, classID string, heads []fee.Head, amounts ...string) fee.ClassStructure {
	t.Helper()
	if len(heads) != len(amounts) {
		t.Fatalf("SaveStructure(): %d heads for %d amounts", len(heads), len(amounts))
	}
	entries := make([]fee.StructureEntry, 0, len(heads))
	for i, h := range heads {
		entries = append(entries, fee.StructureEntry{FeeHeadID: h.ID, Amount: D(amounts[i])})
	}
	cs, err := repo.SaveStructure(context.Background(), fee.ClassStructure{
		SchoolID:  schoolID,
		ClassID:   classID,
		Entries:   entries,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("SaveStructure() failed: %v", err)
	}
	return cs
}

func CreateTerm(t *testing.T, repo exam.Repository, schoolID, name string) exam.Term {
	t.Helper()
	term, err := repo.CreateTerm(context.Background(), exam.Term{
		ID:        uuid.New().String(),
		SchoolID:  schoolID,
		Name:      name,
		Session:   "2024-2025",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateTerm() failed: %v", err)
	}
	return term
}

// Subject returns a two hours morning exam.
func Subject(name string, maxMarks float64) exam.ScheduleEntry {
	return exam.ScheduleEntry{SubjectName: name, Date: "2024-03-01", StartTime: "09:00", EndTime: "11:00", MaxMarks: maxMarks}
}

func Mark(name string, obtained float64) exam.MarkEntry {
	return exam.MarkEntry{SubjectName: name, MarksObtained: &obtained}
}

func AdmissionNumber(i int) string {
	return fmt.Sprintf("ADM-%04d", i)
}
