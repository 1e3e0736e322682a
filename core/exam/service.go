package exam

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

const reportCardCacheField = "report-card:"

var (
	// errors
	ErrTermNotFound     = core.NewNotFoundError("exam term not found")
	ErrScheduleNotFound = core.NewNotFoundError("exam schedule not found")
	ErrMarksNotFound    = core.NewNotFoundError("marks not found")
	ErrNoTerms          = errors.New("at least one exam term is required")
	ErrNotScheduled     = errors.New("subject is not scheduled for this class")
)

type Repository interface {
	CreateTerm(ctx context.Context, term Term) (Term, error)
	GetTerm(ctx context.Context, schoolID, id string) (Term, error)
	// QueryTerms returns the terms of the school in creation order.
	QueryTerms(ctx context.Context, schoolID string) ([]Term, error)

	// SaveSchedule replaces the schedule of the class for the term.
	SaveSchedule(ctx context.Context, s Schedule) (Schedule, error)
	GetSchedule(ctx context.Context, schoolID, termID, classID string) (Schedule, error)

	// SaveMarks replaces the marks of the student for the term.
	SaveMarks(ctx context.Context, m Marks) (Marks, error)
	GetMarks(ctx context.Context, schoolID, termID, studentID string) (Marks, error)
}

type Service struct {
	repo     Repository
	students *student.Service
	cache    core.Cache
	logger   core.Logger
	validate *validator.Validate
}

func NewService(
	repo Repository,
	students *student.Service,
	cache core.Cache,
	logger core.Logger,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:     repo,
		students: students,
		cache:    cache,
		logger:   logger,
		validate: validate,
	}
}

// Terms

func (svc *Service) CreateTerm(ctx context.Context, schoolID string, nt NewTerm) (Term, error) {
	if err := nt.Validate(svc.validate); err != nil {
		return Term{}, err
	}
	term, err := svc.repo.CreateTerm(ctx, Term{
		ID:        uuid.New().String(),
		SchoolID:  schoolID,
		Name:      nt.Name,
		Session:   nt.Session,
		CreatedAt: time.Now().UTC(),
	})
	return term, errors.Wrap(err, "creating exam term")
}

func (svc *Service) GetTerm(ctx context.Context, schoolID, id string) (Term, error) {
	return svc.repo.GetTerm(ctx, schoolID, id)
}

func (svc *Service) QueryTerms(ctx context.Context, schoolID string) ([]Term, error) {
	return svc.repo.QueryTerms(ctx, schoolID)
}

// Schedules

func (svc *Service) SaveSchedule(ctx context.Context, schoolID, termID, classID string, ns NewSchedule) (Schedule, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Schedule{}, err
	}
	if _, err := svc.repo.GetTerm(ctx, schoolID, termID); err != nil {
		return Schedule{}, err
	}

	subjects := ns.Subjects
	if subjects == nil {
		subjects = make([]ScheduleEntry, 0)
	}
	s, err := svc.repo.SaveSchedule(ctx, Schedule{SchoolID: schoolID, TermID: termID, ClassID: classID, Subjects: subjects})
	if err != nil {
		return Schedule{}, errors.Wrap(err, "saving exam schedule")
	}

	students, err := svc.students.QueryStudents(ctx, schoolID, student.QueryFilter{ClassID: classID})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("querying students to invalidate: %v", err), err, core.Tenant{SchoolID: schoolID})
		return s, nil
	}
	keys := make([]string, 0, len(students))
	for _, std := range students {
		keys = append(keys, core.StudentCacheKey(schoolID, std.ID))
	}
	svc.invalidate(ctx, schoolID, keys...)
	return s, nil
}

func (svc *Service) GetSchedule(ctx context.Context, schoolID, termID, classID string) (Schedule, error) {
	return svc.repo.GetSchedule(ctx, schoolID, termID, classID)
}

// Marks

// SaveMarks upserts the marks of a student: entered subjects are replaced, the others are kept.
func (svc *Service) SaveMarks(ctx context.Context, schoolID, termID, studentID string, nm NewMarks) (Marks, error) {
	if err := nm.Validate(svc.validate); err != nil {
		return Marks{}, err
	}
	if _, err := svc.repo.GetTerm(ctx, schoolID, termID); err != nil {
		return Marks{}, err
	}
	std, err := svc.students.GetStudent(ctx, schoolID, studentID)
	if err != nil {
		return Marks{}, err
	}

	sch, err := svc.repo.GetSchedule(ctx, schoolID, termID, std.ClassID)
	if err != nil && errors.Cause(err) != ErrScheduleNotFound {
		return Marks{}, errors.Wrap(err, "getting exam schedule")
	}
	var fldErrs []core.FieldError
	for i, e := range nm.Marks {
		max, ok := sch.MaxMarks(e.SubjectName)
		if !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("marks[%d].subject_name", i), Error: ErrNotScheduled.Error()})
			continue
		}
		if e.MarksObtained != nil && *e.MarksObtained > max {
			fldErrs = append(fldErrs, core.FieldError{
				Field: fmt.Sprintf("marks[%d].marks_obtained", i),
				Error: fmt.Sprintf("cannot exceed the max marks (%g)", max),
			})
		}
	}
	if len(fldErrs) > 0 {
		return Marks{}, core.NewValidationError(nil, fldErrs...)
	}

	existing, err := svc.repo.GetMarks(ctx, schoolID, termID, studentID)
	if err != nil && errors.Cause(err) != ErrMarksNotFound {
		return Marks{}, errors.Wrap(err, "getting marks")
	}
	m, err := svc.repo.SaveMarks(ctx, Marks{
		SchoolID:  schoolID,
		TermID:    termID,
		StudentID: studentID,
		ClassID:   std.ClassID,
		Marks:     mergeMarks(existing.Marks, nm.Marks),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Marks{}, errors.Wrap(err, "saving marks")
	}
	svc.invalidate(ctx, schoolID, core.StudentCacheKey(schoolID, studentID))
	return m, nil
}

func (svc *Service) GetMarks(ctx context.Context, schoolID, termID, studentID string) (Marks, error) {
	return svc.repo.GetMarks(ctx, schoolID, termID, studentID)
}

// mergeMarks keeps the order of existing entries, replacing updated subjects and appending new ones.
func mergeMarks(existing, updates []MarkEntry) []MarkEntry {
	merged := make([]MarkEntry, 0, len(existing)+len(updates))
	index := make(map[string]int, len(existing)+len(updates))
	for _, e := range existing {
		index[e.SubjectName] = len(merged)
		merged = append(merged, e)
	}
	for _, u := range updates {
		if i, ok := index[u.SubjectName]; ok {
			merged[i] = u
			continue
		}
		index[u.SubjectName] = len(merged)
		merged = append(merged, u)
	}
	return merged
}

// Report cards

// ReportCard computes the report card of a student over termIDs, in the given order.
// Missing schedules or marks are not errors, unknown terms are.
func (svc *Service) ReportCard(ctx context.Context, schoolID, studentID string, termIDs []string) (ReportCardView, error) {
	termIDs = uniqueTermIDs(termIDs)
	if len(termIDs) == 0 {
		return ReportCardView{}, core.NewValidationError(ErrNoTerms, core.FieldError{Field: "term", Error: ErrNoTerms.Error()})
	}

	std, err := svc.students.GetStudent(ctx, schoolID, studentID)
	if err != nil {
		return ReportCardView{}, err
	}
	terms := make([]Term, 0, len(termIDs))
	for _, id := range termIDs {
		term, err := svc.repo.GetTerm(ctx, schoolID, id)
		if err != nil {
			return ReportCardView{}, err
		}
		terms = append(terms, term)
	}

	key := core.StudentCacheKey(schoolID, studentID)
	field := reportCardCacheField + strings.Join(termIDs, ",")
	var view ReportCardView
	found, gen, err := svc.cache.Get(ctx, key, field, &view)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("reading cached report card: %v", err), err, core.Tenant{SchoolID: schoolID, StudentID: studentID})
	} else if found {
		return view, nil
	}

	schedules := make(map[string][]ScheduleEntry, len(termIDs))
	marks := make(map[string]Marks, len(termIDs))
	for _, id := range termIDs {
		sch, err := svc.repo.GetSchedule(ctx, schoolID, id, std.ClassID)
		switch {
		case err == nil:
			schedules[id] = sch.Subjects
		case errors.Cause(err) != ErrScheduleNotFound:
			return ReportCardView{}, errors.Wrap(err, "getting exam schedule")
		}

		m, err := svc.repo.GetMarks(ctx, schoolID, id, studentID)
		switch {
		case err == nil:
			marks[id] = m
		case errors.Cause(err) != ErrMarksNotFound:
			return ReportCardView{}, errors.Wrap(err, "getting marks")
		}
	}

	view = ReportCardView{
		Student: std,
		Terms:   terms,
		Card:    ComputeReportCard(termIDs, schedules, marks),
	}
	if err = svc.cache.Set(ctx, key, field, view, gen); err != nil {
		svc.logger.Warn(fmt.Sprintf("caching report card: %v", err), err, core.Tenant{SchoolID: schoolID, StudentID: studentID})
	}
	return view, nil
}

func (svc *Service) invalidate(ctx context.Context, schoolID string, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := svc.cache.Invalidate(ctx, keys...); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating cache: %v", err), err, core.Tenant{SchoolID: schoolID})
	}
}

func uniqueTermIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}
