package inmemdb

import (
	"context"

	"github.com/trezcool/shule/core/exam"
)

type examRepository struct {
	db *examTables
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) *examRepository {
	return &examRepository{db: db.exam}
}

func (repo *examRepository) CreateTerm(_ context.Context, term exam.Term) (exam.Term, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.terms = append(repo.db.terms, &term)
	return term, nil
}

func (repo *examRepository) GetTerm(_ context.Context, schoolID, id string) (exam.Term, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, term := range repo.db.terms {
		if term.ID == id && term.SchoolID == schoolID {
			return *term, nil
		}
	}
	return exam.Term{}, exam.ErrTermNotFound
}

func (repo *examRepository) QueryTerms(_ context.Context, schoolID string) ([]exam.Term, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	terms := make([]exam.Term, 0)
	for _, term := range repo.db.terms {
		if term.SchoolID == schoolID {
			terms = append(terms, *term)
		}
	}
	return terms, nil
}

func (repo *examRepository) SaveSchedule(_ context.Context, s exam.Schedule) (exam.Schedule, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s = copySchedule(s)
	repo.db.schedules[compositeKey(s.SchoolID, s.TermID, s.ClassID)] = &s
	return copySchedule(s), nil
}

func (repo *examRepository) GetSchedule(_ context.Context, schoolID, termID, classID string) (exam.Schedule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.schedules[compositeKey(schoolID, termID, classID)]; ok {
		return copySchedule(*s), nil
	}
	return exam.Schedule{}, exam.ErrScheduleNotFound
}

func (repo *examRepository) SaveMarks(_ context.Context, m exam.Marks) (exam.Marks, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m = copyMarks(m)
	repo.db.marks[compositeKey(m.SchoolID, m.TermID, m.StudentID)] = &m
	return copyMarks(m), nil
}

func (repo *examRepository) GetMarks(_ context.Context, schoolID, termID, studentID string) (exam.Marks, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.marks[compositeKey(schoolID, termID, studentID)]; ok {
		return copyMarks(*m), nil
	}
	return exam.Marks{}, exam.ErrMarksNotFound
}

func copySchedule(s exam.Schedule) exam.Schedule {
	s.Subjects = append(make([]exam.ScheduleEntry, 0, len(s.Subjects)), s.Subjects...)
	return s
}

func copyMarks(m exam.Marks) exam.Marks {
	entries := make([]exam.MarkEntry, 0, len(m.Marks))
	for _, e := range m.Marks {
		if e.MarksObtained != nil {
			v := *e.MarksObtained
			e.MarksObtained = &v
		}
		entries = append(entries, e)
	}
	m.Marks = entries
	return m
}
