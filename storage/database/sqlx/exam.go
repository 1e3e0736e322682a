package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/exam"
)

const termColumns = "id, school_id, name, session, created_at"

type termRow struct {
	ID        string    `db:"id"`
	SchoolID  string    `db:"school_id"`
	Name      string    `db:"name"`
	Session   string    `db:"session"`
	CreatedAt time.Time `db:"created_at"`
}

func (r termRow) term() exam.Term {
	return exam.Term{ID: r.ID, SchoolID: r.SchoolID, Name: r.Name, Session: r.Session, CreatedAt: r.CreatedAt.UTC()}
}

type scheduleRow struct {
	SubjectName string  `db:"subject_name"`
	ExamDate    string  `db:"exam_date"`
	StartTime   string  `db:"start_time"`
	EndTime     string  `db:"end_time"`
	MaxMarks    float64 `db:"max_marks"`
}

type markRow struct {
	ClassID       string       `db:"class_id"`
	SubjectName   string       `db:"subject_name"`
	MarksObtained null.Float64 `db:"marks_obtained"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

type examRepository struct {
	db *sqlx.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) *examRepository {
	return &examRepository{db: db}
}

func (repo *examRepository) CreateTerm(ctx context.Context, term exam.Term) (exam.Term, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO exam_terms ("+termColumns+") VALUES (:id, :school_id, :name, :session, :created_at)",
		termRow{ID: term.ID, SchoolID: term.SchoolID, Name: term.Name, Session: term.Session, CreatedAt: term.CreatedAt})
	if err != nil {
		return exam.Term{}, errors.Wrap(err, "inserting exam term")
	}
	return term, nil
}

func (repo *examRepository) GetTerm(ctx context.Context, schoolID, id string) (exam.Term, error) {
	var row termRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+termColumns+" FROM exam_terms WHERE school_id = $1 AND id::text = $2", schoolID, id)
	if err != nil {
		return exam.Term{}, trapNoRowsErr(err, exam.ErrTermNotFound, "getting exam term")
	}
	return row.term(), nil
}

func (repo *examRepository) QueryTerms(ctx context.Context, schoolID string) ([]exam.Term, error) {
	var rows []termRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+termColumns+" FROM exam_terms WHERE school_id = $1 ORDER BY created_at, id", schoolID); err != nil {
		return nil, errors.Wrap(err, "querying exam terms")
	}
	terms := make([]exam.Term, 0, len(rows))
	for _, r := range rows {
		terms = append(terms, r.term())
	}
	return terms, nil
}

func (repo *examRepository) SaveSchedule(ctx context.Context, s exam.Schedule) (exam.Schedule, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM exam_schedule_subjects WHERE school_id = $1 AND term_id::text = $2 AND class_id = $3",
			s.SchoolID, s.TermID, s.ClassID)
		if err != nil {
			return errors.Wrap(err, "clearing exam schedule")
		}
		for i, e := range s.Subjects {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO exam_schedule_subjects (school_id, term_id, class_id, position, subject_name, exam_date, start_time, end_time, max_marks) "+
					"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
				s.SchoolID, s.TermID, s.ClassID, i, e.SubjectName, e.Date, e.StartTime, e.EndTime, e.MaxMarks)
			if err != nil {
				return errors.Wrap(err, "inserting exam schedule subject")
			}
		}
		return nil
	})
	if err != nil {
		return exam.Schedule{}, err
	}
	return s, nil
}

// GetSchedule returns ErrScheduleNotFound for a schedule saved without subjects.
func (repo *examRepository) GetSchedule(ctx context.Context, schoolID, termID, classID string) (exam.Schedule, error) {
	var rows []scheduleRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT subject_name, exam_date, start_time, end_time, max_marks FROM exam_schedule_subjects "+
			"WHERE school_id = $1 AND term_id::text = $2 AND class_id = $3 ORDER BY position",
		schoolID, termID, classID)
	if err != nil {
		return exam.Schedule{}, errors.Wrap(err, "getting exam schedule")
	}
	if len(rows) == 0 {
		return exam.Schedule{}, exam.ErrScheduleNotFound
	}

	s := exam.Schedule{SchoolID: schoolID, TermID: termID, ClassID: classID, Subjects: make([]exam.ScheduleEntry, 0, len(rows))}
	for _, r := range rows {
		s.Subjects = append(s.Subjects, exam.ScheduleEntry{
			SubjectName: r.SubjectName,
			Date:        r.ExamDate,
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			MaxMarks:    r.MaxMarks,
		})
	}
	return s, nil
}

func (repo *examRepository) SaveMarks(ctx context.Context, m exam.Marks) (exam.Marks, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM exam_marks WHERE school_id = $1 AND term_id::text = $2 AND student_id::text = $3",
			m.SchoolID, m.TermID, m.StudentID)
		if err != nil {
			return errors.Wrap(err, "clearing marks")
		}
		for i, e := range m.Marks {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO exam_marks (school_id, term_id, student_id, class_id, position, subject_name, marks_obtained, updated_at) "+
					"VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
				m.SchoolID, m.TermID, m.StudentID, m.ClassID, i, e.SubjectName, null.Float64FromPtr(e.MarksObtained), m.UpdatedAt)
			if err != nil {
				return errors.Wrap(err, "inserting marks")
			}
		}
		return nil
	})
	if err != nil {
		return exam.Marks{}, err
	}
	return m, nil
}

func (repo *examRepository) GetMarks(ctx context.Context, schoolID, termID, studentID string) (exam.Marks, error) {
	var rows []markRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT class_id, subject_name, marks_obtained, updated_at FROM exam_marks "+
			"WHERE school_id = $1 AND term_id::text = $2 AND student_id::text = $3 ORDER BY position",
		schoolID, termID, studentID)
	if err != nil {
		return exam.Marks{}, errors.Wrap(err, "getting marks")
	}
	if len(rows) == 0 {
		return exam.Marks{}, exam.ErrMarksNotFound
	}

	m := exam.Marks{
		SchoolID:  schoolID,
		TermID:    termID,
		StudentID: studentID,
		ClassID:   rows[0].ClassID,
		Marks:     make([]exam.MarkEntry, 0, len(rows)),
		UpdatedAt: rows[0].UpdatedAt.UTC(),
	}
	for _, r := range rows {
		m.Marks = append(m.Marks, exam.MarkEntry{SubjectName: r.SubjectName, MarksObtained: r.MarksObtained.Ptr()})
	}
	return m, nil
}
