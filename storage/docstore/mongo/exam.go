package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/shule/core/exam"
)

type termDoc struct {
	ID        string    `bson:"_id"`
	SchoolID  string    `bson:"school_id"`
	Name      string    `bson:"name"`
	Session   string    `bson:"session"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d termDoc) term() exam.Term {
	return exam.Term{ID: d.ID, SchoolID: d.SchoolID, Name: d.Name, Session: d.Session, CreatedAt: d.CreatedAt.UTC()}
}

type scheduleDoc struct {
	SchoolID string               `bson:"school_id"`
	TermID   string               `bson:"term_id"`
	ClassID  string               `bson:"class_id"`
	Subjects []scheduleSubjectDoc `bson:"subjects"`
}

type scheduleSubjectDoc struct {
	SubjectName string  `bson:"subject_name"`
	Date        string  `bson:"date"`
	StartTime   string  `bson:"start_time"`
	EndTime     string  `bson:"end_time"`
	MaxMarks    float64 `bson:"max_marks"`
}

type marksDoc struct {
	SchoolID  string    `bson:"school_id"`
	TermID    string    `bson:"term_id"`
	StudentID string    `bson:"student_id"`
	ClassID   string    `bson:"class_id"`
	Marks     []markDoc `bson:"marks"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type markDoc struct {
	SubjectName   string   `bson:"subject_name"`
	MarksObtained *float64 `bson:"marks_obtained"` // null when not entered
}

type examRepository struct {
	terms     *mongo.Collection
	schedules *mongo.Collection
	marks     *mongo.Collection
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *mongo.Database) *examRepository {
	return &examRepository{
		terms:     db.Collection(examTermsCol),
		schedules: db.Collection(examSchedulesCol),
		marks:     db.Collection(examMarksCol),
	}
}

func (repo *examRepository) CreateTerm(ctx context.Context, term exam.Term) (exam.Term, error) {
	_, err := repo.terms.InsertOne(ctx, termDoc{
		ID:        term.ID,
		SchoolID:  term.SchoolID,
		Name:      term.Name,
		Session:   term.Session,
		CreatedAt: term.CreatedAt,
	})
	if err != nil {
		return exam.Term{}, errors.Wrap(err, "inserting exam term")
	}
	return term, nil
}

func (repo *examRepository) GetTerm(ctx context.Context, schoolID, id string) (exam.Term, error) {
	var doc termDoc
	if err := repo.terms.FindOne(ctx, bson.M{"_id": id, "school_id": schoolID}).Decode(&doc); err != nil {
		return exam.Term{}, trapNoDocsErr(err, exam.ErrTermNotFound, "getting exam term")
	}
	return doc.term(), nil
}

func (repo *examRepository) QueryTerms(ctx context.Context, schoolID string) ([]exam.Term, error) {
	cur, err := repo.terms.Find(ctx, bson.M{"school_id": schoolID}, options.Find().SetSort(sortAsc("created_at", "_id")))
	if err != nil {
		return nil, errors.Wrap(err, "querying exam terms")
	}
	var docs []termDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding exam terms")
	}

	terms := make([]exam.Term, 0, len(docs))
	for _, d := range docs {
		terms = append(terms, d.term())
	}
	return terms, nil
}

func (repo *examRepository) SaveSchedule(ctx context.Context, s exam.Schedule) (exam.Schedule, error) {
	doc := scheduleDoc{
		SchoolID: s.SchoolID,
		TermID:   s.TermID,
		ClassID:  s.ClassID,
		Subjects: make([]scheduleSubjectDoc, 0, len(s.Subjects)),
	}
	for _, e := range s.Subjects {
		doc.Subjects = append(doc.Subjects, scheduleSubjectDoc(e))
	}

	_, err := repo.schedules.ReplaceOne(ctx,
		bson.M{"school_id": s.SchoolID, "term_id": s.TermID, "class_id": s.ClassID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return exam.Schedule{}, errors.Wrap(err, "saving exam schedule")
	}
	return s, nil
}

func (repo *examRepository) GetSchedule(ctx context.Context, schoolID, termID, classID string) (exam.Schedule, error) {
	var doc scheduleDoc
	err := repo.schedules.FindOne(ctx, bson.M{"school_id": schoolID, "term_id": termID, "class_id": classID}).Decode(&doc)
	if err != nil {
		return exam.Schedule{}, trapNoDocsErr(err, exam.ErrScheduleNotFound, "getting exam schedule")
	}

	s := exam.Schedule{SchoolID: doc.SchoolID, TermID: doc.TermID, ClassID: doc.ClassID, Subjects: make([]exam.ScheduleEntry, 0, len(doc.Subjects))}
	for _, e := range doc.Subjects {
		s.Subjects = append(s.Subjects, exam.ScheduleEntry(e))
	}
	return s, nil
}

func (repo *examRepository) SaveMarks(ctx context.Context, m exam.Marks) (exam.Marks, error) {
	doc := marksDoc{
		SchoolID:  m.SchoolID,
		TermID:    m.TermID,
		StudentID: m.StudentID,
		ClassID:   m.ClassID,
		Marks:     make([]markDoc, 0, len(m.Marks)),
		UpdatedAt: m.UpdatedAt,
	}
	for _, e := range m.Marks {
		doc.Marks = append(doc.Marks, markDoc{SubjectName: e.SubjectName, MarksObtained: e.MarksObtained})
	}

	_, err := repo.marks.ReplaceOne(ctx,
		bson.M{"school_id": m.SchoolID, "term_id": m.TermID, "student_id": m.StudentID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return exam.Marks{}, errors.Wrap(err, "saving marks")
	}
	return m, nil
}

func (repo *examRepository) GetMarks(ctx context.Context, schoolID, termID, studentID string) (exam.Marks, error) {
	var doc marksDoc
	err := repo.marks.FindOne(ctx, bson.M{"school_id": schoolID, "term_id": termID, "student_id": studentID}).Decode(&doc)
	if err != nil {
		return exam.Marks{}, trapNoDocsErr(err, exam.ErrMarksNotFound, "getting marks")
	}

	m := exam.Marks{
		SchoolID:  doc.SchoolID,
		TermID:    doc.TermID,
		StudentID: doc.StudentID,
		ClassID:   doc.ClassID,
		Marks:     make([]exam.MarkEntry, 0, len(doc.Marks)),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	for _, e := range doc.Marks {
		m.Marks = append(m.Marks, exam.MarkEntry{SubjectName: e.SubjectName, MarksObtained: e.MarksObtained})
	}
	return m, nil
}
