package mongorepos

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

type studentDoc struct {
	ID              string    `bson:"_id"`
	SchoolID        string    `bson:"school_id"`
	ClassID         string    `bson:"class_id"`
	Name            string    `bson:"name"`
	AdmissionNumber string    `bson:"admission_number"`
	GuardianName    string    `bson:"guardian_name"`
	GuardianEmail   string    `bson:"guardian_email"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func (d studentDoc) student() student.Student {
	return student.Student{
		ID:              d.ID,
		SchoolID:        d.SchoolID,
		ClassID:         d.ClassID,
		Name:            d.Name,
		AdmissionNumber: d.AdmissionNumber,
		GuardianName:    d.GuardianName,
		GuardianEmail:   d.GuardianEmail,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

type studentRepository struct {
	col *mongo.Collection
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *mongo.Database) *studentRepository {
	return &studentRepository{col: db.Collection(studentsCol)}
}

func (repo *studentRepository) CheckAdmissionNumberUniqueness(ctx context.Context, schoolID, admissionNumber string) error {
	n, err := repo.col.CountDocuments(ctx, bson.M{"school_id": schoolID, "admission_number": admissionNumber})
	if err != nil {
		return errors.Wrap(err, "checking admission number uniqueness")
	}
	if n > 0 {
		return student.ErrAdmissionNumberExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	_, err := repo.col.InsertOne(ctx, studentDoc{
		ID:              std.ID,
		SchoolID:        std.SchoolID,
		ClassID:         std.ClassID,
		Name:            std.Name,
		AdmissionNumber: std.AdmissionNumber,
		GuardianName:    std.GuardianName,
		GuardianEmail:   std.GuardianEmail,
		CreatedAt:       std.CreatedAt,
		UpdatedAt:       std.UpdatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return student.Student{}, student.ErrAdmissionNumberExists
	}
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, schoolID, id string) (student.Student, error) {
	var doc studentDoc
	if err := repo.col.FindOne(ctx, bson.M{"_id": id, "school_id": schoolID}).Decode(&doc); err != nil {
		return student.Student{}, trapNoDocsErr(err, student.ErrNotFound, "getting student")
	}
	return doc.student(), nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, schoolID string, filter student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	query, sortBy := studentsFilter(schoolID, filter), studentsSort(ordering)
	cur, err := repo.col.Find(ctx, query, options.Find().SetSort(sortBy))
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	var docs []studentDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding students")
	}

	students := make([]student.Student, 0, len(docs))
	for _, d := range docs {
		students = append(students, d.student())
	}
	return students, nil
}

func (repo *studentRepository) QuerySchools(ctx context.Context) ([]string, error) {
	values, err := repo.col.Distinct(ctx, "school_id", bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			schools = append(schools, s)
		}
	}
	sort.Strings(schools)
	return schools, nil
}

func studentsFilter(schoolID string, filter student.QueryFilter) bson.M {
	query := bson.M{"school_id": schoolID}
	if filter.ClassID != "" {
		query["class_id"] = filter.ClassID
	}
	if filter.Search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
		query["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"admission_number": pattern}}
	}
	return query
}

// studentsSort ends with the id so that equal keys keep a stable order.
func studentsSort(ordering []core.DBOrdering) bson.D {
	sortBy := make(bson.D, 0, len(ordering)+1)
	for _, ord := range ordering {
		dir := -1
		if ord.Ascending {
			dir = 1
		}
		sortBy = append(sortBy, bson.E{Key: ord.Field, Value: dir})
	}
	return append(sortBy, bson.E{Key: "_id", Value: 1})
}
