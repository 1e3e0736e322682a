package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

const studentColumns = "id, school_id, class_id, name, admission_number, guardian_name, guardian_email, created_at, updated_at"

type studentRow struct {
	ID              string    `db:"id"`
	SchoolID        string    `db:"school_id"`
	ClassID         string    `db:"class_id"`
	Name            string    `db:"name"`
	AdmissionNumber string    `db:"admission_number"`
	GuardianName    string    `db:"guardian_name"`
	GuardianEmail   string    `db:"guardian_email"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r studentRow) student() student.Student {
	return student.Student{
		ID:              r.ID,
		SchoolID:        r.SchoolID,
		ClassID:         r.ClassID,
		Name:            r.Name,
		AdmissionNumber: r.AdmissionNumber,
		GuardianName:    r.GuardianName,
		GuardianEmail:   r.GuardianEmail,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CheckAdmissionNumberUniqueness(ctx context.Context, schoolID, admissionNumber string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM students WHERE school_id = $1 AND admission_number = $2)",
		schoolID, admissionNumber)
	if err != nil {
		return errors.Wrap(err, "checking admission number uniqueness")
	}
	if exists {
		return student.ErrAdmissionNumberExists
	}
	return nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO students ("+studentColumns+") VALUES "+
			"(:id, :school_id, :class_id, :name, :admission_number, :guardian_name, :guardian_email, :created_at, :updated_at)",
		studentRow{
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
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
		return student.Student{}, student.ErrAdmissionNumberExists
	}
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, schoolID, id string) (student.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+studentColumns+" FROM students WHERE school_id = $1 AND id::text = $2", schoolID, id)
	if err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "getting student")
	}
	return row.student(), nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, schoolID string, filter student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	q, args := studentsQuery(schoolID, filter, ordering)
	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

// studentsQuery builds the students select with '?' bindvars.
func studentsQuery(schoolID string, filter student.QueryFilter, ordering []core.DBOrdering) (string, []interface{}) {
	where := []string{"school_id = ?"}
	args := []interface{}{schoolID}
	if filter.ClassID != "" {
		where = append(where, "class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.Search != "" {
		where = append(where, "(name ILIKE ? OR admission_number ILIKE ?)")
		pattern := "%" + escapeLike(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}

	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		orderBy = append(orderBy, ord.String()) // fields are checked by the service
	}
	orderBy = append(orderBy, "id ASC")

	return "SELECT " + studentColumns + " FROM students WHERE " + strings.Join(where, " AND ") +
		" ORDER BY " + strings.Join(orderBy, ", "), args
}

func (repo *studentRepository) QuerySchools(ctx context.Context) ([]string, error) {
	schools := make([]string, 0)
	if err := repo.db.SelectContext(ctx, &schools, "SELECT DISTINCT school_id FROM students ORDER BY school_id"); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	return schools, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
