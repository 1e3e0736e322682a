package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query(schoolID string) []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, std := range repo.db.table {
		if std.SchoolID == schoolID {
			students = append(students, *std)
		}
	}
	return students
}

func (repo *studentRepository) CheckAdmissionNumberUniqueness(_ context.Context, schoolID, admissionNumber string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, std := range repo.query(schoolID) {
		if std.AdmissionNumber == admissionNumber {
			return student.ErrAdmissionNumberExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, std student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, s := range repo.query(std.SchoolID) {
		if s.AdmissionNumber == std.AdmissionNumber {
			return student.Student{}, student.ErrAdmissionNumberExists
		}
	}
	repo.db.table[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, schoolID, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if std, ok := repo.db.table[id]; ok && std.SchoolID == schoolID {
		return *std, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(_ context.Context, schoolID string, filter student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	students := make([]student.Student, 0)
	for _, std := range repo.query(schoolID) {
		if filter.ClassID != "" && std.ClassID != filter.ClassID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(std.Name), search) &&
			!strings.Contains(strings.ToLower(std.AdmissionNumber), search) {
			continue
		}
		students = append(students, std)
	}

	sort.SliceStable(students, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := studentField(students[i], ord.Field), studentField(students[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

func (repo *studentRepository) QuerySchools(_ context.Context) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seen := make(map[string]bool)
	schools := make([]string, 0)
	for _, std := range repo.db.table {
		if !seen[std.SchoolID] {
			seen[std.SchoolID] = true
			schools = append(schools, std.SchoolID)
		}
	}
	sort.Strings(schools)
	return schools, nil
}

func studentField(std student.Student, field string) string {
	switch field {
	case "admission_number":
		return std.AdmissionNumber
	case "class_id":
		return std.ClassID
	case "created_at":
		return std.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000")
	default:
		return std.Name
	}
}
