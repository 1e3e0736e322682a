package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound              = core.NewNotFoundError("student not found")
	ErrAdmissionNumberExists = errors.New("a student with this admission number already exists")
	ErrInvalidOrderingField  = errors.New("invalid ordering field")

	OrderingFields  = []string{"name", "admission_number", "class_id", "created_at"}
	defaultOrdering = []core.DBOrdering{{Field: "name", Ascending: true}}
)

type Repository interface {
	CheckAdmissionNumberUniqueness(ctx context.Context, schoolID, admissionNumber string) error
	CreateStudent(ctx context.Context, std Student) (Student, error)
	GetStudent(ctx context.Context, schoolID, id string) (Student, error)
	// QueryStudents applies AND operation on available QueryFilter fields.
	QueryStudents(ctx context.Context, schoolID string, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error)
	// QuerySchools returns the distinct ids of the schools having at least one student.
	QuerySchools(ctx context.Context) ([]string, error)
}

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) CreateStudent(ctx context.Context, schoolID string, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	if err := svc.repo.CheckAdmissionNumberUniqueness(ctx, schoolID, ns.AdmissionNumber); err != nil {
		if errors.Cause(err) == ErrAdmissionNumberExists {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "admission_number", Error: err.Error()})
		}
		return Student{}, errors.Wrap(err, "checking admission number")
	}

	now := time.Now().UTC()
	std := Student{
		ID:              uuid.New().String(),
		SchoolID:        schoolID,
		ClassID:         ns.ClassID,
		Name:            ns.Name,
		AdmissionNumber: ns.AdmissionNumber,
		GuardianName:    ns.GuardianName,
		GuardianEmail:   ns.GuardianEmail,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	std, err := svc.repo.CreateStudent(ctx, std)
	return std, errors.Wrap(err, "creating student")
}

func (svc *Service) GetStudent(ctx context.Context, schoolID, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, schoolID, id)
}

func (svc *Service) QueryStudents(ctx context.Context, schoolID string, filter QueryFilter, ordering ...core.DBOrdering) ([]Student, error) {
	filter.Clean()
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}
	for _, ord := range ordering {
		if !isOrderingField(ord.Field) {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "ordering", Error: ErrInvalidOrderingField.Error() + ": " + ord.Field})
		}
	}
	return svc.repo.QueryStudents(ctx, schoolID, filter, ordering)
}

func (svc *Service) QuerySchools(ctx context.Context) ([]string, error) {
	return svc.repo.QuerySchools(ctx)
}

func isOrderingField(field string) bool {
	for _, f := range OrderingFields {
		if f == field {
			return true
		}
	}
	return false
}
