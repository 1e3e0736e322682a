package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type Student struct {
	ID              string    `json:"id"`
	SchoolID        string    `json:"school_id"`
	ClassID         string    `json:"class_id"`
	Name            string    `json:"name"`
	AdmissionNumber string    `json:"admission_number"`
	GuardianName    string    `json:"guardian_name"`
	GuardianEmail   string    `json:"guardian_email"`
	CreatedAt       time.Time `json:"created_at"` // UTC
	UpdatedAt       time.Time `json:"updated_at"` // UTC
}

// NewStudent contains information needed to admit a new Student.
type NewStudent struct {
	ClassID         string `json:"class_id" validate:"required,notblank"`
	Name            string `json:"name" validate:"required,notblank"`
	AdmissionNumber string `json:"admission_number" validate:"required,notblank"`
	GuardianName    string `json:"guardian_name"`
	GuardianEmail   string `json:"guardian_email" validate:"omitempty,email"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.ClassID = core.CleanString(ns.ClassID)
	ns.Name = core.CleanString(ns.Name)
	ns.AdmissionNumber = core.CleanString(ns.AdmissionNumber)
	ns.GuardianName = core.CleanString(ns.GuardianName)
	ns.GuardianEmail = core.CleanString(ns.GuardianEmail, true /* lower */)
	return validate.Struct(ns)
}

type QueryFilter struct {
	ClassID string `query:"class"`
	Search  string `query:"search"` // case-insensitive match on name or admission number
}

func (qf *QueryFilter) Clean() {
	qf.ClassID = core.CleanString(qf.ClassID)
	qf.Search = core.CleanString(qf.Search)
}
