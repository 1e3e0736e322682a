package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

const statementCacheField = "fee-status"

var (
	// errors
	ErrHeadNotFound      = core.NewNotFoundError("fee head not found")
	ErrStructureNotFound = core.NewNotFoundError("fee structure not found")
	ErrPaymentNotFound   = core.NewNotFoundError("payment not found")
	ErrHeadTypeLocked    = errors.New("fee head type cannot change once the head is used in a fee structure")
)

type Repository interface {
	CreateHead(ctx context.Context, head Head) (Head, error)
	UpdateHead(ctx context.Context, head Head) (Head, error)
	GetHead(ctx context.Context, schoolID, id string) (Head, error)
	QueryHeads(ctx context.Context, schoolID string) ([]Head, error)
	// HeadReferenced reports whether any class structure of the school uses the head.
	HeadReferenced(ctx context.Context, schoolID, headID string) (bool, error)

	// SaveStructure replaces the structure of the class.
	SaveStructure(ctx context.Context, cs ClassStructure) (ClassStructure, error)
	GetStructure(ctx context.Context, schoolID, classID string) (ClassStructure, error)

	// NextReceiptSeq atomically increments and returns the receipt sequence of the school for the year.
	NextReceiptSeq(ctx context.Context, schoolID string, year int) (int, error)
	CreatePayment(ctx context.Context, p Payment) (Payment, error)
	GetPayment(ctx context.Context, schoolID, id string) (Payment, error)
	// QueryPayments returns the payments matching filter ordered by payment date, then creation time.
	QueryPayments(ctx context.Context, schoolID string, filter PaymentFilter) ([]Payment, error)
}

type Service struct {
	repo     Repository
	students *student.Service
	cache    core.Cache
	mailSvc  core.EmailService
	logger   core.Logger
	validate *validator.Validate
}

func NewService(
	repo Repository,
	students *student.Service,
	cache core.Cache,
	mailSvc core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:     repo,
		students: students,
		cache:    cache,
		mailSvc:  mailSvc,
		logger:   logger,
		validate: validate,
	}
}

// Heads

func (svc *Service) CreateHead(ctx context.Context, schoolID string, nh NewHead) (Head, error) {
	if err := nh.Validate(svc.validate); err != nil {
		return Head{}, err
	}
	now := time.Now().UTC()
	head, err := svc.repo.CreateHead(ctx, Head{
		ID:          uuid.New().String(),
		SchoolID:    schoolID,
		Name:        nh.Name,
		Description: nh.Description,
		Type:        nh.Type,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return head, errors.Wrap(err, "creating fee head")
}

func (svc *Service) UpdateHead(ctx context.Context, schoolID, id string, uh UpdateHead) (Head, error) {
	if err := uh.Validate(svc.validate); err != nil {
		return Head{}, err
	}
	head, err := svc.repo.GetHead(ctx, schoolID, id)
	if err != nil {
		return Head{}, err
	}

	if uh.Type != "" && uh.Type != head.Type {
		used, err := svc.repo.HeadReferenced(ctx, schoolID, id)
		if err != nil {
			return Head{}, errors.Wrap(err, "checking fee head references")
		}
		if used {
			return Head{}, core.NewValidationError(ErrHeadTypeLocked, core.FieldError{Field: "type", Error: ErrHeadTypeLocked.Error()})
		}
		head.Type = uh.Type
	}
	if uh.Name != "" {
		head.Name = uh.Name
	}
	if uh.Description != "" {
		head.Description = uh.Description
	}
	head.UpdatedAt = time.Now().UTC()

	head, err = svc.repo.UpdateHead(ctx, head)
	if err != nil {
		return Head{}, errors.Wrap(err, "updating fee head")
	}
	// head names show on every statement of the school
	svc.invalidateSchool(ctx, schoolID)
	return head, nil
}

func (svc *Service) GetHead(ctx context.Context, schoolID, id string) (Head, error) {
	return svc.repo.GetHead(ctx, schoolID, id)
}

func (svc *Service) QueryHeads(ctx context.Context, schoolID string) ([]Head, error) {
	return svc.repo.QueryHeads(ctx, schoolID)
}

// Structures

func (svc *Service) SaveStructure(ctx context.Context, schoolID, classID string, ns NewStructure) (ClassStructure, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return ClassStructure{}, err
	}
	for i, e := range ns.Entries {
		if _, err := svc.repo.GetHead(ctx, schoolID, e.FeeHeadID); err != nil {
			if errors.Cause(err) == ErrHeadNotFound {
				return ClassStructure{}, core.NewValidationError(err, core.FieldError{
					Field: fmt.Sprintf("entries[%d].fee_head_id", i), Error: err.Error(),
				})
			}
			return ClassStructure{}, errors.Wrap(err, "getting fee head")
		}
	}

	entries := ns.Entries
	if entries == nil {
		entries = make([]StructureEntry, 0)
	}
	cs, err := svc.repo.SaveStructure(ctx, ClassStructure{
		SchoolID:  schoolID,
		ClassID:   classID,
		Entries:   entries,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return ClassStructure{}, errors.Wrap(err, "saving fee structure")
	}
	svc.invalidateClass(ctx, schoolID, classID)
	return cs, nil
}

func (svc *Service) GetStructure(ctx context.Context, schoolID, classID string) (ClassStructure, error) {
	return svc.repo.GetStructure(ctx, schoolID, classID)
}

// Payments

// CollectPayment records a new payment, numbers its receipt and emails it to the guardian.
func (svc *Service) CollectPayment(ctx context.Context, schoolID string, np NewPayment) (Payment, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Payment{}, err
	}

	std, err := svc.students.GetStudent(ctx, schoolID, np.StudentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return Payment{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return Payment{}, errors.Wrap(err, "getting student")
	}

	paidFor := make([]PaidFor, 0, len(np.PaidFor))
	for i, pf := range np.PaidFor {
		head, err := svc.repo.GetHead(ctx, schoolID, pf.FeeHeadID)
		if err != nil {
			if errors.Cause(err) == ErrHeadNotFound {
				return Payment{}, core.NewValidationError(err, core.FieldError{
					Field: fmt.Sprintf("paid_for[%d].fee_head_id", i), Error: err.Error(),
				})
			}
			return Payment{}, errors.Wrap(err, "getting fee head")
		}
		paidFor = append(paidFor, PaidFor{FeeHeadID: head.ID, FeeHeadName: head.Name, Amount: pf.Amount})
	}

	paymentDate := np.PaymentDate.UTC()
	seq, err := svc.repo.NextReceiptSeq(ctx, schoolID, paymentDate.Year())
	if err != nil {
		return Payment{}, errors.Wrap(err, "numbering receipt")
	}

	p, err := svc.repo.CreatePayment(ctx, Payment{
		ID:            uuid.New().String(),
		SchoolID:      schoolID,
		StudentID:     std.ID,
		ClassID:       std.ClassID,
		PaymentDate:   paymentDate,
		PaymentMode:   np.PaymentMode,
		TransactionID: np.TransactionID,
		PaidFor:       paidFor,
		Discount:      np.Discount,
		Fine:          np.Fine,
		TotalAmount:   np.TotalAmount,
		ReceiptNumber: ReceiptNumber(paymentDate.Year(), seq),
		Remarks:       np.Remarks,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return Payment{}, errors.Wrap(err, "creating payment")
	}

	svc.invalidate(ctx, schoolID, core.StudentCacheKey(schoolID, std.ID))
	if msg := NewReceiptMessage(std, p); msg != nil {
		svc.mailSvc.SendMessages(msg)
	}
	return p, nil
}

func (svc *Service) GetPayment(ctx context.Context, schoolID, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, schoolID, id)
}

func (svc *Service) QueryPayments(ctx context.Context, schoolID string, filter PaymentFilter) ([]Payment, error) {
	filter.Clean()
	return svc.repo.QueryPayments(ctx, schoolID, filter)
}

// FeeStatus computes the fee statement of a student. A class without fee structure is not an error.
func (svc *Service) FeeStatus(ctx context.Context, schoolID, studentID string) (Statement, error) {
	std, err := svc.students.GetStudent(ctx, schoolID, studentID)
	if err != nil {
		return Statement{}, err
	}

	key := core.StudentCacheKey(schoolID, studentID)
	var stmt Statement
	found, gen, err := svc.cache.Get(ctx, key, statementCacheField, &stmt)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("reading cached fee status: %v", err), err, core.Tenant{SchoolID: schoolID, StudentID: studentID})
	} else if found {
		return stmt, nil
	}

	cs, err := svc.repo.GetStructure(ctx, schoolID, std.ClassID)
	if err != nil && errors.Cause(err) != ErrStructureNotFound {
		return Statement{}, errors.Wrap(err, "getting fee structure")
	}
	heads, err := svc.repo.QueryHeads(ctx, schoolID)
	if err != nil {
		return Statement{}, errors.Wrap(err, "querying fee heads")
	}
	payments, err := svc.repo.QueryPayments(ctx, schoolID, PaymentFilter{StudentID: studentID})
	if err != nil {
		return Statement{}, errors.Wrap(err, "querying payments")
	}

	headNames := make(map[string]string, len(heads))
	for _, h := range heads {
		headNames[h.ID] = h.Name
	}
	lines := ComputeFeeStatus(cs.Entries, headNames, payments)
	stmt = Statement{Student: std, Lines: lines, Totals: Summarize(lines)}

	if err = svc.cache.Set(ctx, key, statementCacheField, stmt, gen); err != nil {
		svc.logger.Warn(fmt.Sprintf("caching fee status: %v", err), err, core.Tenant{SchoolID: schoolID, StudentID: studentID})
	}
	return stmt, nil
}

func (svc *Service) invalidate(ctx context.Context, schoolID string, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := svc.cache.Invalidate(ctx, keys...); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating cache: %v", err), err, core.Tenant{SchoolID: schoolID})
	}
}

func (svc *Service) invalidateClass(ctx context.Context, schoolID, classID string) {
	svc.invalidateStudents(ctx, schoolID, student.QueryFilter{ClassID: classID})
}

func (svc *Service) invalidateSchool(ctx context.Context, schoolID string) {
	svc.invalidateStudents(ctx, schoolID, student.QueryFilter{})
}

func (svc *Service) invalidateStudents(ctx context.Context, schoolID string, filter student.QueryFilter) {
	students, err := svc.students.QueryStudents(ctx, schoolID, filter)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("querying students to invalidate: %v", err), err, core.Tenant{SchoolID: schoolID})
		return
	}
	keys := make([]string, 0, len(students))
	for _, std := range students {
		keys = append(keys, core.StudentCacheKey(schoolID, std.ID))
	}
	svc.invalidate(ctx, schoolID, keys...)
}
