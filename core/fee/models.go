package fee

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

// Fee head types
const (
	HeadOneTime   = "One-time"
	HeadAnnual    = "Annual"
	HeadMonthly   = "Monthly"
	HeadQuarterly = "Quarterly"
)

// Payment modes
const (
	ModeCash         = "Cash"
	ModeCheque       = "Cheque"
	ModeCard         = "Card"
	ModeBankTransfer = "Bank Transfer"
	ModeOnline       = "Online"
)

var (
	HeadTypes    = []string{HeadOneTime, HeadAnnual, HeadMonthly, HeadQuarterly}
	PaymentModes = []string{ModeCash, ModeCheque, ModeCard, ModeBankTransfer, ModeOnline}
)

// Head is a named, reusable fee component.
type Head struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type NewHead struct {
	Name        string `json:"name" validate:"required,notblank"`
	Description string `json:"description"`
	Type        string `json:"type" validate:"required,fee_head_type"`
}

func (nh *NewHead) Validate(validate *validator.Validate) error {
	nh.Name = core.CleanString(nh.Name)
	nh.Description = core.CleanString(nh.Description)
	nh.Type = core.CleanString(nh.Type)
	return validate.Struct(nh)
}

// UpdateHead defines what may be changed on an existing Head. Empty fields are left untouched.
type UpdateHead struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type" validate:"omitempty,fee_head_type"`
}

func (uh *UpdateHead) Validate(validate *validator.Validate) error {
	uh.Name = core.CleanString(uh.Name)
	uh.Description = core.CleanString(uh.Description)
	uh.Type = core.CleanString(uh.Type)
	return validate.Struct(uh)
}

type StructureEntry struct {
	FeeHeadID string          `json:"fee_head_id" yaml:"fee_head_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" yaml:"amount"`
}

// ClassStructure is the fee structure of a class; entry order is display order.
type ClassStructure struct {
	SchoolID  string           `json:"school_id"`
	ClassID   string           `json:"class_id"`
	Entries   []StructureEntry `json:"entries"`
	UpdatedAt time.Time        `json:"updated_at"` // UTC
}

type NewStructure struct {
	Entries []StructureEntry `json:"entries" validate:"dive"`
}

func (ns *NewStructure) Validate(validate *validator.Validate) error {
	for i := range ns.Entries {
		ns.Entries[i].FeeHeadID = core.CleanString(ns.Entries[i].FeeHeadID)
	}
	return validate.Struct(ns)
}

type PaidFor struct {
	FeeHeadID   string          `json:"fee_head_id" validate:"required"`
	FeeHeadName string          `json:"fee_head_name"`
	Amount      decimal.Decimal `json:"amount"`
}

// Payment is an immutable receipt. Corrections are new payments, never edits.
type Payment struct {
	ID            string          `json:"id"`
	SchoolID      string          `json:"school_id"`
	StudentID     string          `json:"student_id"`
	ClassID       string          `json:"class_id"`
	PaymentDate   time.Time       `json:"payment_date"`
	PaymentMode   string          `json:"payment_mode"`
	TransactionID string          `json:"transaction_id,omitempty"`
	PaidFor       []PaidFor       `json:"paid_for"`
	Discount      decimal.Decimal `json:"discount"`
	Fine          decimal.Decimal `json:"fine"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ReceiptNumber string          `json:"receipt_number"`
	Remarks       string          `json:"remarks,omitempty"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
}

// ExpectedTotal is what TotalAmount must be: paid amounts + fine - discount.
func ExpectedTotal(paidFor []PaidFor, discount, fine decimal.Decimal) decimal.Decimal {
	total := fine.Sub(discount)
	for _, pf := range paidFor {
		total = total.Add(pf.Amount)
	}
	return total
}

// NewPayment contains information needed to collect a payment.
type NewPayment struct {
	StudentID     string          `json:"student_id" validate:"required"`
	PaymentDate   time.Time       `json:"payment_date" validate:"required"`
	PaymentMode   string          `json:"payment_mode" validate:"required,payment_mode"`
	TransactionID string          `json:"transaction_id"`
	PaidFor       []PaidFor       `json:"paid_for" validate:"required,min=1,dive"`
	Discount      decimal.Decimal `json:"discount"`
	Fine          decimal.Decimal `json:"fine"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Remarks       string          `json:"remarks"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.PaymentMode = core.CleanString(np.PaymentMode)
	np.TransactionID = core.CleanString(np.TransactionID)
	np.Remarks = core.CleanString(np.Remarks)
	for i := range np.PaidFor {
		np.PaidFor[i].FeeHeadID = core.CleanString(np.PaidFor[i].FeeHeadID)
	}
	return validate.Struct(np)
}

type PaymentFilter struct {
	StudentID string    `query:"student"`
	ClassID   string    `query:"class"`
	From      time.Time `query:"from"` // inclusive
	To        time.Time `query:"to"`   // exclusive
}

func (pf *PaymentFilter) Clean() {
	pf.StudentID = core.CleanString(pf.StudentID)
	pf.ClassID = core.CleanString(pf.ClassID)
}

// Match reports whether p satisfies every set field of the filter.
func (pf PaymentFilter) Match(p Payment) bool {
	if pf.StudentID != "" && p.StudentID != pf.StudentID {
		return false
	}
	if pf.ClassID != "" && p.ClassID != pf.ClassID {
		return false
	}
	if !pf.From.IsZero() && p.PaymentDate.Before(pf.From) {
		return false
	}
	if !pf.To.IsZero() && !p.PaymentDate.Before(pf.To) {
		return false
	}
	return true
}

// LedgerLine is the derived per fee head position of a student. It is never stored.
type LedgerLine struct {
	FeeHeadID     string          `json:"fee_head_id"`
	FeeHeadName   string          `json:"fee_head_name"`
	TotalPayable  decimal.Decimal `json:"total_payable"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TotalFine     decimal.Decimal `json:"total_fine"`
	Due           decimal.Decimal `json:"due"`
	Retired       bool            `json:"retired"` // head absent from the class structure
	Overpaid      bool            `json:"overpaid"` // paid more than payable; due is clamped at zero
}

type Totals struct {
	Payable  decimal.Decimal `json:"payable"`
	Paid     decimal.Decimal `json:"paid"`
	Discount decimal.Decimal `json:"discount"`
	Fine     decimal.Decimal `json:"fine"`
	Due      decimal.Decimal `json:"due"`
	Overpaid bool            `json:"overpaid"` // any line is overpaid
}

// Statement is the fee status of a student.
type Statement struct {
	Student student.Student `json:"student"`
	Lines   []LedgerLine    `json:"lines"`
	Totals  Totals          `json:"totals"`
}
