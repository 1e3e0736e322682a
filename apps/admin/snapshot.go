package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
)

type studentSnapshot struct {
	Name            string `yaml:"name"`
	AdmissionNumber string `yaml:"admission_number"`
	ClassID         string `yaml:"class_id"`
	GuardianName    string `yaml:"guardian_name"`
}

func (s studentSnapshot) student() student.Student {
	return student.Student{
		ClassID:         s.ClassID,
		Name:            s.Name,
		AdmissionNumber: s.AdmissionNumber,
		GuardianName:    s.GuardianName,
	}
}

type headSnapshot struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type paidForSnapshot struct {
	FeeHeadID string          `yaml:"fee_head_id"`
	Amount    decimal.Decimal `yaml:"amount"`
}

type paymentSnapshot struct {
	ReceiptNumber string            `yaml:"receipt_number"`
	PaymentDate   time.Time         `yaml:"payment_date"`
	PaidFor       []paidForSnapshot `yaml:"paid_for"`
	Discount      decimal.Decimal   `yaml:"discount"`
	Fine          decimal.Decimal   `yaml:"fine"`
}

// ledgerSnapshot is an offline export of everything needed to compute a fee statement.
type ledgerSnapshot struct {
	Student   studentSnapshot      `yaml:"student"`
	Heads     []headSnapshot       `yaml:"heads"`
	Structure []fee.StructureEntry `yaml:"structure"`
	Payments  []paymentSnapshot    `yaml:"payments"`
}

func (ls ledgerSnapshot) statement() fee.Statement {
	headNames := make(map[string]string, len(ls.Heads))
	for _, h := range ls.Heads {
		headNames[h.ID] = h.Name
	}

	payments := make([]fee.Payment, 0, len(ls.Payments))
	for _, ps := range ls.Payments {
		p := fee.Payment{
			PaymentDate:   ps.PaymentDate,
			ReceiptNumber: ps.ReceiptNumber,
			Discount:      ps.Discount,
			Fine:          ps.Fine,
			PaidFor:       make([]fee.PaidFor, 0, len(ps.PaidFor)),
		}
		for _, pf := range ps.PaidFor {
			p.PaidFor = append(p.PaidFor, fee.PaidFor{FeeHeadID: pf.FeeHeadID, FeeHeadName: headNames[pf.FeeHeadID], Amount: pf.Amount})
		}
		p.TotalAmount = fee.ExpectedTotal(p.PaidFor, p.Discount, p.Fine)
		payments = append(payments, p)
	}

	lines := fee.ComputeFeeStatus(ls.Structure, headNames, payments)
	return fee.Statement{Student: ls.Student.student(), Lines: lines, Totals: fee.Summarize(lines)}
}

type termSnapshot struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// reportCardSnapshot is an offline export of the schedules and marks of a student, keyed by term id.
type reportCardSnapshot struct {
	Student   studentSnapshot                 `yaml:"student"`
	Terms     []termSnapshot                  `yaml:"terms"`
	Schedules map[string][]exam.ScheduleEntry `yaml:"schedules"`
	Marks     map[string][]exam.MarkEntry     `yaml:"marks"`
}

func (rs reportCardSnapshot) view(termIDs []string) (exam.ReportCardView, error) {
	if len(termIDs) == 0 {
		return exam.ReportCardView{}, exam.ErrNoTerms
	}

	known := make(map[string]termSnapshot, len(rs.Terms))
	for _, t := range rs.Terms {
		known[t.ID] = t
	}
	terms := make([]exam.Term, 0, len(termIDs))
	marks := make(map[string]exam.Marks, len(termIDs))
	for _, id := range termIDs {
		t, ok := known[id]
		if !ok {
			return exam.ReportCardView{}, errors.Wrapf(exam.ErrTermNotFound, "term %q", id)
		}
		terms = append(terms, exam.Term{ID: t.ID, Name: t.Name})
		marks[id] = exam.Marks{TermID: id, Marks: rs.Marks[id]}
	}

	return exam.ReportCardView{
		Student: rs.Student.student(),
		Terms:   terms,
		Card:    exam.ComputeReportCard(termIDs, rs.Schedules, marks),
	}, nil
}

func readSnapshot(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading snapshot")
	}
	if err = yaml.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "parsing snapshot %s", path)
	}
	return nil
}
