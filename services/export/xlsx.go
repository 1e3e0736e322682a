package export

import (
	"io"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	FeeStatementSheet = "Fee statement"
	ReportCardSheet   = "Report card"

	// excelize builtin number format "#,##0.00"
	amountNumFmt = 4
)

// sheet writes rows top to bottom on a single worksheet.
type sheet struct {
	f      *excelize.File
	name   string
	row    int
	amount int // style id
	bold   int // style id
}

func newSheet(name string) (*sheet, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: amountNumFmt})
	if err != nil {
		return nil, errors.Wrap(err, "creating amount style")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}
	return &sheet{f: f, name: name, amount: amount, bold: bold}, nil
}

// appendRow writes values on the next row; decimals are written as numbers with the amount style.
func (s *sheet) appendRow(values ...interface{}) error {
	s.row++
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, s.row)
		if err != nil {
			return err
		}
		if d, ok := v.(decimal.Decimal); ok {
			if err = s.f.SetCellValue(s.name, cell, d.InexactFloat64()); err != nil {
				return err
			}
			if err = s.f.SetCellStyle(s.name, cell, cell, s.amount); err != nil {
				return err
			}
			continue
		}
		if err = s.f.SetCellValue(s.name, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *sheet) appendHeader(values ...interface{}) error {
	if err := s.appendRow(values...); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, s.row)
	last, _ := excelize.CoordinatesToCellName(len(values), s.row)
	return s.f.SetCellStyle(s.name, first, last, s.bold)
}

func (s *sheet) skipRow() { s.row++ }

func (s *sheet) appendStudent(std student.Student) error {
	for _, kv := range [][]interface{}{
		{"Student", std.Name},
		{"Admission number", std.AdmissionNumber},
		{"Class", std.ClassID},
	} {
		if err := s.appendRow(kv...); err != nil {
			return err
		}
	}
	return nil
}

func (s *sheet) write(w io.Writer) error {
	defer s.f.Close()
	return errors.Wrap(s.f.Write(w), "writing xlsx")
}

func yes(b bool) string {
	if b {
		return "Yes"
	}
	return ""
}

// FeeStatement writes the statement as a single sheet workbook.
func FeeStatement(w io.Writer, stmt fee.Statement) error {
	s, err := newSheet(FeeStatementSheet)
	if err != nil {
		return err
	}

	if err = s.appendHeader("Fee statement"); err != nil {
		return errors.Wrap(err, "writing title")
	}
	if err = s.appendStudent(stmt.Student); err != nil {
		return errors.Wrap(err, "writing student")
	}
	s.skipRow()

	if err = s.appendHeader("Fee head", "Payable", "Paid", "Discount", "Fine", "Due", "Overpaid"); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, l := range stmt.Lines {
		name := l.FeeHeadName
		if l.Retired {
			name += " (retired)"
		}
		if err = s.appendRow(name, l.TotalPayable, l.TotalPaid, l.TotalDiscount, l.TotalFine, l.Due, yes(l.Overpaid)); err != nil {
			return errors.Wrapf(err, "writing line %s", l.FeeHeadID)
		}
	}
	t := stmt.Totals
	if err = s.appendRow("Total", t.Payable, t.Paid, t.Discount, t.Fine, t.Due, yes(t.Overpaid)); err != nil {
		return errors.Wrap(err, "writing totals")
	}
	return s.write(w)
}

// ReportCard writes the report card as a single sheet workbook, with one max/obtained column pair per term.
func ReportCard(w io.Writer, v exam.ReportCardView) error {
	s, err := newSheet(ReportCardSheet)
	if err != nil {
		return err
	}

	if err = s.appendHeader("Report card"); err != nil {
		return errors.Wrap(err, "writing title")
	}
	if err = s.appendStudent(v.Student); err != nil {
		return errors.Wrap(err, "writing student")
	}
	s.skipRow()

	header := []interface{}{"Subject"}
	for _, t := range v.Terms {
		header = append(header, t.Name+" max", t.Name+" obtained")
	}
	header = append(header, "Total max", "Total obtained", "Result")
	if err = s.appendHeader(header...); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for _, row := range v.Card.Rows {
		values := []interface{}{row.SubjectName}
		for _, tr := range row.Terms {
			switch {
			case !tr.Scheduled:
				values = append(values, "-", "-")
			case !tr.Graded:
				values = append(values, tr.Max, "N/A")
			default:
				values = append(values, tr.Max, tr.Obtained)
			}
		}
		result := exam.ResultPass
		if !row.Passed {
			result = exam.ResultFail
		}
		values = append(values, row.RowMax, row.RowObtained, result)
		if err = s.appendRow(values...); err != nil {
			return errors.Wrapf(err, "writing subject %s", row.SubjectName)
		}
	}
	s.skipRow()

	sum := v.Card.Summary
	for _, kv := range [][]interface{}{
		{"Grand total", sum.GrandTotalMax, sum.GrandTotalObtained},
		{"Percentage", sum.PercentageText},
		{"Grade", sum.Grade},
		{"Result", sum.Result},
	} {
		if err = s.appendRow(kv...); err != nil {
			return errors.Wrap(err, "writing summary")
		}
	}
	return s.write(w)
}
