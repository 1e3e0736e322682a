package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
)

var amina = student.Student{ID: "s1", SchoolID: "sch", ClassID: "grade-1", Name: "Amina", AdmissionNumber: "ADM-001"}

func openWorkbook(t *testing.T, buf *bytes.Buffer) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func assertCells(t *testing.T, f *excelize.File, sheetName string, want map[string]string) {
	t.Helper()
	for cell, val := range want {
		got, err := f.GetCellValue(sheetName, cell, excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		assert.Equal(t, val, got, cell)
	}
}

func TestFeeStatement(t *testing.T) {
	stmt := fee.Statement{
		Student: amina,
		Lines: []fee.LedgerLine{
			{
				FeeHeadID:     "h1",
				FeeHeadName:   "Tuition",
				TotalPayable:  decimal.NewFromInt(5000),
				TotalPaid:     decimal.NewFromInt(4000),
				TotalDiscount: decimal.NewFromInt(1000),
				TotalFine:     decimal.Zero,
				Due:           decimal.NewFromInt(1000),
			},
			{
				FeeHeadID:    "h9",
				FeeHeadName:  "Library",
				TotalPayable: decimal.Zero,
				TotalPaid:    decimal.RequireFromString("150.5"),
				Due:          decimal.Zero,
				Retired:      true,
				Overpaid:     true,
			},
		},
		Totals: fee.Totals{
			Payable:  decimal.NewFromInt(5000),
			Paid:     decimal.RequireFromString("4150.5"),
			Discount: decimal.NewFromInt(1000),
			Due:      decimal.NewFromInt(1000),
			Overpaid: true,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, FeeStatement(&buf, stmt))
	assert.NotZero(t, buf.Len())

	f := openWorkbook(t, &buf)
	assert.Equal(t, []string{FeeStatementSheet}, f.GetSheetList())
	assertCells(t, f, FeeStatementSheet, map[string]string{
		"A1": "Fee statement",
		"B2": "Amina",
		"B3": "ADM-001",
		"B4": "grade-1",
		"A6": "Fee head",
		"F6": "Due",
		"G6": "Overpaid",
		"A7": "Tuition",
		"B7": "5000",
		"C7": "4000",
		"D7": "1000",
		"F7": "1000",
		"G7": "",
		"A8": "Library (retired)",
		"C8": "150.5",
		"G8": "Yes",
		"A9": "Total",
		"C9": "4150.5",
		"F9": "1000",
		"G9": "Yes",
	})
}

func TestReportCard(t *testing.T) {
	view := exam.ReportCardView{
		Student: amina,
		Terms:   []exam.Term{{ID: "t1", Name: "Mid-term"}, {ID: "t2", Name: "Final"}},
		Card: exam.ReportCard{
			Rows: []exam.ReportCardRow{
				{
					SubjectName: "English",
					Terms: []exam.TermResult{
						{TermID: "t1", Scheduled: true, Graded: true, Max: 100, Obtained: 80},
						{TermID: "t2", Scheduled: true, Max: 100},
					},
					RowMax:      200,
					RowObtained: 80,
					Passed:      false,
					Ungraded:    true,
				},
				{
					SubjectName: "Maths",
					Terms: []exam.TermResult{
						{TermID: "t1"},
						{TermID: "t2", Scheduled: true, Graded: true, Max: 50, Obtained: 45},
					},
					RowMax:      50,
					RowObtained: 45,
					Passed:      true,
				},
			},
			Summary: exam.ReportCardSummary{
				GrandTotalMax:      250,
				GrandTotalObtained: 125,
				PercentageText:     "50.00",
				Grade:              "F",
				Result:             exam.ResultFail,
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ReportCard(&buf, view))

	f := openWorkbook(t, &buf)
	assert.Equal(t, []string{ReportCardSheet}, f.GetSheetList())
	assertCells(t, f, ReportCardSheet, map[string]string{
		"A1":  "Report card",
		"B2":  "Amina",
		"A6":  "Subject",
		"B6":  "Mid-term max",
		"C6":  "Mid-term obtained",
		"D6":  "Final max",
		"E6":  "Final obtained",
		"F6":  "Total max",
		"H6":  "Result",
		"A7":  "English",
		"B7":  "100",
		"C7":  "80",
		"E7":  "N/A",
		"F7":  "200",
		"H7":  "Fail",
		"A8":  "Maths",
		"B8":  "-",
		"C8":  "-",
		"E8":  "45",
		"H8":  "Pass",
		"A10": "Grand total",
		"B10": "250",
		"C10": "125",
		"B11": "50.00",
		"B12": "F",
		"B13": "Fail",
	})
}
