package exam

import (
	"sort"

	"github.com/trezcool/shule/core"
)

// PassPercentage is the minimum percentage a subject needs in every term.
const PassPercentage = 33.0

var gradeTable = []struct {
	min   float64
	grade string
}{
	{90, "A+"},
	{80, "A"},
	{70, "B"},
	{60, "C"},
	{50, "D"},
	{PassPercentage, "E"},
}

// Grade maps a percentage to its letter grade, first match wins.
func Grade(percentage float64) string {
	for _, g := range gradeTable {
		if percentage >= g.min {
			return g.grade
		}
	}
	return "F"
}

// ComputeReportCard aggregates the schedules and marks of the selected terms.
//
// Subjects are the union of the scheduled subjects, sorted by name. A subject passes only
// if it passes in every term, and any failed subject fails the card with grade F.
// Missing schedules or marks contribute zero; marks that were never entered are
// still counted as 0 but reported as ungraded.
func ComputeReportCard(termIDs []string, schedules map[string][]ScheduleEntry, marks map[string]Marks) ReportCard {
	seen := make(map[string]bool)
	subjects := make([]string, 0)
	for _, termID := range termIDs {
		for _, e := range schedules[termID] {
			if !seen[e.SubjectName] {
				seen[e.SubjectName] = true
				subjects = append(subjects, e.SubjectName)
			}
		}
	}
	sort.Strings(subjects)

	card := ReportCard{Rows: make([]ReportCardRow, 0, len(subjects))}
	for _, subject := range subjects {
		row := ReportCardRow{
			SubjectName: subject,
			Terms:       make([]TermResult, 0, len(termIDs)),
			Passed:      true,
		}
		for _, termID := range termIDs {
			tr := TermResult{TermID: termID}
			tr.Max, tr.Scheduled = Schedule{Subjects: schedules[termID]}.MaxMarks(subject)

			if entry, ok := marks[termID].Find(subject); ok && entry.MarksObtained != nil {
				tr.Obtained = *entry.MarksObtained
				tr.Graded = true
			}
			tr.Percentage = core.Percentage(tr.Obtained, tr.Max)
			tr.Passed = tr.Max == 0 || tr.Percentage >= PassPercentage

			if tr.Scheduled && !tr.Graded {
				row.Ungraded = true
			}
			if !tr.Passed {
				row.Passed = false
			}
			row.RowMax += tr.Max
			row.RowObtained += tr.Obtained
			row.Terms = append(row.Terms, tr)
		}

		card.Summary.GrandTotalMax += row.RowMax
		card.Summary.GrandTotalObtained += row.RowObtained
		card.Rows = append(card.Rows, row)
	}

	s := &card.Summary
	s.Percentage = core.Percentage(s.GrandTotalObtained, s.GrandTotalMax)
	s.PercentageText = core.FormatPercent(s.Percentage)
	s.Grade = Grade(s.Percentage)
	s.Result = ResultPass
	for _, row := range card.Rows {
		if !row.Passed {
			s.Result = ResultFail
			s.Grade = "F"
		}
		if row.Ungraded {
			s.HasUngraded = true
		}
	}
	return card
}
