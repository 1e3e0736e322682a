package exam

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(f float64) *float64 { return &f }

func sched(entries ...ScheduleEntry) []ScheduleEntry { return entries }

func subj(name string, max float64) ScheduleEntry {
	return ScheduleEntry{SubjectName: name, Date: "2024-03-01", StartTime: "09:00", EndTime: "11:00", MaxMarks: max}
}

func marksOf(entries ...MarkEntry) Marks { return Marks{Marks: entries} }

func mark(name string, obtained float64) MarkEntry {
	return MarkEntry{SubjectName: name, MarksObtained: fp(obtained)}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, "A+"},
		{90.0, "A+"},
		{89.99, "A"},
		{80, "A"},
		{79.999, "B"},
		{70, "B"},
		{60, "C"},
		{50, "D"},
		{49.5, "E"},
		{33, "E"},
		{32.99, "F"},
		{0, "F"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Grade(tt.pct))
		})
	}
}

func TestComputeReportCard(t *testing.T) {
	t.Run("one weak term fails the subject and the card", func(t *testing.T) {
		card := ComputeReportCard(
			[]string{"t1", "t2"},
			map[string][]ScheduleEntry{
				"t1": sched(subj("Math", 50), subj("English", 50)),
				"t2": sched(subj("Math", 50), subj("English", 50)),
			},
			map[string]Marks{
				"t1": marksOf(mark("Math", 40), mark("English", 50)),
				"t2": marksOf(mark("Math", 10), mark("English", 50)),
			},
		)
		require.Len(t, card.Rows, 2)
		english, maths := card.Rows[0], card.Rows[1]
		assert.Equal(t, "English", english.SubjectName)
		assert.True(t, english.Passed)
		assert.Equal(t, "Math", maths.SubjectName)
		assert.False(t, maths.Passed)
		assert.Equal(t, float64(100), maths.RowMax)
		assert.Equal(t, float64(50), maths.RowObtained)
		assert.True(t, maths.Terms[0].Passed)
		assert.Equal(t, float64(80), maths.Terms[0].Percentage)
		assert.False(t, maths.Terms[1].Passed)

		// 150/200 = 75% would be a B, but the failed subject wins
		assert.Equal(t, float64(75), card.Summary.Percentage)
		assert.Equal(t, ResultFail, card.Summary.Result)
		assert.Equal(t, "F", card.Summary.Grade)
	})

	t.Run("grade boundary", func(t *testing.T) {
		card := ComputeReportCard(
			[]string{"t1"},
			map[string][]ScheduleEntry{"t1": sched(subj("Math", 100))},
			map[string]Marks{"t1": marksOf(mark("Math", 90))},
		)
		assert.Equal(t, "90.00", card.Summary.PercentageText)
		assert.Equal(t, "A+", card.Summary.Grade)
		assert.Equal(t, ResultPass, card.Summary.Result)

		card = ComputeReportCard(
			[]string{"t1"},
			map[string][]ScheduleEntry{"t1": sched(subj("Math", 10000))},
			map[string]Marks{"t1": marksOf(mark("Math", 8999))},
		)
		assert.Equal(t, "89.99", card.Summary.PercentageText)
		assert.Equal(t, "A", card.Summary.Grade)
	})

	t.Run("missing marks count as zero but are flagged", func(t *testing.T) {
		card := ComputeReportCard(
			[]string{"t1"},
			map[string][]ScheduleEntry{"t1": sched(subj("Science", 100), subj("Art", 100))},
			map[string]Marks{"t1": {Marks: []MarkEntry{mark("Art", 70), {SubjectName: "Science"}}}},
		)
		require.Len(t, card.Rows, 2)
		science := card.Rows[1]
		assert.Equal(t, "Science", science.SubjectName)
		assert.Equal(t, float64(0), science.RowObtained)
		assert.False(t, science.Passed)
		assert.True(t, science.Ungraded)
		assert.False(t, science.Terms[0].Graded)
		assert.True(t, science.Terms[0].Scheduled)

		assert.False(t, card.Rows[0].Ungraded)
		assert.True(t, card.Summary.HasUngraded)
		assert.Equal(t, ResultFail, card.Summary.Result)
	})

	t.Run("no marks entry at all", func(t *testing.T) {
		card := ComputeReportCard(
			[]string{"t1"},
			map[string][]ScheduleEntry{"t1": sched(subj("Math", 100))},
			nil,
		)
		require.Len(t, card.Rows, 1)
		assert.False(t, card.Rows[0].Passed)
		assert.True(t, card.Rows[0].Ungraded)
		assert.Equal(t, "F", card.Summary.Grade)
	})

	t.Run("explicit zero is graded", func(t *testing.T) {
		card := ComputeReportCard(
			[]string{"t1"},
			map[string][]ScheduleEntry{"t1": sched(subj("Math", 100))},
			map[string]Marks{"t1": marksOf(mark("Math", 0))},
		)
		assert.False(t, card.Rows[0].Ungraded)
		assert.True(t, card.Rows[0].Terms[0].Graded)
		assert.False(t, card.Summary.HasUngraded)
	})

	t.Run("subject missing from a term passes that term", func(t *testing.T) {
		card := ComputeReportCard(
			[]string{"t1", "t2"},
			map[string][]ScheduleEntry{
				"t1": sched(subj("Math", 50), subj("Music", 20)),
				"t2": sched(subj("Math", 50)),
			},
			map[string]Marks{
				"t1": marksOf(mark("Math", 30), mark("Music", 10)),
				"t2": marksOf(mark("Math", 25)),
			},
		)
		require.Len(t, card.Rows, 2)
		music := card.Rows[1]
		assert.Equal(t, "Music", music.SubjectName)
		assert.True(t, music.Passed)
		assert.False(t, music.Terms[1].Scheduled)
		assert.Equal(t, float64(0), music.Terms[1].Max)
		assert.True(t, music.Terms[1].Passed)
		assert.False(t, music.Ungraded)
		assert.Equal(t, float64(20), music.RowMax)
		assert.Equal(t, ResultPass, card.Summary.Result)
	})

	t.Run("threshold uses full precision", func(t *testing.T) {
		card := ComputeReportCard(
			[]string{"t1"},
			map[string][]ScheduleEntry{"t1": sched(subj("Math", 300))},
			map[string]Marks{"t1": marksOf(mark("Math", 98.99))}, // 32.996...% rounds to 33.00 but fails
		)
		assert.False(t, card.Rows[0].Passed)
		assert.Equal(t, "33.00", card.Summary.PercentageText)
		assert.Equal(t, ResultFail, card.Summary.Result)

		card = ComputeReportCard(
			[]string{"t1"},
			map[string][]ScheduleEntry{"t1": sched(subj("Math", 100))},
			map[string]Marks{"t1": marksOf(mark("Math", 33))},
		)
		assert.True(t, card.Rows[0].Passed)
		assert.Equal(t, "E", card.Summary.Grade)
	})

	t.Run("nothing scheduled", func(t *testing.T) {
		card := ComputeReportCard([]string{"t1", "t2"}, nil, nil)
		assert.Empty(t, card.Rows)
		assert.Equal(t, float64(0), card.Summary.Percentage)
		assert.False(t, math.IsNaN(card.Summary.Percentage))
		assert.Equal(t, "0.00", card.Summary.PercentageText)
		assert.Equal(t, ResultPass, card.Summary.Result)
	})

	t.Run("unselected terms are ignored", func(t *testing.T) {
		card := ComputeReportCard(
			[]string{"t2"},
			map[string][]ScheduleEntry{"t1": sched(subj("Math", 100)), "t2": sched(subj("English", 100))},
			map[string]Marks{"t1": marksOf(mark("Math", 0)), "t2": marksOf(mark("English", 75))},
		)
		require.Len(t, card.Rows, 1)
		assert.Equal(t, "English", card.Rows[0].SubjectName)
		assert.Equal(t, "B", card.Summary.Grade)
	})
}

func TestComputeReportCard_properties(t *testing.T) {
	schedules := map[string][]ScheduleEntry{
		"t1": sched(subj("Zoology", 100), subj("biology", 100), subj("Algebra", 100)),
		"t2": sched(subj("Chemistry", 100), subj("Algebra", 100)),
	}
	marks := map[string]Marks{
		"t1": marksOf(mark("Zoology", 95), mark("biology", 91), mark("Algebra", 99)),
		"t2": marksOf(mark("Chemistry", 100), mark("Algebra", 32)),
	}

	t.Run("subjects sorted regardless of authoring order", func(t *testing.T) {
		card := ComputeReportCard([]string{"t2", "t1"}, schedules, marks)
		names := make([]string, 0, len(card.Rows))
		for _, r := range card.Rows {
			names = append(names, r.SubjectName)
		}
		assert.Equal(t, []string{"Algebra", "Chemistry", "Zoology", "biology"}, names)
	})

	t.Run("term columns follow the requested order", func(t *testing.T) {
		card := ComputeReportCard([]string{"t2", "t1"}, schedules, marks)
		assert.Equal(t, "t2", card.Rows[0].Terms[0].TermID)
		assert.Equal(t, "t1", card.Rows[0].Terms[1].TermID)
	})

	t.Run("fail dominates a high percentage", func(t *testing.T) {
		card := ComputeReportCard([]string{"t1", "t2"}, schedules, marks)
		assert.Greater(t, card.Summary.Percentage, 80.0)
		assert.Equal(t, ResultFail, card.Summary.Result)
		assert.Equal(t, "F", card.Summary.Grade)
	})

	t.Run("idempotent", func(t *testing.T) {
		assert.Equal(t,
			ComputeReportCard([]string{"t1", "t2"}, schedules, marks),
			ComputeReportCard([]string{"t1", "t2"}, schedules, marks),
		)
	})
}
