// Package storagetest holds the behaviour every storage backend must share.
// Each backend runs these against its own repositories; records are written
// under a fresh school id so that a shared database needs no cleanup.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
)

// base is millisecond aligned, the coarsest precision of the backends.
var base = time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newStudent(t *testing.T, repo student.Repository, schoolID, classID, name, admissionNumber string) student.Student {
	t.Helper()
	std, err := repo.CreateStudent(context.Background(), student.Student{
		ID:              uuid.New().String(),
		SchoolID:        schoolID,
		ClassID:         classID,
		Name:            name,
		AdmissionNumber: admissionNumber,
		GuardianName:    "Guardian of " + name,
		GuardianEmail:   "guardian@shule.test",
		CreatedAt:       base,
		UpdatedAt:       base,
	})
	require.NoError(t, err)
	return std
}

func studentNames(students []student.Student) []string {
	names := make([]string, 0, len(students))
	for _, std := range students {
		names = append(names, std.Name)
	}
	return names
}

// StudentRepository checks the student.Repository contract.
func StudentRepository(t *testing.T, repo student.Repository) {
	ctx := context.Background()
	school := uuid.New().String()

	amina := newStudent(t, repo, school, "grade-1", "Amina Njeri", "ADM-001")
	newStudent(t, repo, school, "grade-2", "Baraka Otieno", "ADM-002")
	newStudent(t, repo, school, "grade-1", "Chausiku Wanjiru", "ADM-100")

	t.Run("admission number is unique per school", func(t *testing.T) {
		assert.Equal(t, student.ErrAdmissionNumberExists, errors.Cause(repo.CheckAdmissionNumberUniqueness(ctx, school, "ADM-001")))
		assert.NoError(t, repo.CheckAdmissionNumberUniqueness(ctx, school, "ADM-999"))
		assert.NoError(t, repo.CheckAdmissionNumberUniqueness(ctx, uuid.New().String(), "ADM-001"))

		_, err := repo.CreateStudent(ctx, student.Student{
			ID: uuid.New().String(), SchoolID: school, ClassID: "grade-3", Name: "Dup", AdmissionNumber: "ADM-001",
			CreatedAt: base, UpdatedAt: base,
		})
		assert.Equal(t, student.ErrAdmissionNumberExists, errors.Cause(err))
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetStudent(ctx, school, amina.ID)
		require.NoError(t, err)
		assert.Equal(t, amina.Name, got.Name)
		assert.Equal(t, amina.ClassID, got.ClassID)
		assert.Equal(t, amina.AdmissionNumber, got.AdmissionNumber)
		assert.Equal(t, amina.GuardianEmail, got.GuardianEmail)
		assert.True(t, base.Equal(got.CreatedAt), "created at = %v", got.CreatedAt)

		_, err = repo.GetStudent(ctx, school, uuid.New().String())
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
		_, err = repo.GetStudent(ctx, uuid.New().String(), amina.ID)
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	})

	t.Run("query", func(t *testing.T) {
		byName := []core.DBOrdering{{Field: "name", Ascending: true}}
		tests := []struct {
			name     string
			filter   student.QueryFilter
			ordering []core.DBOrdering
			want     []string
		}{
			{name: "class", filter: student.QueryFilter{ClassID: "grade-1"}, ordering: byName, want: []string{"Amina Njeri", "Chausiku Wanjiru"}},
			{name: "search name", filter: student.QueryFilter{Search: "otieno"}, ordering: byName, want: []string{"Baraka Otieno"}},
			{name: "search admission number", filter: student.QueryFilter{Search: "adm-1"}, ordering: byName, want: []string{"Chausiku Wanjiru"}},
			{name: "wildcards are literal", filter: student.QueryFilter{Search: "%"}, ordering: byName, want: []string{}},
			{
				name:     "descending",
				ordering: []core.DBOrdering{{Field: "admission_number"}},
				want:     []string{"Chausiku Wanjiru", "Baraka Otieno", "Amina Njeri"},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.QueryStudents(ctx, school, tt.filter, tt.ordering)
				require.NoError(t, err)
				assert.Equal(t, tt.want, studentNames(got))
			})
		}
	})

	t.Run("schools", func(t *testing.T) {
		schools, err := repo.QuerySchools(ctx)
		require.NoError(t, err)
		assert.Contains(t, schools, school)
	})
}

func headNames(heads []fee.Head) []string {
	names := make([]string, 0, len(heads))
	for _, h := range heads {
		names = append(names, h.Name)
	}
	return names
}

func paymentIDs(payments []fee.Payment) []string {
	ids := make([]string, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
	}
	return ids
}

// FeeRepository checks the fee.Repository contract. Payments reference students of students.
func FeeRepository(t *testing.T, students student.Repository, repo fee.Repository) {
	ctx := context.Background()
	school := uuid.New().String()
	amina := newStudent(t, students, school, "grade-1", "Amina Njeri", "ADM-001")
	baraka := newStudent(t, students, school, "grade-2", "Baraka Otieno", "ADM-002")

	newHead := func(name, headType string) fee.Head {
		h, err := repo.CreateHead(ctx, fee.Head{
			ID: uuid.New().String(), SchoolID: school, Name: name, Type: headType, CreatedAt: base, UpdatedAt: base,
		})
		require.NoError(t, err)
		return h
	}
	tuition := newHead("Tuition", fee.HeadAnnual)
	transport := newHead("Transport", fee.HeadMonthly)

	t.Run("heads", func(t *testing.T) {
		got, err := repo.GetHead(ctx, school, tuition.ID)
		require.NoError(t, err)
		assert.Equal(t, "Tuition", got.Name)
		assert.Equal(t, fee.HeadAnnual, got.Type)

		_, err = repo.GetHead(ctx, school, uuid.New().String())
		assert.Equal(t, fee.ErrHeadNotFound, errors.Cause(err))
		_, err = repo.GetHead(ctx, uuid.New().String(), tuition.ID)
		assert.Equal(t, fee.ErrHeadNotFound, errors.Cause(err))

		heads, err := repo.QueryHeads(ctx, school)
		require.NoError(t, err)
		assert.Equal(t, []string{"Transport", "Tuition"}, headNames(heads))

		renamed := tuition
		renamed.Name = "School fees"
		renamed.UpdatedAt = base.Add(time.Hour)
		got, err = repo.UpdateHead(ctx, renamed)
		require.NoError(t, err)
		assert.Equal(t, "School fees", got.Name)
		heads, err = repo.QueryHeads(ctx, school)
		require.NoError(t, err)
		assert.Equal(t, []string{"School fees", "Transport"}, headNames(heads))

		renamed.ID = uuid.New().String()
		_, err = repo.UpdateHead(ctx, renamed)
		assert.Equal(t, fee.ErrHeadNotFound, errors.Cause(err))
	})

	t.Run("structures", func(t *testing.T) {
		used, err := repo.HeadReferenced(ctx, school, transport.ID)
		require.NoError(t, err)
		assert.False(t, used)

		_, err = repo.SaveStructure(ctx, fee.ClassStructure{
			SchoolID: school, ClassID: "grade-1", UpdatedAt: base,
			Entries: []fee.StructureEntry{{FeeHeadID: tuition.ID, Amount: d("5000")}, {FeeHeadID: transport.ID, Amount: d("1200.50")}},
		})
		require.NoError(t, err)
		used, err = repo.HeadReferenced(ctx, school, transport.ID)
		require.NoError(t, err)
		assert.True(t, used)

		cs, err := repo.GetStructure(ctx, school, "grade-1")
		require.NoError(t, err)
		require.Len(t, cs.Entries, 2)
		assert.Equal(t, tuition.ID, cs.Entries[0].FeeHeadID)
		assert.True(t, d("5000").Equal(cs.Entries[0].Amount))
		assert.Equal(t, transport.ID, cs.Entries[1].FeeHeadID)
		assert.True(t, d("1200.50").Equal(cs.Entries[1].Amount))
		assert.True(t, base.Equal(cs.UpdatedAt))

		_, err = repo.SaveStructure(ctx, fee.ClassStructure{
			SchoolID: school, ClassID: "grade-1", UpdatedAt: base.Add(time.Hour),
			Entries: []fee.StructureEntry{{FeeHeadID: transport.ID, Amount: d("1000")}},
		})
		require.NoError(t, err)
		cs, err = repo.GetStructure(ctx, school, "grade-1")
		require.NoError(t, err)
		require.Len(t, cs.Entries, 1)
		assert.True(t, d("1000").Equal(cs.Entries[0].Amount))
		used, err = repo.HeadReferenced(ctx, school, tuition.ID)
		require.NoError(t, err)
		assert.False(t, used)

		_, err = repo.GetStructure(ctx, school, "grade-9")
		assert.Equal(t, fee.ErrStructureNotFound, errors.Cause(err))
	})

	t.Run("receipt sequence", func(t *testing.T) {
		for _, want := range []int{1, 2, 3} {
			seq, err := repo.NextReceiptSeq(ctx, school, 2024)
			require.NoError(t, err)
			assert.Equal(t, want, seq)
		}
		seq, err := repo.NextReceiptSeq(ctx, school, 2025)
		require.NoError(t, err)
		assert.Equal(t, 1, seq)
	})

	t.Run("payments", func(t *testing.T) {
		newPayment := func(std student.Student, receipt string, paidOn, createdAt time.Time, items ...fee.PaidFor) fee.Payment {
			p := fee.Payment{
				ID: uuid.New().String(), SchoolID: school, StudentID: std.ID, ClassID: std.ClassID,
				PaymentDate: paidOn, PaymentMode: fee.ModeCash, PaidFor: items,
				Discount: d("100"), Fine: d("0"), ReceiptNumber: receipt, Remarks: "term one", CreatedAt: createdAt,
			}
			p.TotalAmount = fee.ExpectedTotal(p.PaidFor, p.Discount, p.Fine)
			p, err := repo.CreatePayment(ctx, p)
			require.NoError(t, err)
			return p
		}
		april := func(day, hour int) time.Time { return time.Date(2024, 4, day, hour, 0, 0, 0, time.UTC) }

		p1 := newPayment(amina, "RCT-2024-000001", april(2, 10), base,
			fee.PaidFor{FeeHeadID: tuition.ID, FeeHeadName: "Tuition", Amount: d("3000")},
			fee.PaidFor{FeeHeadID: transport.ID, FeeHeadName: "Transport", Amount: d("500.25")})
		p2 := newPayment(amina, "RCT-2024-000002", april(1, 10), base.Add(time.Minute),
			fee.PaidFor{FeeHeadID: transport.ID, FeeHeadName: "Transport", Amount: d("200")})
		p3 := newPayment(baraka, "RCT-2024-000003", april(3, 10), base.Add(2*time.Minute),
			fee.PaidFor{FeeHeadID: tuition.ID, FeeHeadName: "Tuition", Amount: d("150")})

		got, err := repo.GetPayment(ctx, school, p1.ID)
		require.NoError(t, err)
		assert.Equal(t, amina.ID, got.StudentID)
		assert.Equal(t, "grade-1", got.ClassID)
		assert.Equal(t, "RCT-2024-000001", got.ReceiptNumber)
		assert.Equal(t, fee.ModeCash, got.PaymentMode)
		assert.Equal(t, "term one", got.Remarks)
		assert.True(t, april(2, 10).Equal(got.PaymentDate))
		assert.True(t, d("100").Equal(got.Discount))
		assert.True(t, d("3400.25").Equal(got.TotalAmount), "total = %s", got.TotalAmount)
		require.Len(t, got.PaidFor, 2)
		assert.Equal(t, tuition.ID, got.PaidFor[0].FeeHeadID)
		assert.Equal(t, "Transport", got.PaidFor[1].FeeHeadName)
		assert.True(t, d("500.25").Equal(got.PaidFor[1].Amount))

		_, err = repo.GetPayment(ctx, school, uuid.New().String())
		assert.Equal(t, fee.ErrPaymentNotFound, errors.Cause(err))

		tests := []struct {
			name   string
			filter fee.PaymentFilter
			want   []string
		}{
			{name: "all by payment date", want: []string{p2.ID, p1.ID, p3.ID}},
			{name: "student", filter: fee.PaymentFilter{StudentID: amina.ID}, want: []string{p2.ID, p1.ID}},
			{name: "class", filter: fee.PaymentFilter{ClassID: "grade-2"}, want: []string{p3.ID}},
			{name: "date range", filter: fee.PaymentFilter{From: april(2, 0), To: april(3, 0)}, want: []string{p1.ID}},
			{name: "to is exclusive", filter: fee.PaymentFilter{To: april(2, 10)}, want: []string{p2.ID}},
			{name: "unknown student", filter: fee.PaymentFilter{StudentID: uuid.New().String()}, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				payments, err := repo.QueryPayments(ctx, school, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, tt.want, paymentIDs(payments))
			})
		}

		payments, err := repo.QueryPayments(ctx, uuid.New().String(), fee.PaymentFilter{})
		require.NoError(t, err)
		assert.Empty(t, payments)
	})
}

// ExamRepository checks the exam.Repository contract. Marks reference students of students.
func ExamRepository(t *testing.T, students student.Repository, repo exam.Repository) {
	ctx := context.Background()
	school := uuid.New().String()
	amina := newStudent(t, students, school, "grade-1", "Amina Njeri", "ADM-001")

	newTerm := func(name string, createdAt time.Time) exam.Term {
		term, err := repo.CreateTerm(ctx, exam.Term{
			ID: uuid.New().String(), SchoolID: school, Name: name, Session: "2024-2025", CreatedAt: createdAt,
		})
		require.NoError(t, err)
		return term
	}
	mid := newTerm("Mid-term", base)
	final := newTerm("Final", base.Add(time.Hour))

	t.Run("terms", func(t *testing.T) {
		got, err := repo.GetTerm(ctx, school, mid.ID)
		require.NoError(t, err)
		assert.Equal(t, "Mid-term", got.Name)
		assert.Equal(t, "2024-2025", got.Session)

		_, err = repo.GetTerm(ctx, uuid.New().String(), mid.ID)
		assert.Equal(t, exam.ErrTermNotFound, errors.Cause(err))

		terms, err := repo.QueryTerms(ctx, school)
		require.NoError(t, err)
		require.Len(t, terms, 2)
		assert.Equal(t, mid.ID, terms[0].ID)
		assert.Equal(t, final.ID, terms[1].ID)
	})

	t.Run("schedules", func(t *testing.T) {
		subject := func(name string, maxMarks float64) exam.ScheduleEntry {
			return exam.ScheduleEntry{SubjectName: name, Date: "2024-03-01", StartTime: "09:00", EndTime: "11:00", MaxMarks: maxMarks}
		}
		_, err := repo.SaveSchedule(ctx, exam.Schedule{
			SchoolID: school, TermID: mid.ID, ClassID: "grade-1",
			Subjects: []exam.ScheduleEntry{subject("English", 100), subject("Maths", 50)},
		})
		require.NoError(t, err)

		s, err := repo.GetSchedule(ctx, school, mid.ID, "grade-1")
		require.NoError(t, err)
		assert.Equal(t, []exam.ScheduleEntry{subject("English", 100), subject("Maths", 50)}, s.Subjects)

		_, err = repo.SaveSchedule(ctx, exam.Schedule{
			SchoolID: school, TermID: mid.ID, ClassID: "grade-1", Subjects: []exam.ScheduleEntry{subject("Maths", 60)},
		})
		require.NoError(t, err)
		s, err = repo.GetSchedule(ctx, school, mid.ID, "grade-1")
		require.NoError(t, err)
		assert.Equal(t, []exam.ScheduleEntry{subject("Maths", 60)}, s.Subjects)

		_, err = repo.GetSchedule(ctx, school, final.ID, "grade-1")
		assert.Equal(t, exam.ErrScheduleNotFound, errors.Cause(err))
	})

	t.Run("marks", func(t *testing.T) {
		eighty := 80.5
		_, err := repo.SaveMarks(ctx, exam.Marks{
			SchoolID: school, TermID: mid.ID, StudentID: amina.ID, ClassID: "grade-1", UpdatedAt: base,
			Marks: []exam.MarkEntry{{SubjectName: "English", MarksObtained: &eighty}, {SubjectName: "Maths"}},
		})
		require.NoError(t, err)

		m, err := repo.GetMarks(ctx, school, mid.ID, amina.ID)
		require.NoError(t, err)
		assert.Equal(t, "grade-1", m.ClassID)
		assert.True(t, base.Equal(m.UpdatedAt))
		require.Len(t, m.Marks, 2)
		assert.Equal(t, "English", m.Marks[0].SubjectName)
		require.NotNil(t, m.Marks[0].MarksObtained)
		assert.Equal(t, 80.5, *m.Marks[0].MarksObtained)
		assert.Equal(t, "Maths", m.Marks[1].SubjectName)
		assert.Nil(t, m.Marks[1].MarksObtained)

		sixty := 60.0
		_, err = repo.SaveMarks(ctx, exam.Marks{
			SchoolID: school, TermID: mid.ID, StudentID: amina.ID, ClassID: "grade-1", UpdatedAt: base.Add(time.Hour),
			Marks: []exam.MarkEntry{{SubjectName: "Maths", MarksObtained: &sixty}},
		})
		require.NoError(t, err)
		m, err = repo.GetMarks(ctx, school, mid.ID, amina.ID)
		require.NoError(t, err)
		require.Len(t, m.Marks, 1)
		assert.Equal(t, 60.0, *m.Marks[0].MarksObtained)

		_, err = repo.GetMarks(ctx, school, final.ID, amina.ID)
		assert.Equal(t, exam.ErrMarksNotFound, errors.Cause(err))
	})
}
