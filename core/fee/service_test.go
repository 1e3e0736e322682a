package fee_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
	cachesvc "github.com/trezcool/shule/services/cache"
	emailsvc "github.com/trezcool/shule/services/email"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

type fixture struct {
	svc       *fee.Service
	repo      fee.Repository
	stdRepo   student.Repository
	cache     *cachesvc.MemoryCache
	mailSvc   *emailsvc.ConsoleServiceMock
	logger    *testutil.LoggerMock
	student   student.Student
	tuition   fee.Head
	transport fee.Head
}

const school = "s1"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := inmemdb.Open()
	validate, _ := testutil.NewValidator()
	logger := new(testutil.LoggerMock)
	f := &fixture{
		repo:    inmemdb.NewFeeRepository(db),
		stdRepo: inmemdb.NewStudentRepository(db),
		cache:   cachesvc.NewMemoryCache(0),
		mailSvc: emailsvc.NewConsoleServiceMock(testutil.NewConfig(), logger),
		logger:  logger,
	}
	f.svc = fee.NewService(f.repo, student.NewService(f.stdRepo, validate), f.cache, f.mailSvc, logger, validate)

	f.student = testutil.CreateStudent(t, f.stdRepo, school, "grade-1", "Amina", "ADM-1", "mama@amina.test")
	f.tuition = testutil.CreateHead(t, f.repo, school, "Tuition", fee.HeadAnnual)
	f.transport = testutil.CreateHead(t, f.repo, school, "Transport", fee.HeadMonthly)
	testutil.SaveStructure(t, f.repo, school, "grade-1", []fee.Head{f.tuition, f.transport}, "5000", "1200")
	return f
}

func (f *fixture) payment(paid ...fee.PaidFor) fee.NewPayment {
	np := fee.NewPayment{
		StudentID:   f.student.ID,
		PaymentDate: time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC),
		PaymentMode: fee.ModeCash,
		PaidFor:     paid,
	}
	np.TotalAmount = fee.ExpectedTotal(paid, np.Discount, np.Fine)
	return np
}

func TestService_CreateHead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	head, err := f.svc.CreateHead(ctx, school, fee.NewHead{Name: " Library ", Type: fee.HeadOneTime})
	require.NoError(t, err)
	assert.Equal(t, "Library", head.Name)
	assert.NotEmpty(t, head.ID)

	_, err = f.svc.CreateHead(ctx, school, fee.NewHead{Name: "Lab", Type: "Weekly"})
	assert.Equal(t, []string{"type"}, testutil.ErrorFields(err))

	heads, err := f.svc.QueryHeads(ctx, school)
	require.NoError(t, err)
	assert.Len(t, heads, 3)
}

func TestService_UpdateHead(t *testing.T) {
	ctx := context.Background()

	t.Run("type is locked once used in a structure", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpdateHead(ctx, school, f.tuition.ID, fee.UpdateHead{Type: fee.HeadMonthly})
		assert.Equal(t, []string{"type"}, testutil.ErrorFields(err))
		assert.Equal(t, fee.ErrHeadTypeLocked, errors.Cause(err).(*core.ValidationError).Err)
	})

	t.Run("type of an unused head may change", func(t *testing.T) {
		f := newFixture(t)
		lib := testutil.CreateHead(t, f.repo, school, "Library", fee.HeadOneTime)
		head, err := f.svc.UpdateHead(ctx, school, lib.ID, fee.UpdateHead{Type: fee.HeadAnnual})
		require.NoError(t, err)
		assert.Equal(t, fee.HeadAnnual, head.Type)
		assert.Equal(t, "Library", head.Name)
	})

	t.Run("renaming refreshes statements", func(t *testing.T) {
		f := newFixture(t)
		stmt, err := f.svc.FeeStatus(ctx, school, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, "Tuition", stmt.Lines[0].FeeHeadName)

		_, err = f.svc.UpdateHead(ctx, school, f.tuition.ID, fee.UpdateHead{Name: "Tuition Fee"})
		require.NoError(t, err)
		stmt, err = f.svc.FeeStatus(ctx, school, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, "Tuition Fee", stmt.Lines[0].FeeHeadName)
	})

	t.Run("unknown head", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.UpdateHead(ctx, school, "nope", fee.UpdateHead{Name: "x"})
		assert.Equal(t, fee.ErrHeadNotFound, errors.Cause(err))
	})
}

func TestService_SaveStructure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name       string
		entries    []fee.StructureEntry
		wantFields []string
	}{
		{
			name:    "valid",
			entries: []fee.StructureEntry{{FeeHeadID: f.transport.ID, Amount: testutil.D("900")}},
		},
		{
			name:    "empty structure",
			entries: nil,
		},
		{
			name:       "unknown head",
			entries:    []fee.StructureEntry{{FeeHeadID: "nope", Amount: testutil.D("1")}},
			wantFields: []string{"entries[0].fee_head_id"},
		},
		{
			name: "duplicate head and negative amount",
			entries: []fee.StructureEntry{
				{FeeHeadID: f.tuition.ID, Amount: testutil.D("10")},
				{FeeHeadID: f.tuition.ID, Amount: testutil.D("-1")},
			},
			wantFields: []string{"entries[1].amount", "entries[1].fee_head_id"},
		},
		{
			name:       "amount finer than a cent",
			entries:    []fee.StructureEntry{{FeeHeadID: f.transport.ID, Amount: testutil.D("12.345")}},
			wantFields: []string{"entries[0].amount"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := f.svc.SaveStructure(ctx, school, "grade-2", fee.NewStructure{Entries: tt.entries})
			if len(tt.wantFields) > 0 {
				assert.ElementsMatch(t, tt.wantFields, testutil.ErrorFields(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, cs.Entries, len(tt.entries))
			assert.NotNil(t, cs.Entries)

			got, err := f.svc.GetStructure(ctx, school, "grade-2")
			require.NoError(t, err)
			assert.Len(t, got.Entries, len(tt.entries))
		})
	}

	_, err := f.svc.GetStructure(ctx, school, "grade-9")
	assert.IsType(t, (*core.NotFoundError)(nil), errors.Cause(err))
}

func TestService_CollectPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("numbers receipts and emails the guardian", func(t *testing.T) {
		f := newFixture(t)
		p1, err := f.svc.CollectPayment(ctx, school, f.payment(fee.PaidFor{FeeHeadID: f.tuition.ID, Amount: testutil.D("2500")}))
		require.NoError(t, err)
		assert.Equal(t, "RCT-2024-000001", p1.ReceiptNumber)
		assert.Equal(t, "Tuition", p1.PaidFor[0].FeeHeadName)
		assert.Equal(t, "grade-1", p1.ClassID)

		p2, err := f.svc.CollectPayment(ctx, school, f.payment(fee.PaidFor{FeeHeadID: f.transport.ID, Amount: testutil.D("100")}))
		require.NoError(t, err)
		assert.Equal(t, "RCT-2024-000002", p2.ReceiptNumber)

		sent := f.mailSvc.SentMessages()
		require.Len(t, sent, 2)
		assert.Equal(t, "mama@amina.test", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "RCT-2024-000001")
		assert.Contains(t, sent[0].TextContent, "two thousand five hundred")
		assert.Contains(t, sent[0].HTMLContent, "Amina")
		assert.Zero(t, f.logger.Count("error"))

		got, err := f.svc.GetPayment(ctx, school, p1.ID)
		require.NoError(t, err)
		assert.Equal(t, p1.ReceiptNumber, got.ReceiptNumber)
	})

	t.Run("no email without guardian address", func(t *testing.T) {
		f := newFixture(t)
		std := testutil.CreateStudent(t, f.stdRepo, school, "grade-1", "Baraka", "ADM-2", "")
		np := f.payment(fee.PaidFor{FeeHeadID: f.tuition.ID, Amount: testutil.D("10")})
		np.StudentID = std.ID
		_, err := f.svc.CollectPayment(ctx, school, np)
		require.NoError(t, err)
		assert.Empty(t, f.mailSvc.SentMessages())
	})

	t.Run("invalid", func(t *testing.T) {
		f := newFixture(t)
		tests := []struct {
			name       string
			update     func(np *fee.NewPayment)
			wantFields []string
		}{
			{
				name:       "unbalanced total",
				update:     func(np *fee.NewPayment) { np.TotalAmount = testutil.D("1") },
				wantFields: []string{"total_amount"},
			},
			{
				name: "discount is subtracted",
				update: func(np *fee.NewPayment) {
					np.Discount = testutil.D("50")
				},
				wantFields: []string{"total_amount"},
			},
			{
				name:       "negative fine",
				update:     func(np *fee.NewPayment) { np.Fine = testutil.D("-5"); np.TotalAmount = np.TotalAmount.Sub(testutil.D("5")) },
				wantFields: []string{"fine"},
			},
			{
				name: "amounts finer than a cent",
				update: func(np *fee.NewPayment) {
					np.PaidFor = []fee.PaidFor{
						{FeeHeadID: f.tuition.ID, Amount: testutil.D("0.005")},
						{FeeHeadID: f.transport.ID, Amount: testutil.D("0.005")},
					}
					np.TotalAmount = testutil.D("0.01")
				},
				wantFields: []string{"paid_for[0].amount", "paid_for[1].amount"},
			},
			{
				name:       "fine finer than a cent",
				update:     func(np *fee.NewPayment) { np.Discount = testutil.D("0.5"); np.Fine = testutil.D("0.501"); np.TotalAmount = testutil.D("100.001") },
				wantFields: []string{"fine", "total_amount"},
			},
			{
				name:       "unknown payment mode",
				update:     func(np *fee.NewPayment) { np.PaymentMode = "Barter" },
				wantFields: []string{"payment_mode"},
			},
			{
				name:       "nothing paid for",
				update:     func(np *fee.NewPayment) { np.PaidFor = nil; np.TotalAmount = testutil.D("0") },
				wantFields: []string{"paid_for"},
			},
			{
				name:       "unknown student",
				update:     func(np *fee.NewPayment) { np.StudentID = "nope" },
				wantFields: []string{"student_id"},
			},
			{
				name:       "unknown fee head",
				update:     func(np *fee.NewPayment) { np.PaidFor[0].FeeHeadID = "nope" },
				wantFields: []string{"paid_for[0].fee_head_id"},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				np := f.payment(fee.PaidFor{FeeHeadID: f.tuition.ID, Amount: testutil.D("100")})
				tt.update(&np)
				_, err := f.svc.CollectPayment(ctx, school, np)
				assert.ElementsMatch(t, tt.wantFields, testutil.ErrorFields(err))
			})
		}

		payments, err := f.svc.QueryPayments(ctx, school, fee.PaymentFilter{})
		require.NoError(t, err)
		assert.Empty(t, payments)
	})
}

func TestService_QueryPayments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := testutil.CreateStudent(t, f.stdRepo, school, "grade-2", "Baraka", "ADM-2", "")

	for _, day := range []int{20, 5, 12} {
		np := f.payment(fee.PaidFor{FeeHeadID: f.tuition.ID, Amount: testutil.D("10")})
		np.PaymentDate = time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
		_, err := f.svc.CollectPayment(ctx, school, np)
		require.NoError(t, err)
	}
	np := f.payment(fee.PaidFor{FeeHeadID: f.tuition.ID, Amount: testutil.D("10")})
	np.StudentID = other.ID
	_, err := f.svc.CollectPayment(ctx, school, np)
	require.NoError(t, err)

	days := func(ps []fee.Payment) []int {
		d := make([]int, 0, len(ps))
		for _, p := range ps {
			d = append(d, p.PaymentDate.Day())
		}
		return d
	}

	tests := []struct {
		name   string
		filter fee.PaymentFilter
		want   []int
	}{
		{name: "student, by payment date", filter: fee.PaymentFilter{StudentID: f.student.ID}, want: []int{5, 12, 20}},
		{name: "class", filter: fee.PaymentFilter{ClassID: "grade-2"}, want: []int{2}},
		{
			name: "date range",
			filter: fee.PaymentFilter{
				From: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			},
			want: []int{5, 12},
		},
		{name: "other school", filter: fee.PaymentFilter{}, want: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := school
			if tt.name == "other school" {
				s = "s2"
			}
			ps, err := f.svc.QueryPayments(ctx, s, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, days(ps))
		})
	}
}

func TestService_FeeStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("discount is tracked apart from due", func(t *testing.T) {
		f := newFixture(t)
		np := f.payment(fee.PaidFor{FeeHeadID: f.tuition.ID, Amount: testutil.D("4000")})
		np.Discount = testutil.D("1000")
		np.TotalAmount = testutil.D("3000")
		_, err := f.svc.CollectPayment(ctx, school, np)
		require.NoError(t, err)

		stmt, err := f.svc.FeeStatus(ctx, school, f.student.ID)
		require.NoError(t, err)
		require.Len(t, stmt.Lines, 2)
		tuition := stmt.Lines[0]
		assert.Equal(t, "5000.00", tuition.TotalPayable.StringFixed(2))
		assert.Equal(t, "4000.00", tuition.TotalPaid.StringFixed(2))
		assert.Equal(t, "1000.00", tuition.TotalDiscount.StringFixed(2))
		assert.Equal(t, "1000.00", tuition.Due.StringFixed(2))
		assert.Equal(t, "2200.00", stmt.Totals.Due.StringFixed(2))
		assert.Equal(t, f.student.ID, stmt.Student.ID)
	})

	t.Run("cached until a payment is collected", func(t *testing.T) {
		f := newFixture(t)
		stmt, err := f.svc.FeeStatus(ctx, school, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, "6200.00", stmt.Totals.Due.StringFixed(2))
		assert.Equal(t, 1, f.cache.Len())

		// a repo write behind the service's back is not seen
		_, err = f.repo.CreatePayment(ctx, fee.Payment{
			ID: "p-raw", SchoolID: school, StudentID: f.student.ID, ClassID: "grade-1",
			PaidFor:     []fee.PaidFor{{FeeHeadID: f.transport.ID, Amount: testutil.D("200")}},
			TotalAmount: testutil.D("200"),
		})
		require.NoError(t, err)
		stmt, err = f.svc.FeeStatus(ctx, school, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, "6200.00", stmt.Totals.Due.StringFixed(2))

		_, err = f.svc.CollectPayment(ctx, school, f.payment(fee.PaidFor{FeeHeadID: f.transport.ID, Amount: testutil.D("100")}))
		require.NoError(t, err)
		stmt, err = f.svc.FeeStatus(ctx, school, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, "5900.00", stmt.Totals.Due.StringFixed(2))
	})

	t.Run("payment collected while computing is not hidden by the cache", func(t *testing.T) {
		f := newFixture(t)
		repo := &hookedRepo{Repository: f.repo}
		validate, _ := testutil.NewValidator()
		svc := fee.NewService(repo, student.NewService(f.stdRepo, validate), f.cache, f.mailSvc, f.logger, validate)
		repo.afterQueryPayments = func() {
			repo.afterQueryPayments = nil
			_, err := svc.CollectPayment(ctx, school, f.payment(fee.PaidFor{FeeHeadID: f.tuition.ID, Amount: testutil.D("1000")}))
			require.NoError(t, err)
		}

		stmt, err := svc.FeeStatus(ctx, school, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, "6200.00", stmt.Totals.Due.StringFixed(2))
		assert.Equal(t, 0, f.cache.Len())

		stmt, err = svc.FeeStatus(ctx, school, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, "1000.00", stmt.Totals.Paid.StringFixed(2))
		assert.Equal(t, "5200.00", stmt.Totals.Due.StringFixed(2))
	})

	t.Run("structure change refreshes the class", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.FeeStatus(ctx, school, f.student.ID)
		require.NoError(t, err)

		_, err = f.svc.SaveStructure(ctx, school, "grade-1", fee.NewStructure{Entries: []fee.StructureEntry{
			{FeeHeadID: f.tuition.ID, Amount: testutil.D("4500")},
		}})
		require.NoError(t, err)
		stmt, err := f.svc.FeeStatus(ctx, school, f.student.ID)
		require.NoError(t, err)
		require.Len(t, stmt.Lines, 1)
		assert.Equal(t, "4500.00", stmt.Totals.Due.StringFixed(2))
	})

	t.Run("class without structure", func(t *testing.T) {
		f := newFixture(t)
		std := testutil.CreateStudent(t, f.stdRepo, school, "grade-9", "Baraka", "ADM-2", "")
		stmt, err := f.svc.FeeStatus(ctx, school, std.ID)
		require.NoError(t, err)
		assert.Empty(t, stmt.Lines)
		assert.True(t, stmt.Totals.Due.IsZero())
	})

	t.Run("unknown student", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.FeeStatus(ctx, school, "nope")
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	})

	t.Run("cache failures are logged, not returned", func(t *testing.T) {
		f := newFixture(t)
		validate, _ := testutil.NewValidator()
		svc := fee.NewService(f.repo, student.NewService(f.stdRepo, validate), brokenCache{}, f.mailSvc, f.logger, validate)
		stmt, err := svc.FeeStatus(ctx, school, f.student.ID)
		require.NoError(t, err)
		assert.Len(t, stmt.Lines, 2)
		assert.Equal(t, 2, f.logger.Count("warn"))
		assert.True(t, strings.HasPrefix(f.logger.Entries[0].Msg, "reading cached fee status"))
		assert.Equal(t, core.Tenant{SchoolID: school, StudentID: f.student.ID}, f.logger.Entries[0].Args[1])
	})
}

// hookedRepo runs a callback once payments have been read.
type hookedRepo struct {
	fee.Repository
	afterQueryPayments func()
}

func (r *hookedRepo) QueryPayments(ctx context.Context, schoolID string, filter fee.PaymentFilter) ([]fee.Payment, error) {
	payments, err := r.Repository.QueryPayments(ctx, schoolID, filter)
	if r.afterQueryPayments != nil {
		r.afterQueryPayments()
	}
	return payments, err
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, string, interface{}) (bool, int64, error) {
	return false, 0, errors.New("cache down")
}

func (brokenCache) Set(context.Context, string, string, interface{}, int64) error {
	return errors.New("cache down")
}

func (brokenCache) Invalidate(context.Context, ...string) error {
	return errors.New("cache down")
}
