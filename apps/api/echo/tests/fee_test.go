package tests

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/services/export"
	testutil "github.com/trezcool/shule/tests"
)

type feeFixture struct {
	*testEnv
	amina     student.Student
	tuition   fee.Head
	transport fee.Head
}

func setupFees(t *testing.T) *feeFixture {
	t.Helper()
	f := &feeFixture{testEnv: setup(t)}
	f.amina = testutil.CreateStudent(t, f.stdRepo, school, "grade-1", "Amina", "ADM-1", "mama@amina.test")
	f.tuition = testutil.CreateHead(t, f.feeRepo, school, "Tuition", fee.HeadAnnual)
	f.transport = testutil.CreateHead(t, f.feeRepo, school, "Transport", fee.HeadMonthly)

	body := fmt.Sprintf(`{"entries": [{"fee_head_id": %q, "amount": "5000"}, {"fee_head_id": %q, "amount": 1200}]}`, f.tuition.ID, f.transport.ID)
	rec := f.do(http.MethodPut, base+"/classes/grade-1/fee-structure", []byte(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return f
}

func (f *feeFixture) paymentBody(total string) []byte {
	return []byte(fmt.Sprintf(`{
		"student_id": %q,
		"payment_date": "2024-04-02T10:00:00Z",
		"payment_mode": "Cash",
		"paid_for": [{"fee_head_id": %q, "amount": "3000"}, {"fee_head_id": %q, "amount": "1200"}],
		"total_amount": %q
	}`, f.amina.ID, f.tuition.ID, f.transport.ID, total))
}

func Test_feeApi_heads(t *testing.T) {
	f := setupFees(t)

	rec := f.do(http.MethodPost, base+"/fee-heads", []byte(`{"name": "Library", "type": "One-time"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var library fee.Head
	decodeData(t, rec, &library)
	assert.Equal(t, "Library", library.Name)

	f.run(t, []httpTest{
		{
			name: "invalid type", method: http.MethodPost, path: base + "/fee-heads",
			body:     []byte(`{"name": "Lab", "type": "Weekly"}`),
			wantCode: http.StatusBadRequest, wantData: marshalErr(t, map[string]string{"type": "invalid fee head type"}),
		},
		{
			name: "type locked", method: http.MethodPut, path: base + "/fee-heads/" + f.tuition.ID,
			body:     []byte(`{"type": "Monthly"}`),
			wantCode: http.StatusBadRequest, wantData: marshalErr(t, map[string]string{"type": fee.ErrHeadTypeLocked.Error()}),
		},
		{
			name: "unknown head", path: base + "/fee-heads/nope",
			wantCode: http.StatusNotFound, wantData: marshalErr(t, fee.ErrHeadNotFound.Error()),
		},
		{
			name: "retrieve", path: base + "/fee-heads/" + library.ID,
			wantCode: http.StatusOK, wantData: marshalData(t, library),
		},
	})

	rec = f.do(http.MethodGet, base+"/fee-heads")
	var heads []fee.Head
	decodeData(t, rec, &heads)
	require.Len(t, heads, 3)
	assert.Equal(t, []string{"Library", "Transport", "Tuition"}, []string{heads[0].Name, heads[1].Name, heads[2].Name})
}

func Test_feeApi_structure(t *testing.T) {
	f := setupFees(t)

	rec := f.do(http.MethodGet, base+"/classes/grade-1/fee-structure")
	require.Equal(t, http.StatusOK, rec.Code)
	var cs fee.ClassStructure
	decodeData(t, rec, &cs)
	require.Len(t, cs.Entries, 2)
	assert.Equal(t, f.tuition.ID, cs.Entries[0].FeeHeadID)
	assert.Equal(t, "1200", cs.Entries[1].Amount.String())

	dup := fmt.Sprintf(`{"entries": [{"fee_head_id": %q, "amount": "1"}, {"fee_head_id": %q, "amount": "-2"}]}`, f.tuition.ID, f.tuition.ID)
	rec = f.do(http.MethodPut, base+"/classes/grade-1/fee-structure", []byte(dup))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"entries[1].amount", "entries[1].fee_head_id"}, errorFields(t, rec))

	rec = f.do(http.MethodGet, base+"/classes/grade-9/fee-structure")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_feeApi_payments(t *testing.T) {
	f := setupFees(t)

	rec := f.do(http.MethodPost, base+"/payments", f.paymentBody("4000"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"total_amount"}, errorFields(t, rec))

	rec = f.do(http.MethodPost, base+"/payments", f.paymentBody("4200"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p fee.Payment
	decodeData(t, rec, &p)
	assert.Equal(t, "RCT-2024-000001", p.ReceiptNumber)
	assert.Equal(t, "grade-1", p.ClassID)
	assert.Equal(t, "Tuition", p.PaidFor[0].FeeHeadName)
	assert.Len(t, f.mailSvc.SentMessages(), 1)

	f.run(t, []httpTest{
		{name: "retrieve", path: base + "/payments/" + p.ID, wantCode: http.StatusOK, wantData: marshalData(t, p)},
		{
			name: "unknown", path: base + "/payments/nope",
			wantCode: http.StatusNotFound, wantData: marshalErr(t, fee.ErrPaymentNotFound.Error()),
		},
		{
			name: "by student", path: base + "/payments?student=" + f.amina.ID,
			wantCode: http.StatusOK, wantData: marshalData(t, []fee.Payment{p}),
		},
		{
			name: "in range", path: base + "/payments?from=2024-04-02&to=2024-04-03",
			wantCode: http.StatusOK, wantData: marshalData(t, []fee.Payment{p}),
		},
		{
			name: "out of range", path: base + "/payments?from=2024-04-03",
			wantCode: http.StatusOK, wantData: marshalData(t, []fee.Payment{}),
		},
		{
			name: "bad date", path: base + "/payments?from=04/02/2024",
			wantCode: http.StatusBadRequest, wantData: marshalErr(t, map[string]string{"from": "must be a date (YYYY-MM-DD)"}),
		},
	})
}

func Test_feeApi_feeStatus(t *testing.T) {
	f := setupFees(t)

	rec := f.do(http.MethodPost, base+"/payments", f.paymentBody("4200"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, base+"/students/"+f.amina.ID+"/fee-status")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stmt fee.Statement
	decodeData(t, rec, &stmt)
	require.Len(t, stmt.Lines, 2)
	assert.Equal(t, "Tuition", stmt.Lines[0].FeeHeadName)
	assert.Equal(t, "2000", stmt.Lines[0].Due.String())
	assert.True(t, stmt.Lines[1].Due.IsZero())
	assert.Equal(t, "6200", stmt.Totals.Payable.String())
	assert.Equal(t, "2000", stmt.Totals.Due.String())
	assert.False(t, stmt.Totals.Overpaid)
	assert.Contains(t, rec.Body.String(), `"overpaid":false`)

	rec = f.do(http.MethodGet, base+"/students/"+f.amina.ID+"/fee-status/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Header().Get("Content-Disposition"), "fee-statement-ADM-1.xlsx"))
	assert.NotZero(t, rec.Body.Len())

	f.run(t, []httpTest{
		{
			name: "unknown student", path: base + "/students/nope/fee-status",
			wantCode: http.StatusNotFound, wantData: marshalErr(t, student.ErrNotFound.Error()),
		},
		{
			name: "unknown student export", path: base + "/students/nope/fee-status/export",
			wantCode: http.StatusNotFound, wantData: marshalErr(t, student.ErrNotFound.Error()),
		},
	})
}
