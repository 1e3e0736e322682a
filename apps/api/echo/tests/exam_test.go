package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/services/export"
	testutil "github.com/trezcool/shule/tests"
)

func Test_examApi_reportCard(t *testing.T) {
	env := setup(t)
	amina := testutil.CreateStudent(t, env.stdRepo, school, "grade-1", "Amina", "ADM-1", "")

	// terms
	rec := env.do(http.MethodPost, base+"/exam-terms", []byte(`{"name": "Mid-term", "session": "2024-2025"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var mid exam.Term
	decodeData(t, rec, &mid)

	rec = env.do(http.MethodPost, base+"/exam-terms", []byte(`{"name": "Final", "session": "2024-2025"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var final exam.Term
	decodeData(t, rec, &final)

	// schedules
	schedule := `{"subjects": [
		{"subject_name": "Maths", "date": "2024-03-01", "start_time": "09:00", "end_time": "11:00", "max_marks": 100},
		{"subject_name": "English", "date": "2024-03-02", "start_time": "09:00", "end_time": "11:00", "max_marks": 50}
	]}`
	for _, term := range []exam.Term{mid, final} {
		rec = env.do(http.MethodPut, base+"/exam-terms/"+term.ID+"/classes/grade-1/schedule", []byte(schedule))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	// marks
	marksPath := func(term exam.Term) string {
		return base + "/exam-terms/" + term.ID + "/students/" + amina.ID + "/marks"
	}
	rec = env.do(http.MethodPut, marksPath(mid), []byte(`{"marks": [{"subject_name": "Maths", "marks_obtained": 90}, {"subject_name": "English", "marks_obtained": 40}]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(http.MethodPut, marksPath(final), []byte(`{"marks": [{"subject_name": "Maths", "marks_obtained": 85}, {"subject_name": "English", "marks_obtained": 45}]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPut, marksPath(final), []byte(`{"marks": [{"subject_name": "Maths", "marks_obtained": 101}]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"marks[0].marks_obtained"}, errorFields(t, rec))

	// report card
	cardPath := fmt.Sprintf("%s/students/%s/report-card?term=%s&term=%s", base, amina.ID, mid.ID, final.ID)
	rec = env.do(http.MethodGet, cardPath)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view exam.ReportCardView
	decodeData(t, rec, &view)

	assert.Equal(t, amina.ID, view.Student.ID)
	require.Len(t, view.Terms, 2)
	assert.Equal(t, "Mid-term", view.Terms[0].Name)
	require.Len(t, view.Card.Rows, 2)
	assert.Equal(t, "English", view.Card.Rows[0].SubjectName)
	assert.Equal(t, 85.0, view.Card.Rows[0].RowObtained)
	assert.Equal(t, 175.0, view.Card.Rows[1].RowObtained)
	assert.Equal(t, 300.0, view.Card.Summary.GrandTotalMax)
	assert.Equal(t, "86.67", view.Card.Summary.PercentageText)
	assert.Equal(t, "A", view.Card.Summary.Grade)
	assert.Equal(t, exam.ResultPass, view.Card.Summary.Result)

	rec = env.do(http.MethodGet, fmt.Sprintf("%s/students/%s/report-card/export?term=%s", base, amina.ID, mid.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))

	env.run(t, []httpTest{
		{
			name: "no term", path: base + "/students/" + amina.ID + "/report-card",
			wantCode: http.StatusBadRequest, wantData: marshalErr(t, map[string]string{"term": exam.ErrNoTerms.Error()}),
		},
		{
			name: "unknown term", path: base + "/students/" + amina.ID + "/report-card?term=nope",
			wantCode: http.StatusNotFound, wantData: marshalErr(t, exam.ErrTermNotFound.Error()),
		},
		{
			name: "unknown student", path: base + "/students/nope/report-card?term=" + mid.ID,
			wantCode: http.StatusNotFound, wantData: marshalErr(t, student.ErrNotFound.Error()),
		},
	})
}

func Test_examApi_terms(t *testing.T) {
	env := setup(t)
	mid := testutil.CreateTerm(t, env.examRepo, school, "Mid-term")

	env.run(t, []httpTest{
		{name: "list", path: base + "/exam-terms", wantCode: http.StatusOK, wantData: marshalData(t, []exam.Term{mid})},
		{name: "retrieve", path: base + "/exam-terms/" + mid.ID, wantCode: http.StatusOK, wantData: marshalData(t, mid)},
		{
			name: "unknown", path: base + "/exam-terms/nope",
			wantCode: http.StatusNotFound, wantData: marshalErr(t, exam.ErrTermNotFound.Error()),
		},
		{
			name: "other school", path: "/v1/schools/sch-2/exam-terms/" + mid.ID,
			wantCode: http.StatusNotFound, wantData: marshalErr(t, exam.ErrTermNotFound.Error()),
		},
		{
			name: "blank name", method: http.MethodPost, path: base + "/exam-terms",
			body:     []byte(`{"name": "  ", "session": "2024-2025"}`),
			wantCode: http.StatusBadRequest, wantData: marshalErr(t, map[string]string{"name": "this field is required"}),
		},
		{
			name: "schedule of unknown term", method: http.MethodPut, path: base + "/exam-terms/nope/classes/grade-1/schedule",
			body:     []byte(`{"subjects": []}`),
			wantCode: http.StatusNotFound, wantData: marshalErr(t, exam.ErrTermNotFound.Error()),
		},
		{
			name: "no schedule", path: base + "/exam-terms/" + mid.ID + "/classes/grade-1/schedule",
			wantCode: http.StatusNotFound, wantData: marshalErr(t, exam.ErrScheduleNotFound.Error()),
		},
	})
}
