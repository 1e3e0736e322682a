package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
	cachesvc "github.com/trezcool/shule/services/cache"
	emailsvc "github.com/trezcool/shule/services/email"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

const (
	school = "sch-1"
	base   = "/v1/schools/" + school
)

type testEnv struct {
	app      *echoapi.Server
	stdRepo  student.Repository
	feeRepo  fee.Repository
	examRepo exam.Repository
	mailSvc  *emailsvc.ConsoleServiceMock
	logger   *testutil.LoggerMock
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := testutil.NewConfig()
	conf.Server.DisableReqLogs = true

	// set up DB & repos
	db := inmemdb.Open()
	env := &testEnv{
		stdRepo:  inmemdb.NewStudentRepository(db),
		feeRepo:  inmemdb.NewFeeRepository(db),
		examRepo: inmemdb.NewExamRepository(db),
		logger:   new(testutil.LoggerMock),
	}
	env.mailSvc = emailsvc.NewConsoleServiceMock(conf, env.logger)

	// set up services
	validate, translator := testutil.NewValidator()
	cache := cachesvc.NewMemoryCache(0)
	stdSvc := student.NewService(env.stdRepo, validate)
	feeSvc := fee.NewService(env.feeRepo, stdSvc, cache, env.mailSvc, env.logger, validate)
	examSvc := exam.NewService(env.examRepo, stdSvc, cache, env.logger, validate)

	// set up server
	env.app = echoapi.NewServer(conf, env.logger, translator, stdSvc, feeSvc, examSvc)
	return env
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func (env *testEnv) do(method, path string, data ...[]byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)
	return rec
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

// marshalData returns the success envelope of obj.
func marshalData(t *testing.T, obj interface{}) []byte {
	t.Helper()
	return marshalObj(t, map[string]interface{}{"success": true, "data": obj})
}

// marshalErr returns the error envelope of a message or a field errors map.
func marshalErr(t *testing.T, msg interface{}) []byte {
	t.Helper()
	return marshalObj(t, map[string]interface{}{"success": false, "error": msg})
}

// decodeData decodes the data of a success envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

// errorFields returns the field names of an error envelope carrying field errors.
func errorFields(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var env struct {
		Success bool              `json:"success"`
		Error   map[string]string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.False(t, env.Success)
	fields := make([]string, 0, len(env.Error))
	for f := range env.Error {
		fields = append(fields, f)
	}
	return fields
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func (env *testEnv) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, env.do(method, tt.path, tt.body))
		})
	}
}
