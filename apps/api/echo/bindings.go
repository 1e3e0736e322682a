package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
)

// Path params
const (
	schoolParam  = "school"
	studentParam = "student"
	classParam   = "class"
	headParam    = "head"
	paymentParam = "payment"
	termParam    = "term"
)

var orderingParam = "ordering"

type (
	envelope struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data"`
	}

	errorEnvelope struct {
		Success bool        `json:"success"`
		Error   interface{} `json:"error"`
	}
)

func respond(ctx echo.Context, code int, data interface{}) error {
	return ctx.JSON(code, envelope{Success: true, Data: data})
}

func ok(ctx echo.Context, data interface{}) error {
	return respond(ctx, http.StatusOK, data)
}

func created(ctx echo.Context, data interface{}) error {
	return respond(ctx, http.StatusCreated, data)
}

// bindBody binds the JSON request body into dst; a malformed body is a validation error.
func bindBody(ctx echo.Context, dst interface{}) error {
	if err := (&echo.DefaultBinder{}).BindBody(ctx, dst); err != nil {
		var herr *echo.HTTPError
		if errors.As(err, &herr) {
			return core.NewValidationError(errors.Errorf("invalid request body: %v", herr.Message))
		}
		return errors.Wrap(err, "binding request body")
	}
	return nil
}

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func bindStudentFilter(ctx echo.Context) student.QueryFilter {
	return student.QueryFilter{ClassID: ctx.QueryParam("class"), Search: ctx.QueryParam("search")}
}

// bindPaymentFilter reads ?student=&class=&from=&to=; dates are YYYY-MM-DD, `to` is exclusive.
func bindPaymentFilter(ctx echo.Context) (fee.PaymentFilter, error) {
	var filter fee.PaymentFilter
	err := echo.QueryParamsBinder(ctx).
		String("student", &filter.StudentID).
		String("class", &filter.ClassID).
		Time("from", &filter.From, exam.DateLayout).
		Time("to", &filter.To, exam.DateLayout).
		BindError()
	if err != nil {
		var berr *echo.BindingError
		if errors.As(err, &berr) && len(berr.Field) > 0 {
			return fee.PaymentFilter{}, core.NewValidationError(nil, core.FieldError{Field: berr.Field, Error: "must be a date (YYYY-MM-DD)"})
		}
		return fee.PaymentFilter{}, core.NewValidationError(err)
	}
	return filter, nil
}
