package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/services/export"
)

type studentApi struct {
	svc   *student.Service
	fees  *fee.Service
	exams *exam.Service
}

func registerStudentAPI(g *echo.Group, svc *student.Service, fees *fee.Service, exams *exam.Service) {
	api := studentApi{svc: svc, fees: fees, exams: exams}

	sg := g.Group("/students")
	sg.POST("", api.create)
	sg.GET("", api.query)

	dg := sg.Group("/:" + studentParam)
	dg.GET("", api.retrieve)
	dg.GET("/fee-status", api.feeStatus)
	dg.GET("/fee-status/export", api.exportFeeStatus)
	dg.GET("/report-card", api.reportCard)
	dg.GET("/report-card/export", api.exportReportCard)
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	std, err := api.svc.CreateStudent(ctx.Request().Context(), ctx.Param(schoolParam), data)
	if err != nil {
		return err
	}
	return created(ctx, std)
}

func (api *studentApi) query(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)
	students, err := api.svc.QueryStudents(ctx.Request().Context(), ctx.Param(schoolParam), bindStudentFilter(ctx), ord.Orderings...)
	if err != nil {
		return err
	}
	return ok(ctx, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	std, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(studentParam))
	if err != nil {
		return err
	}
	return ok(ctx, std)
}

func (api *studentApi) feeStatus(ctx echo.Context) error {
	stmt, err := api.fees.FeeStatus(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(studentParam))
	if err != nil {
		return err
	}
	return ok(ctx, stmt)
}

func (api *studentApi) exportFeeStatus(ctx echo.Context) error {
	stmt, err := api.fees.FeeStatus(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(studentParam))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = export.FeeStatement(&buf, stmt); err != nil {
		return err
	}
	return attachment(ctx, "fee-statement-"+stmt.Student.AdmissionNumber+".xlsx", buf.Bytes())
}

func (api *studentApi) reportCard(ctx echo.Context) error {
	view, err := api.exams.ReportCard(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(studentParam), ctx.QueryParams()[termParam])
	if err != nil {
		return err
	}
	return ok(ctx, view)
}

func (api *studentApi) exportReportCard(ctx echo.Context) error {
	view, err := api.exams.ReportCard(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(studentParam), ctx.QueryParams()[termParam])
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = export.ReportCard(&buf, view); err != nil {
		return err
	}
	return attachment(ctx, "report-card-"+view.Student.AdmissionNumber+".xlsx", buf.Bytes())
}

func attachment(ctx echo.Context, filename string, content []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, export.ContentType, content)
}
