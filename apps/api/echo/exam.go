package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core/exam"
)

type examApi struct {
	svc *exam.Service
}

func registerExamAPI(g *echo.Group, svc *exam.Service) {
	api := examApi{svc: svc}

	tg := g.Group("/exam-terms")
	tg.POST("", api.createTerm)
	tg.GET("", api.queryTerms)

	dg := tg.Group("/:" + termParam)
	dg.GET("", api.retrieveTerm)
	dg.PUT("/classes/:"+classParam+"/schedule", api.saveSchedule)
	dg.GET("/classes/:"+classParam+"/schedule", api.retrieveSchedule)
	dg.PUT("/students/:"+studentParam+"/marks", api.saveMarks)
	dg.GET("/students/:"+studentParam+"/marks", api.retrieveMarks)
}

// Terms

func (api *examApi) createTerm(ctx echo.Context) error {
	var data exam.NewTerm
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	term, err := api.svc.CreateTerm(ctx.Request().Context(), ctx.Param(schoolParam), data)
	if err != nil {
		return err
	}
	return created(ctx, term)
}

func (api *examApi) queryTerms(ctx echo.Context) error {
	terms, err := api.svc.QueryTerms(ctx.Request().Context(), ctx.Param(schoolParam))
	if err != nil {
		return err
	}
	return ok(ctx, terms)
}

func (api *examApi) retrieveTerm(ctx echo.Context) error {
	term, err := api.svc.GetTerm(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(termParam))
	if err != nil {
		return err
	}
	return ok(ctx, term)
}

// Schedules

func (api *examApi) saveSchedule(ctx echo.Context) error {
	var data exam.NewSchedule
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	s, err := api.svc.SaveSchedule(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(termParam), ctx.Param(classParam), data)
	if err != nil {
		return err
	}
	return ok(ctx, s)
}

func (api *examApi) retrieveSchedule(ctx echo.Context) error {
	s, err := api.svc.GetSchedule(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(termParam), ctx.Param(classParam))
	if err != nil {
		return err
	}
	return ok(ctx, s)
}

// Marks

func (api *examApi) saveMarks(ctx echo.Context) error {
	var data exam.NewMarks
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	m, err := api.svc.SaveMarks(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(termParam), ctx.Param(studentParam), data)
	if err != nil {
		return err
	}
	return ok(ctx, m)
}

func (api *examApi) retrieveMarks(ctx echo.Context) error {
	m, err := api.svc.GetMarks(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(termParam), ctx.Param(studentParam))
	if err != nil {
		return err
	}
	return ok(ctx, m)
}
