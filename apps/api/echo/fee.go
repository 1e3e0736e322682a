package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core/fee"
)

type feeApi struct {
	svc *fee.Service
}

func registerFeeAPI(g *echo.Group, svc *fee.Service) {
	api := feeApi{svc: svc}

	hg := g.Group("/fee-heads")
	hg.POST("", api.createHead)
	hg.GET("", api.queryHeads)
	hg.GET("/:"+headParam, api.retrieveHead)
	hg.PUT("/:"+headParam, api.updateHead)

	sg := g.Group("/classes/:" + classParam + "/fee-structure")
	sg.PUT("", api.saveStructure)
	sg.GET("", api.retrieveStructure)

	pg := g.Group("/payments")
	pg.POST("", api.collectPayment)
	pg.GET("", api.queryPayments)
	pg.GET("/:"+paymentParam, api.retrievePayment)
}

// Heads

func (api *feeApi) createHead(ctx echo.Context) error {
	var data fee.NewHead
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	head, err := api.svc.CreateHead(ctx.Request().Context(), ctx.Param(schoolParam), data)
	if err != nil {
		return err
	}
	return created(ctx, head)
}

func (api *feeApi) queryHeads(ctx echo.Context) error {
	heads, err := api.svc.QueryHeads(ctx.Request().Context(), ctx.Param(schoolParam))
	if err != nil {
		return err
	}
	return ok(ctx, heads)
}

func (api *feeApi) retrieveHead(ctx echo.Context) error {
	head, err := api.svc.GetHead(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(headParam))
	if err != nil {
		return err
	}
	return ok(ctx, head)
}

func (api *feeApi) updateHead(ctx echo.Context) error {
	var data fee.UpdateHead
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	head, err := api.svc.UpdateHead(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(headParam), data)
	if err != nil {
		return err
	}
	return ok(ctx, head)
}

// Structures

func (api *feeApi) saveStructure(ctx echo.Context) error {
	var data fee.NewStructure
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	cs, err := api.svc.SaveStructure(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(classParam), data)
	if err != nil {
		return err
	}
	return ok(ctx, cs)
}

func (api *feeApi) retrieveStructure(ctx echo.Context) error {
	cs, err := api.svc.GetStructure(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(classParam))
	if err != nil {
		return err
	}
	return ok(ctx, cs)
}

// Payments

func (api *feeApi) collectPayment(ctx echo.Context) error {
	var data fee.NewPayment
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.CollectPayment(ctx.Request().Context(), ctx.Param(schoolParam), data)
	if err != nil {
		return err
	}
	return created(ctx, p)
}

func (api *feeApi) queryPayments(ctx echo.Context) error {
	filter, err := bindPaymentFilter(ctx)
	if err != nil {
		return err
	}
	payments, err := api.svc.QueryPayments(ctx.Request().Context(), ctx.Param(schoolParam), filter)
	if err != nil {
		return err
	}
	return ok(ctx, payments)
}

func (api *feeApi) retrievePayment(ctx echo.Context) error {
	p, err := api.svc.GetPayment(ctx.Request().Context(), ctx.Param(schoolParam), ctx.Param(paymentParam))
	if err != nil {
		return err
	}
	return ok(ctx, p)
}
