package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core/access"
	"github.com/trezcool/soka/core/valuation"
)

type valuationApi struct {
	base baseApi
	svc  valuation.Service
}

func registerValuationAPI(v1 *echo.Group, g *guard, api *valuationApi) {
	valuations := v1.Group("/valuations", g.authenticated()...)
	valuations.GET("", api.list, g.permit(access.Valuations, access.List))
	valuations.POST("", api.create, g.permit(access.Valuations, access.Create))
	valuations.GET("/:id", api.retrieve, g.permit(access.Valuations, access.Read))
	valuations.PUT("/:id", api.update, g.permit(access.Valuations, access.Update))
	valuations.PATCH("/:id/status", api.setStatus, g.permit(access.Valuations, access.Toggle))
}

func (api *valuationApi) list(ctx echo.Context) error {
	params, err := api.base.listParams(ctx, valuation.ListSchema)
	if err != nil {
		return err
	}
	vals, total, err := api.svc.List(ctx.Request().Context(), params, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "listing valuations")
	}
	return api.base.listResult(ctx, valuation.ListSchema, vals, total, params)
}

// create records the valuation in the caller's name.
func (api *valuationApi) create(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data valuation.NewValuation
	if err = api.base.bind(ctx, &data, "NewValuation"); err != nil {
		return err
	}
	v, err := api.svc.Create(ctx.Request().Context(), caller.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating valuation")
	}
	return ctx.JSON(http.StatusCreated, v)
}

func (api *valuationApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	v, err := api.svc.Get(ctx.Request().Context(), id, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "finding valuation by ID")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *valuationApi) update(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data valuation.UpdateValuation
	if err = api.base.bind(ctx, &data, "UpdateValuation"); err != nil {
		return err
	}
	v, err := api.svc.Update(ctx.Request().Context(), id, data, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "updating valuation")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *valuationApi) setStatus(ctx echo.Context) error {
	id, active, err := api.base.bindStatus(ctx)
	if err != nil {
		return err
	}
	v, err := api.svc.SetActive(ctx.Request().Context(), id, active, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "setting valuation status")
	}
	return ctx.JSON(http.StatusOK, v)
}
