package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core/access"
	"github.com/trezcool/soka/core/team"
)

type teamApi struct {
	base baseApi
	svc  team.Service
}

func registerTeamAPI(v1 *echo.Group, g *guard, api *teamApi) {
	teams := v1.Group("/teams", g.authenticated()...)
	teams.GET("", api.list, g.permit(access.Teams, access.List))
	teams.POST("", api.create, g.permit(access.Teams, access.Create))
	teams.GET("/:id", api.retrieve, g.permit(access.Teams, access.Read))
	teams.PUT("/:id", api.update, g.permit(access.Teams, access.Update))
	teams.PATCH("/:id/status", api.setStatus, g.permit(access.Teams, access.Toggle))
}

func (api *teamApi) list(ctx echo.Context) error {
	params, err := api.base.listParams(ctx, team.ListSchema)
	if err != nil {
		return err
	}
	teams, total, err := api.svc.List(ctx.Request().Context(), params, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "listing teams")
	}
	return api.base.listResult(ctx, team.ListSchema, teams, total, params)
}

func (api *teamApi) create(ctx echo.Context) error {
	var data team.NewTeam
	if err := api.base.bind(ctx, &data, "NewTeam"); err != nil {
		return err
	}
	tm, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating team")
	}
	return ctx.JSON(http.StatusCreated, tm)
}

func (api *teamApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	tm, err := api.svc.Get(ctx.Request().Context(), id, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "finding team by ID")
	}
	return ctx.JSON(http.StatusOK, tm)
}

func (api *teamApi) update(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data team.UpdateTeam
	if err = api.base.bind(ctx, &data, "UpdateTeam"); err != nil {
		return err
	}
	tm, err := api.svc.Update(ctx.Request().Context(), id, data, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "updating team")
	}
	return ctx.JSON(http.StatusOK, tm)
}

func (api *teamApi) setStatus(ctx echo.Context) error {
	id, active, err := api.base.bindStatus(ctx)
	if err != nil {
		return err
	}
	tm, err := api.svc.SetActive(ctx.Request().Context(), id, active, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "setting team status")
	}
	return ctx.JSON(http.StatusOK, tm)
}
