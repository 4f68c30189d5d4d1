package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core/access"
	"github.com/trezcool/soka/core/player"
	"github.com/trezcool/soka/core/training"
	"github.com/trezcool/soka/core/valuation"
)

type playerApi struct {
	base         baseApi
	svc          player.Service
	valuationSvc valuation.Service
	trainingSvc  training.Service
}

func registerPlayerAPI(v1 *echo.Group, g *guard, api *playerApi) {
	players := v1.Group("/players", g.authenticated()...)
	players.GET("", api.list, g.permit(access.Players, access.List))
	players.POST("", api.create, g.permit(access.Players, access.Create))
	players.GET("/:id", api.retrieve, g.permit(access.Players, access.Read))
	players.PUT("/:id", api.update, g.permit(access.Players, access.Update))
	players.PATCH("/:id/status", api.setStatus, g.permit(access.Players, access.Toggle))
	players.PUT("/:id/team", api.assignTeam, g.permit(access.Players, access.Update))
	players.GET("/:id/rating", api.rating, g.permit(access.Players, access.Read))
	players.GET("/:id/attendance", api.attendance, g.permit(access.Players, access.Read))
}

func (api *playerApi) list(ctx echo.Context) error {
	params, err := api.base.listParams(ctx, player.ListSchema)
	if err != nil {
		return err
	}
	players, total, err := api.svc.List(ctx.Request().Context(), params, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "listing players")
	}
	return api.base.listResult(ctx, player.ListSchema, players, total, params)
}

func (api *playerApi) create(ctx echo.Context) error {
	var data player.NewPlayer
	if err := api.base.bind(ctx, &data, "NewPlayer"); err != nil {
		return err
	}
	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating player")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *playerApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Get(ctx.Request().Context(), id, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "finding player by ID")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *playerApi) update(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data player.UpdatePlayer
	if err = api.base.bind(ctx, &data, "UpdatePlayer"); err != nil {
		return err
	}
	p, err := api.svc.Update(ctx.Request().Context(), id, data, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "updating player")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *playerApi) setStatus(ctx echo.Context) error {
	id, active, err := api.base.bindStatus(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.SetActive(ctx.Request().Context(), id, active, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "setting player status")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *playerApi) assignTeam(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data player.AssignTeam
	if err = api.base.bind(ctx, &data, "AssignTeam"); err != nil {
		return err
	}
	p, err := api.svc.AssignTeam(ctx.Request().Context(), id, data, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "assigning team")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *playerApi) rating(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	r, err := api.valuationSvc.PlayerRating(ctx.Request().Context(), id, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "computing player rating")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *playerApi) attendance(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	s, err := api.trainingSvc.PlayerAttendance(ctx.Request().Context(), id, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "summarizing player attendance")
	}
	return ctx.JSON(http.StatusOK, s)
}
