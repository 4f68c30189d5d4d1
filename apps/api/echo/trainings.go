package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core/access"
	"github.com/trezcool/soka/core/training"
)

type trainingApi struct {
	base baseApi
	svc  training.Service
}

func registerTrainingAPI(v1 *echo.Group, g *guard, api *trainingApi) {
	trainings := v1.Group("/trainings", g.authenticated()...)
	trainings.GET("", api.list, g.permit(access.Trainings, access.List))
	trainings.POST("", api.create, g.permit(access.Trainings, access.Create))
	trainings.GET("/:id", api.retrieve, g.permit(access.Trainings, access.Read))
	trainings.PUT("/:id", api.update, g.permit(access.Trainings, access.Update))
	trainings.PATCH("/:id/status", api.setStatus, g.permit(access.Trainings, access.Toggle))
	trainings.GET("/:id/attendance", api.listAttendance, g.permit(access.Attendance, access.List))
	trainings.PUT("/:id/attendance", api.recordAttendance, g.permit(access.Attendance, access.Update))
}

func (api *trainingApi) list(ctx echo.Context) error {
	params, err := api.base.listParams(ctx, training.ListSchema)
	if err != nil {
		return err
	}
	trainings, total, err := api.svc.List(ctx.Request().Context(), params, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "listing trainings")
	}
	return api.base.listResult(ctx, training.ListSchema, trainings, total, params)
}

func (api *trainingApi) create(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data training.NewTraining
	if err = api.base.bind(ctx, &data, "NewTraining"); err != nil {
		return err
	}
	tr, err := api.svc.Create(ctx.Request().Context(), caller, data)
	if err != nil {
		return errors.Wrap(err, "creating training")
	}
	return ctx.JSON(http.StatusCreated, tr)
}

func (api *trainingApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	tr, err := api.svc.Get(ctx.Request().Context(), id, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "finding training by ID")
	}
	return ctx.JSON(http.StatusOK, tr)
}

func (api *trainingApi) update(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data training.UpdateTraining
	if err = api.base.bind(ctx, &data, "UpdateTraining"); err != nil {
		return err
	}
	tr, err := api.svc.Update(ctx.Request().Context(), id, data, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "updating training")
	}
	return ctx.JSON(http.StatusOK, tr)
}

func (api *trainingApi) setStatus(ctx echo.Context) error {
	id, active, err := api.base.bindStatus(ctx)
	if err != nil {
		return err
	}
	tr, err := api.svc.SetActive(ctx.Request().Context(), id, active, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "setting training status")
	}
	return ctx.JSON(http.StatusOK, tr)
}

func (api *trainingApi) listAttendance(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	att, err := api.svc.ListAttendance(ctx.Request().Context(), id, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "listing attendance")
	}
	if att == nil {
		att = []training.Attendance{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"attendance": att})
}

// recordAttendance upserts the roll call & returns the recorded entries.
func (api *trainingApi) recordAttendance(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data training.RecordAttendance
	if err = api.base.bind(ctx, &data, "RecordAttendance"); err != nil {
		return err
	}
	att, err := api.svc.RecordAttendance(ctx.Request().Context(), id, data, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"attendance": att})
}
