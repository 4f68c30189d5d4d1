package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core/access"
	"github.com/trezcool/soka/core/booking"
)

type bookingApi struct {
	base baseApi
	svc  booking.Service
}

func registerBookingAPI(v1 *echo.Group, g *guard, api *bookingApi) {
	fields := v1.Group("/fields", g.authenticated()...)
	fields.GET("", api.listFields, g.permit(access.Fields, access.List))
	fields.POST("", api.createField, g.permit(access.Fields, access.Create))
	fields.GET("/:id", api.retrieveField, g.permit(access.Fields, access.Read))
	fields.PUT("/:id", api.updateField, g.permit(access.Fields, access.Update))
	fields.PATCH("/:id/status", api.setFieldStatus, g.permit(access.Fields, access.Toggle))

	bookings := v1.Group("/bookings", g.authenticated()...)
	bookings.GET("", api.list, g.permit(access.Bookings, access.List))
	bookings.POST("", api.create, g.permit(access.Bookings, access.Create))
	bookings.GET("/:id", api.retrieve, g.permit(access.Bookings, access.Read))
	bookings.PUT("/:id", api.update, g.permit(access.Bookings, access.Update))
	bookings.PATCH("/:id/status", api.setStatus, g.permit(access.Bookings, access.Toggle))
}

// fields are shared by everyone: the policy alone decides who may touch them.

func (api *bookingApi) listFields(ctx echo.Context) error {
	params, err := api.base.listParams(ctx, booking.FieldListSchema)
	if err != nil {
		return err
	}
	fields, total, err := api.svc.ListFields(ctx.Request().Context(), params)
	if err != nil {
		return errors.Wrap(err, "listing fields")
	}
	return api.base.listResult(ctx, booking.FieldListSchema, fields, total, params)
}

func (api *bookingApi) createField(ctx echo.Context) error {
	var data booking.NewField
	if err := api.base.bind(ctx, &data, "NewField"); err != nil {
		return err
	}
	f, err := api.svc.CreateField(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating field")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *bookingApi) retrieveField(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.GetField(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding field by ID")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *bookingApi) updateField(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data booking.UpdateField
	if err = api.base.bind(ctx, &data, "UpdateField"); err != nil {
		return err
	}
	f, err := api.svc.UpdateField(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating field")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *bookingApi) setFieldStatus(ctx echo.Context) error {
	id, active, err := api.base.bindStatus(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.SetFieldActive(ctx.Request().Context(), id, active)
	if err != nil {
		return errors.Wrap(err, "setting field status")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *bookingApi) list(ctx echo.Context) error {
	params, err := api.base.listParams(ctx, booking.ListSchema)
	if err != nil {
		return err
	}
	bookings, total, err := api.svc.List(ctx.Request().Context(), params, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "listing bookings")
	}
	return api.base.listResult(ctx, booking.ListSchema, bookings, total, params)
}

func (api *bookingApi) create(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data booking.NewBooking
	if err = api.base.bind(ctx, &data, "NewBooking"); err != nil {
		return err
	}
	b, err := api.svc.Create(ctx.Request().Context(), caller.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating booking")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *bookingApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	b, err := api.svc.Get(ctx.Request().Context(), id, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "finding booking by ID")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bookingApi) update(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data booking.UpdateBooking
	if err = api.base.bind(ctx, &data, "UpdateBooking"); err != nil {
		return err
	}
	b, err := api.svc.Update(ctx.Request().Context(), id, data, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "updating booking")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bookingApi) setStatus(ctx echo.Context) error {
	id, active, err := api.base.bindStatus(ctx)
	if err != nil {
		return err
	}
	b, err := api.svc.SetActive(ctx.Request().Context(), id, active, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "setting booking status")
	}
	return ctx.JSON(http.StatusOK, b)
}
