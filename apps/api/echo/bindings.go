package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core/listing"
)

// baseApi holds what every resource api needs.
type baseApi struct {
	validate *validator.Validate
	listOpts listing.Options
}

// validatable is implemented by the request payloads of the domain packages.
type validatable interface {
	Validate(validate *validator.Validate) error
}

// bind decodes the request body into data & validates it.
func (b baseApi) bind(ctx echo.Context, data validatable, name string) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding to "+name)
	}
	return data.Validate(b.validate)
}

// listParams parses the listing query (pagination, sorting, status & filters) against schema.
func (b baseApi) listParams(ctx echo.Context, schema listing.Schema) (listing.Params, error) {
	return listing.Parse(schema, ctx.QueryParams(), b.listOpts)
}

func (b baseApi) listResult(ctx echo.Context, schema listing.Schema, items interface{}, total int, params listing.Params) error {
	return ctx.JSON(http.StatusOK, listing.NewResult(schema.Resource, items, total, params))
}

// paramID returns the `:id` path param; anything but a positive integer is not found.
func paramID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// StatusRequest activates or deactivates a record.
type StatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

func (sr *StatusRequest) Validate(validate *validator.Validate) error { return validate.Struct(sr) }

// bindStatus returns the `:id` path param & the requested status.
func (b baseApi) bindStatus(ctx echo.Context) (int64, bool, error) {
	id, err := paramID(ctx)
	if err != nil {
		return 0, false, err
	}
	var data StatusRequest
	if err = b.bind(ctx, &data, "StatusRequest"); err != nil {
		return 0, false, err
	}
	return id, *data.IsActive, nil
}
