package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/access"
	"github.com/trezcool/soka/core/session"
	"github.com/trezcool/soka/core/user"
)

var errCannotDeactivateSelf = core.NewValidationError(nil, core.FieldError{
	Field: "is_active",
	Error: "you cannot deactivate your own account",
})

type userApi struct {
	base    baseApi
	svc     user.Service
	sessSvc session.Service
}

func registerUserAPI(v1 *echo.Group, g *guard, api *userApi) {
	users := v1.Group("/users", g.authenticated()...)
	users.GET("", api.list, g.permit(access.Users, access.List))
	users.POST("", api.create, g.permit(access.Users, access.Create))
	users.GET("/roles", api.queryRoles, g.permit(access.Users, access.Create))
	users.GET("/:id", api.retrieve, g.permit(access.Users, access.Read))
	users.PUT("/:id", api.update, g.permit(access.Users, access.Update))
	users.PATCH("/:id/status", api.setStatus, g.permit(access.Users, access.Toggle))
	users.PUT("/:id/password", api.changePassword, g.permit(access.Users, access.Update))
}

func roleError() error {
	return core.NewValidationError(nil, core.FieldError{Field: "role", Error: roleNotAllowedTxt})
}

// checkRank forbids touching a user whose role is above the caller's.
func checkRank(caller, usr user.User) error {
	if usr.ID != caller.ID && user.RolePriority(usr.Role) > user.RolePriority(caller.Role) {
		return errHttpForbidden
	}
	return nil
}

func (api *userApi) list(ctx echo.Context) error {
	params, err := api.base.listParams(ctx, user.ListSchema)
	if err != nil {
		return err
	}
	users, total, err := api.svc.List(ctx.Request().Context(), params, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "listing users")
	}
	return api.base.listResult(ctx, user.ListSchema, users, total, params)
}

func (api *userApi) create(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.NewUser
	if err = api.base.bind(ctx, &data, "NewUser"); err != nil {
		return err
	}
	// ctxUser cannot set a role > their own
	if !user.CanAssignRole(caller.Role, data.Role) {
		return roleError()
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.Get(ctx.Request().Context(), id, getContextScope(ctx))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateUser
	if err = api.base.bind(ctx, &data, "UpdateUser"); err != nil {
		return err
	}
	if data.Role != "" && !user.CanAssignRole(caller.Role, data.Role) {
		return roleError()
	}

	rctx := ctx.Request().Context()
	scope := getContextScope(ctx)
	usr, err := api.svc.Get(rctx, id, scope)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if err = checkRank(caller, usr); err != nil {
		return err
	}

	usr, err = api.svc.Update(rctx, id, data, scope)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) setStatus(ctx echo.Context) error {
	id, active, err := api.base.bindStatus(ctx)
	if err != nil {
		return err
	}
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	// Say No to Suicide! ctxUser cannot deactivate themselves
	if id == caller.ID && !active {
		return errCannotDeactivateSelf
	}

	rctx := ctx.Request().Context()
	scope := getContextScope(ctx)
	usr, err := api.svc.Get(rctx, id, scope)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if err = checkRank(caller, usr); err != nil {
		return err
	}

	usr, err = api.svc.SetActive(rctx, id, active, scope)
	if err != nil {
		return errors.Wrap(err, "setting user status")
	}
	if !active {
		if err = api.sessSvc.CloseAll(rctx, usr.ID); err != nil {
			return errors.Wrap(err, "closing user sessions")
		}
	}
	return ctx.JSON(http.StatusOK, usr)
}

// changePassword only ever changes the caller's own password.
func (api *userApi) changePassword(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if id != caller.ID {
		return errHttpForbidden
	}

	var data user.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err = data.Validate(api.base.validate, caller); err != nil {
		return err
	}

	if _, err = api.svc.ChangePassword(ctx.Request().Context(), caller, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// queryRoles lists the roles the caller may assign.
func (api *userApi) queryRoles(ctx echo.Context) error {
	caller, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	roles := make([]user.Role, 0, len(user.Roles))
	for _, r := range user.Roles {
		if user.CanAssignRole(caller.Role, r.Value) {
			roles = append(roles, r)
		}
	}
	return ctx.JSON(http.StatusOK, roles)
}
