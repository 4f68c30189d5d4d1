package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/access"
	"github.com/trezcool/soka/core/session"
	"github.com/trezcool/soka/core/user"
)

// guard authenticates the requests and resolves the caller's scope on each route.
type guard struct {
	jwt     echo.MiddlewareFunc
	policy  access.Policy
	usrSvc  user.Service
	sessSvc session.Service
}

// authenticated checks the JWT, then the session behind it & the user it belongs to.
func (g *guard) authenticated() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{g.jwt, g.session}
}

func (g *guard) session(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}

		rctx := ctx.Request().Context()
		if _, err = g.sessSvc.Check(rctx, claims.Id); err != nil {
			switch {
			case core.IsNotFound(err), errors.Cause(err) == session.ErrExpired, errors.Cause(err) == session.ErrRevoked:
				return errSessionClosed
			default:
				return errors.Wrap(err, "checking session")
			}
		}

		uid, err := claims.UserID()
		if err != nil {
			return errUnauthorized
		}
		usr, err := g.usrSvc.Get(rctx, uid, core.Unrestricted)
		if err != nil {
			if core.IsNotFound(err) {
				return errUnauthorized
			}
			return errors.Wrap(err, "finding user by ID")
		}
		if !usr.IsActive {
			return errUnauthorized
		}

		ctx.Set(contextUserKey, usr)
		return next(ctx)
	}
}

// permit lets the request through if the policy allows the action, with the resulting scope in the context.
func (g *guard) permit(res access.Resource, act access.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			scope, err := g.policy.Scope(usr, res, act)
			if err != nil {
				return err
			}
			ctx.Set(contextScopeKey, scope)
			return next(ctx)
		}
	}
}
