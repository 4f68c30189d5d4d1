package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/session"
	"github.com/trezcool/soka/core/user"
)

var (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	contextScopeKey = "scope"
)

// Claims represents the authorization claims transmitted via a JWT.
// Id (jti) is the server-side session backing the token & Subject the user ID.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	Role         string `json:"role,omitempty"`
}

func (c Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func newClaims(conf *core.Config, usr user.User, sess session.Session, origIat ...int64) *Claims {
	now := core.Now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sess.ID,
			Issuer:    conf.AppName,
			Subject:   strconv.FormatInt(usr.ID, 10),
			ExpiresAt: sess.ExpiresAt.Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Role:         usr.Role,
	}
}

// generateToken generates a signed JWT token string representing the user Claims.
func generateToken(jwtConf middleware.JWTConfig, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser returns the user authenticated by the guard.
func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// getContextScope returns the scope granted by the guard's permit; an unguarded route gets no access.
func getContextScope(ctx echo.Context) core.Scope {
	if scope, ok := ctx.Get(contextScopeKey).(core.Scope); ok {
		return scope
	}
	return core.Scope{Level: core.ScopeDenied}
}

type authApi struct {
	conf    *core.Config
	jwtConf middleware.JWTConfig
	logger  core.Logger
	base    baseApi
	usrSvc  user.Service
	sessSvc session.Service
}

func registerAuthAPI(v1 *echo.Group, g *guard, api *authApi) {
	auth := v1.Group("/auth")
	auth.POST("/login", api.login)
	auth.POST("/password-reset", api.requestPasswordReset)
	auth.POST("/password-reset/confirm", api.confirmPasswordReset)

	auth.POST("/logout", api.logout, g.authenticated()...)
	auth.POST("/refresh", api.refresh, g.authenticated()...)
	auth.GET("/me", api.me, g.authenticated()...)
}

func (api *authApi) issueToken(usr user.User, sess session.Session, origIat ...int64) (string, error) {
	token, err := generateToken(api.jwtConf, newClaims(api.conf, usr, sess, origIat...))
	return token, errors.Wrap(err, "generating token")
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.base.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	usr, err := api.usrSvc.GetByUsernameOrEmail(rctx, data.Username)
	if err != nil {
		if core.IsNotFound(err) {
			return errInvalidCredentials
		}
		return errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(data.Password); err != nil {
		return errInvalidCredentials
	}
	if !usr.IsActive {
		return errAccountDeactivated
	}

	if usr, err = api.usrSvc.SetLastLogin(rctx, usr); err != nil {
		return errors.Wrap(err, "setting last login")
	}
	sess, err := api.sessSvc.Open(rctx, usr.ID, api.conf.Server.JWTExpiration)
	if err != nil {
		return errors.Wrap(err, "opening session")
	}
	token, err := api.issueToken(usr, sess)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: &usr})
}

func (api *authApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = api.sessSvc.Close(ctx.Request().Context(), claims.Id); err != nil {
		return errors.Wrap(err, "closing session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) refresh(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(api.conf.Server.JWTRefreshExpiration)
	if core.Now().After(expTime) {
		return errRefreshExpired
	}

	sess, err := api.sessSvc.Rotate(ctx.Request().Context(), claims.Id, api.conf.Server.JWTExpiration)
	if err != nil {
		if errors.Cause(err) == session.ErrRevoked || errors.Cause(err) == session.ErrExpired || core.IsNotFound(err) {
			return errSessionClosed
		}
		return errors.Wrap(err, "rotating session")
	}
	token, err := api.issueToken(usr, sess, claims.OrigIssuedAt)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *authApi) requestPasswordReset(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.base.validate); err != nil {
		return err
	}

	if err := api.usrSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.base.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	usr, err := api.usrSvc.ResetPassword(rctx, data)
	if err != nil {
		return errors.Wrap(err, "resetting password")
	}
	if err = api.sessSvc.CloseAll(rctx, usr.ID); err != nil {
		return errors.Wrap(err, "closing user sessions")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	// LoginRequest accepts a username or an email in Username.
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
