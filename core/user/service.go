package user

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("user not found")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrUsernameExists  = errors.New("a user with this username already exists")
	ErrWrongPassword   = errors.New("incorrect password")
	errInvalidResetURL = errors.New("invalid password reset link")

	invalidResetText = "the password reset link is invalid or has expired"
)

type (
	// GetFilter selects a single User; the first non-empty field wins.
	// Scope is applied on top of the selection.
	GetFilter struct {
		ID              int64
		Username        string
		Email           string
		UsernameOrEmail string
		Scope           core.Scope
	}

	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another user (excludeID aside) holds them.
		CheckUniqueness(ctx context.Context, username, email string, excludeID int64, exec ...core.DBExecutor) error
		Create(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]User, int, error)
		Get(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		Update(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		List(ctx context.Context, params listing.Params, scope core.Scope) ([]User, int, error)
		Get(ctx context.Context, id int64, scope core.Scope) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, id int64, uu UpdateUser, scope core.Scope) (User, error)
		SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		db:      db,
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeout),
		conf:    conf,
	}
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email string, excludeID int64, exec core.DBExecutor) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludeID, exec); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking user uniqueness")
		}
		return core.NewConflictError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.Now()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkUniqueness(ctx, usr.Username, usr.Email, 0, tx); err != nil {
			return err
		}
		var err error
		usr, err = svc.repo.Create(ctx, usr, tx)
		return err
	})
	if err != nil {
		return User{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{
			"Name":     usr.Name,
			"Username": usr.Username,
			"Role":     usr.Role,
		},
	})
	return usr, nil
}

func (svc *service) List(ctx context.Context, params listing.Params, scope core.Scope) ([]User, int, error) {
	return svc.repo.List(ctx, params, scope)
}

func (svc *service) Get(ctx context.Context, id int64, scope core.Scope) (User, error) {
	return svc.repo.Get(ctx, GetFilter{ID: id, Scope: scope})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	if uname == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.Get(ctx, GetFilter{UsernameOrEmail: uname, Scope: core.Unrestricted})
}

func (svc *service) Update(ctx context.Context, id int64, uu UpdateUser, scope core.Scope) (User, error) {
	var usr User
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		old, err := svc.repo.Get(ctx, GetFilter{ID: id, Scope: scope}, tx)
		if err != nil {
			return err
		}
		usr = uu.Apply(old)
		if usr.Username != old.Username || usr.Email != old.Email {
			if err = svc.checkUniqueness(ctx, usr.Username, usr.Email, usr.ID, tx); err != nil {
				return err
			}
		}
		usr.UpdatedAt = core.Now()
		usr, err = svc.repo.Update(ctx, usr, tx)
		return err
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *service) SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (User, error) {
	usr, err := svc.repo.Get(ctx, GetFilter{ID: id, Scope: scope})
	if err != nil {
		return User{}, err
	}
	if usr.IsActive == active {
		return usr, nil
	}
	usr.IsActive = active
	usr.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := core.Now()
	usr.LastLogin = &now
	return svc.repo.Update(ctx, usr)
}

func (svc *service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error) {
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return User{}, core.NewValidationError(ErrWrongPassword, core.FieldError{Field: "old_password", Error: ErrWrongPassword.Error()})
	}
	return svc.SetPassword(ctx, usr, cp.Password)
}

// SetPassword applies the password policy to pwd before saving it.
func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := validatePasswordFor(pwd, usr); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, usr)
}

// RequestPasswordReset mails a reset link to the active user owning email.
// ErrNotFound is returned when there is no such user; callers should not leak it.
func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	usr, err := svc.repo.Get(ctx, GetFilter{Email: email, Scope: core.Unrestricted})
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	url := fmt.Sprintf("%s/password-reset/%s/%s", svc.conf.FrontendBaseURL, EncodeUID(usr), svc.tokens.makeToken(usr))
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":     usr.Name,
			"Username": usr.Username,
			"URL":      url,
		},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error) {
	invalid := core.NewValidationError(errInvalidResetURL, core.FieldError{Field: "token", Error: invalidResetText})

	id, err := decodeUID(rp.UID)
	if err != nil {
		return User{}, invalid
	}
	usr, err := svc.repo.Get(ctx, GetFilter{ID: id, Scope: core.Unrestricted})
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, invalid
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return User{}, invalid
	}
	if err = svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return User{}, invalid
	}
	return svc.SetPassword(ctx, usr, rp.Password)
}
