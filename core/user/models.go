package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCoach   = "coach"
	RolePlayer  = "player"
)

var (
	AllRoles = []string{RoleAdmin, RoleManager, RoleCoach, RolePlayer}

	rolePriorities = map[string]int{
		RoleAdmin:   30,
		RoleManager: 20,
		RoleCoach:   10,
		RolePlayer:  1,
	}

	Roles = []Role{
		{Name: "Player", Value: RolePlayer},
		{Name: "Coach", Value: RoleCoach},
		{Name: "Manager", Value: RoleManager},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

// CanAssignRole tells whether a user with role `by` may give `role` to someone.
func CanAssignRole(by, role string) bool {
	p, ok := rolePriorities[role]
	return ok && p <= RolePriority(by)
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	PasswordHash []byte     `json:"-"`
	LastLogin    *time.Time `json:"last_login"` // UTC
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsManager() bool { return u.Role == RoleManager }
func (u User) IsCoach() bool   { return u.Role == RoleCoach }
func (u User) IsPlayer() bool  { return u.Role == RolePlayer }

// IsStaff is true for the academy's office: admins & managers.
func (u User) IsStaff() bool { return u.IsAdmin() || u.IsManager() }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required,notblank,max=100"`
	Username        string `json:"username" validate:"required,min=3,max=50,alphanum_"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Phone           string `json:"phone" validate:"omitempty,max=30"`
	Role            string `json:"role" validate:"required,role"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Clean()
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty fields are left untouched.
type UpdateUser struct {
	Name     string `json:"name" validate:"omitempty,notblank,max=100"`
	Username string `json:"username" validate:"omitempty,min=3,max=50,alphanum_"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Phone    string `json:"phone" validate:"omitempty,max=30"`
	Role     string `json:"role" validate:"omitempty,role"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	uu.Name = core.CleanString(uu.Name)
	uu.Username = core.CleanString(uu.Username, true /* lower */)
	uu.Email = core.CleanString(uu.Email, true /* lower */)
	uu.Phone = core.CleanString(uu.Phone)
	uu.Role = core.CleanString(uu.Role, true /* lower */)
	return validate.Struct(uu)
}

// Apply returns a copy of usr with the provided fields set.
func (uu UpdateUser) Apply(usr User) User {
	if uu.Name != "" {
		usr.Name = uu.Name
	}
	if uu.Username != "" {
		usr.Username = uu.Username
	}
	if uu.Email != "" {
		usr.Email = uu.Email
	}
	if uu.Phone != "" {
		usr.Phone = uu.Phone
	}
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	return usr
}

type ChangePassword struct {
	OldPassword     string `json:"old_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (cp ChangePassword) Validate(validate *validator.Validate, usr User) error {
	if err := validate.Struct(cp); err != nil {
		return err
	}
	return validatePasswordFor(cp.Password, usr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// ListSchema is the query contract of the users listing.
var ListSchema = listing.Schema{
	Resource: "users",
	Filters: []listing.Filter{
		{Param: "search", Kind: listing.Search, Columns: []string{"name", "username", "email"}},
		{Param: "role", Kind: listing.OneOf, Columns: []string{"role"}},
		{Param: "created_from", Kind: listing.Min, Type: listing.Time, Columns: []string{"created_at"}},
		{Param: "created_to", Kind: listing.Max, Type: listing.Time, Columns: []string{"created_at"}},
	},
	Sorts: map[string]string{
		"id":         "id",
		"name":       "name",
		"username":   "username",
		"email":      "email",
		"role":       "role",
		"created_at": "created_at",
		"last_login": "last_login",
	},
	DefaultSort: listing.Sort{Column: "created_at", Desc: true},
}
