package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/user"
)

const usersTable = "users"

var (
	userColumns = []string{
		"id", "name", "username", "email", "phone", "role", "is_active",
		"password_hash", "last_login", "created_at", "updated_at",
	}
	userOwnership = ownership{
		user.RoleAdmin:   ownedBy("id"),
		user.RoleManager: ownedBy("id"),
		user.RoleCoach:   ownedBy("id"),
		user.RolePlayer:  ownedBy("id"),
	}
)

type userRow struct {
	ID           int64       `db:"id"`
	Name         string      `db:"name"`
	Username     string      `db:"username"`
	Email        string      `db:"email"`
	Phone        null.String `db:"phone"`
	Role         string      `db:"role"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	LastLogin    null.Time   `db:"last_login"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{repository: newRepository(db)}
}

func (repo userRepository) boil(usr user.User) map[string]interface{} {
	return map[string]interface{}{
		"name":          usr.Name,
		"username":      usr.Username,
		"email":         usr.Email,
		"phone":         null.NewString(usr.Phone, usr.Phone != ""),
		"role":          usr.Role,
		"is_active":     usr.IsActive,
		"password_hash": usr.PasswordHash,
		"last_login":    null.TimeFromPtr(usr.LastLogin),
		"created_at":    usr.CreatedAt.UTC(),
		"updated_at":    usr.UpdatedAt.UTC(),
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email,
		Phone:        row.Phone.String,
		Role:         row.Role,
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		t := row.LastLogin.Time.UTC()
		usr.LastLogin = &t
	}
	return usr
}

// trapNoRowsErr maps the "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludeID int64, exec ...core.DBExecutor) error {
	var taken []userRow
	q := repo.sb.Select("username", "email").
		From(usersTable).
		Where(sq.Or{sq.Eq{"username": username}, sq.Eq{"email": email}}).
		Where(sq.NotEq{"id": excludeID})
	if err := repo.selectRows(ctx, repo.getExec(exec), &taken, q); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range taken {
		if row.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(taken) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) Create(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), usersTable, repo.boil(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = id
	return usr, nil
}

func (repo userRepository) List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]user.User, int, error) {
	var rows []userRow
	total, err := repo.list(ctx, repo.getExec(exec), &rows, usersTable, userColumns, params, scopeCondition(scope, userOwnership))
	if err != nil {
		return nil, 0, errors.Wrap(err, "listing users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.unboil(row))
	}
	return users, total, nil
}

func (repo userRepository) Get(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var where sq.Sqlizer
	switch {
	case filter.ID != 0:
		where = sq.Eq{"id": filter.ID}
	case filter.Username != "":
		where = sq.Eq{"username": filter.Username}
	case filter.Email != "":
		where = sq.Eq{"email": filter.Email}
	case filter.UsernameOrEmail != "":
		where = sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := repo.sb.Select(userColumns...).
		From(usersTable).
		Where(withScope(where, filter.Scope, userOwnership)).
		Limit(1)
	if err := repo.get(ctx, repo.getExec(exec), &row, q); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) Update(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	values := repo.boil(usr)
	delete(values, "created_at")
	if err := repo.update(ctx, repo.getExec(exec), usersTable, usr.ID, values); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return usr, nil
}
