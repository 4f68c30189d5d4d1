package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
)

const pqUniqueViolation = "23505"

var errDuplicate = errors.New("duplicate value")

// MapError turns the driver errors the app knows about into domain errors,
// so that a uniqueness race lost at insert time still answers like a failed uniqueness check.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	switch e := errors.Cause(err).(type) {
	case sqlite3.Error:
		if e.ExtendedCode == sqlite3.ErrConstraintUnique || e.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return duplicate(sqliteField(e.Error()))
		}
	case *pq.Error:
		if e.Code == pqUniqueViolation {
			return duplicate(pqField(e))
		}
	}
	return err
}

func duplicate(field string) error {
	return core.NewConflictError(errDuplicate, core.FieldError{Field: field, Error: "this value already exists"})
}

// sqliteField extracts the column from e.g. "UNIQUE constraint failed: users.username".
func sqliteField(msg string) string {
	if i := strings.LastIndex(msg, ":"); i >= 0 {
		msg = msg[i+1:]
	}
	cols := strings.Split(msg, ",")
	col := strings.TrimSpace(cols[len(cols)-1])
	if i := strings.LastIndex(col, "."); i >= 0 {
		col = col[i+1:]
	}
	return col
}

// pqField extracts the column from the name of a default unique constraint, e.g. "users_username_key".
func pqField(e *pq.Error) string {
	name := strings.TrimSuffix(e.Constraint, "_key")
	if e.Table != "" {
		name = strings.TrimPrefix(name, e.Table+"_")
	}
	return name
}
