package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/storage/database"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// repository holds what every table repository needs: a default executor and
// a statement builder using the placeholders of the db's driver.
type repository struct {
	exec core.DBExecutor
	sb   sq.StatementBuilderType
}

func newRepository(db *sqlx.DB) repository {
	var ph sq.PlaceholderFormat = sq.Question
	if db.DriverName() == database.EnginePostgres {
		ph = sq.Dollar
	}
	return repository{exec: db, sb: sq.StatementBuilder.PlaceholderFormat(ph)}
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo repository) get(ctx context.Context, exec core.DBExecutor, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return exec.GetContext(ctx, dest, query, args...)
}

func (repo repository) selectRows(ctx context.Context, exec core.DBExecutor, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return exec.SelectContext(ctx, dest, query, args...)
}

func (repo repository) count(ctx context.Context, exec core.DBExecutor, table string, where sq.Sqlizer) (int, error) {
	var n int
	err := repo.get(ctx, exec, &n, repo.sb.Select("COUNT(*)").From(table).Where(where))
	return n, err
}

// insert inserts a row and returns its new id.
func (repo repository) insert(ctx context.Context, exec core.DBExecutor, table string, values map[string]interface{}) (int64, error) {
	var id int64
	q := repo.sb.Insert(table).SetMap(values).Suffix("RETURNING id")
	if err := repo.get(ctx, exec, &id, q); err != nil {
		return 0, database.MapError(err)
	}
	return id, nil
}

// update sets the values of the row with the given id; sql.ErrNoRows is returned if there is no such row.
func (repo repository) update(ctx context.Context, exec core.DBExecutor, table string, id int64, values map[string]interface{}) error {
	query, args, err := repo.sb.Update(table).SetMap(values).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return database.MapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// list runs the count & page queries of a listing. The scope predicate, if any, is ANDed to the filters.
func (repo repository) list(
	ctx context.Context,
	exec core.DBExecutor,
	dest interface{},
	table string,
	columns []string,
	p listing.Params,
	scope sq.Sqlizer,
) (int, error) {
	where := listConditions(p)
	if scope != nil {
		where = append(where, scope)
	}

	total, err := repo.count(ctx, exec, table, where)
	if err != nil {
		return 0, errors.Wrap(err, "counting rows")
	}
	if total == 0 || p.Offset() >= total {
		return total, nil
	}

	q := repo.sb.Select(columns...).
		From(table).
		Where(where).
		OrderBy(orderBy(p.Sort)...).
		Limit(uint64(p.Limit)).
		Offset(uint64(p.Offset()))
	if err = repo.selectRows(ctx, exec, dest, q); err != nil {
		return 0, errors.Wrap(err, "selecting rows")
	}
	return total, nil
}

// listConditions translates the status & filter criteria of a listing into ANDed predicates.
func listConditions(p listing.Params) sq.And {
	conds := make(sq.And, 0, len(p.Criteria)+2)
	switch p.Status {
	case listing.StatusInactive:
		conds = append(conds, sq.Eq{"is_active": false})
	case listing.StatusAll:
	default:
		conds = append(conds, sq.Eq{"is_active": true})
	}
	for _, c := range p.Criteria {
		conds = append(conds, criterionCondition(c))
	}
	return conds
}

func criterionCondition(c listing.Criterion) sq.Sqlizer {
	col := c.Filter.Column()
	switch c.Filter.Kind {
	case listing.OneOf:
		return sq.Eq{col: c.Values}
	case listing.Min:
		return sq.GtOrEq{col: c.Value()}
	case listing.Max:
		return sq.LtOrEq{col: c.Value()}
	case listing.IsNull:
		if isNull, _ := c.Value().(bool); isNull {
			return sq.Eq{col: nil}
		}
		return sq.NotEq{col: nil}
	case listing.Search:
		val, _ := c.Value().(string)
		pattern := "%" + likeEscaper.Replace(strings.ToLower(val)) + "%"
		or := make(sq.Or, 0, len(c.Filter.Columns))
		for _, col := range c.Filter.Columns {
			or = append(or, sq.Expr("LOWER("+col+") LIKE ? ESCAPE '\\'", pattern))
		}
		return or
	default:
		return sq.Eq{col: c.Value()}
	}
}

// orderBy sorts on the requested column, then on id so that pages are stable.
func orderBy(s listing.Sort) []string {
	col := s.Column
	if col == "" {
		col = "created_at"
	}
	clauses := []string{col + " " + s.Direction()}
	if col != "id" {
		clauses = append(clauses, "id ASC")
	}
	return clauses
}

// ownership maps a role to the predicate restricting a table to the records of the user.
type ownership map[string]func(userID int64) sq.Sqlizer

// scopeCondition returns the predicate of a restricted scope, nil when the scope is unrestricted.
// Roles without an ownership rule see nothing.
func scopeCondition(scope core.Scope, own ownership) sq.Sqlizer {
	if !scope.Restricted() {
		return nil
	}
	if pred, ok := own[scope.Role]; ok {
		return pred(scope.UserID)
	}
	return sq.Expr("1 = 0")
}

func withScope(where sq.Sqlizer, scope core.Scope, own ownership) sq.Sqlizer {
	if pred := scopeCondition(scope, own); pred != nil {
		return sq.And{where, pred}
	}
	return where
}

func ownedBy(col string) func(int64) sq.Sqlizer {
	return func(userID int64) sq.Sqlizer { return sq.Eq{col: userID} }
}

func coachedTeamsOf(col string) func(int64) sq.Sqlizer {
	return func(userID int64) sq.Sqlizer {
		return sq.Expr(col+" IN (SELECT id FROM teams WHERE coach_id = ?)", userID)
	}
}

func linkedPlayerOf(col string) func(int64) sq.Sqlizer {
	return func(userID int64) sq.Sqlizer {
		return sq.Expr(col+" IN (SELECT id FROM players WHERE user_id = ?)", userID)
	}
}

func coachedTrainingsOf(col string) func(int64) sq.Sqlizer {
	return func(userID int64) sq.Sqlizer {
		return sq.Expr(col+" IN (SELECT id FROM trainings WHERE coach_id = ?)", userID)
	}
}
