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
	"github.com/trezcool/soka/core/team"
	"github.com/trezcool/soka/core/user"
)

const teamsTable = "teams"

var (
	teamColumns   = []string{"id", "name", "category", "coach_id", "is_active", "created_at", "updated_at"}
	teamOwnership = ownership{user.RoleCoach: ownedBy("coach_id")}
)

type teamRow struct {
	ID        int64      `db:"id"`
	Name      string     `db:"name"`
	Category  string     `db:"category"`
	CoachID   null.Int64 `db:"coach_id"`
	IsActive  bool       `db:"is_active"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

type teamRepository struct {
	repository
}

var _ team.Repository = (*teamRepository)(nil)

func NewTeamRepository(db *sqlx.DB) *teamRepository {
	return &teamRepository{repository: newRepository(db)}
}

func (repo teamRepository) boil(t team.Team) map[string]interface{} {
	return map[string]interface{}{
		"name":       t.Name,
		"category":   t.Category,
		"coach_id":   null.Int64FromPtr(t.CoachID),
		"is_active":  t.IsActive,
		"created_at": t.CreatedAt.UTC(),
		"updated_at": t.UpdatedAt.UTC(),
	}
}

func (repo teamRepository) unboil(row teamRow) team.Team {
	return team.Team{
		ID:        row.ID,
		Name:      row.Name,
		Category:  row.Category,
		CoachID:   row.CoachID.Ptr(),
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (repo teamRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return team.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo teamRepository) CheckUniqueness(ctx context.Context, name string, excludeID int64, exec ...core.DBExecutor) error {
	n, err := repo.count(ctx, repo.getExec(exec), teamsTable, sq.And{
		sq.Expr("LOWER(name) = LOWER(?)", name),
		sq.NotEq{"id": excludeID},
	})
	if err != nil {
		return errors.Wrap(err, "checking team uniqueness")
	}
	if n > 0 {
		return team.ErrNameExists
	}
	return nil
}

func (repo teamRepository) Create(ctx context.Context, t team.Team, exec ...core.DBExecutor) (team.Team, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), teamsTable, repo.boil(t))
	if err != nil {
		return team.Team{}, errors.Wrap(err, "inserting team")
	}
	t.ID = id
	return t, nil
}

func (repo teamRepository) List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]team.Team, int, error) {
	var rows []teamRow
	total, err := repo.list(ctx, repo.getExec(exec), &rows, teamsTable, teamColumns, params, scopeCondition(scope, teamOwnership))
	if err != nil {
		return nil, 0, errors.Wrap(err, "listing teams")
	}
	teams := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		teams = append(teams, repo.unboil(row))
	}
	return teams, total, nil
}

func (repo teamRepository) Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (team.Team, error) {
	var row teamRow
	q := repo.sb.Select(teamColumns...).
		From(teamsTable).
		Where(withScope(sq.Eq{"id": id}, scope, teamOwnership))
	if err := repo.get(ctx, repo.getExec(exec), &row, q); err != nil {
		return team.Team{}, repo.trapNoRowsErr(err, "getting team")
	}
	return repo.unboil(row), nil
}

func (repo teamRepository) Update(ctx context.Context, t team.Team, exec ...core.DBExecutor) (team.Team, error) {
	values := repo.boil(t)
	delete(values, "created_at")
	if err := repo.update(ctx, repo.getExec(exec), teamsTable, t.ID, values); err != nil {
		return team.Team{}, repo.trapNoRowsErr(err, "updating team")
	}
	return t, nil
}
