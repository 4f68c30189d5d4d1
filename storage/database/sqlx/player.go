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
	"github.com/trezcool/soka/core/player"
	"github.com/trezcool/soka/core/user"
)

const playersTable = "players"

var (
	playerColumns = []string{
		"id", "user_id", "first_name", "last_name", "birth_date", "position", "jersey_number",
		"team_id", "guardian_name", "guardian_phone", "is_active", "created_at", "updated_at",
	}
	playerOwnership = ownership{
		user.RoleCoach:  coachedTeamsOf("team_id"),
		user.RolePlayer: ownedBy("user_id"),
	}
)

type playerRow struct {
	ID            int64      `db:"id"`
	UserID        null.Int64 `db:"user_id"`
	FirstName     string     `db:"first_name"`
	LastName      string     `db:"last_name"`
	BirthDate     string     `db:"birth_date"`
	Position      string     `db:"position"`
	JerseyNumber  null.Int   `db:"jersey_number"`
	TeamID        null.Int64 `db:"team_id"`
	GuardianName  string     `db:"guardian_name"`
	GuardianPhone string     `db:"guardian_phone"`
	IsActive      bool       `db:"is_active"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

type playerRepository struct {
	repository
}

var _ player.Repository = (*playerRepository)(nil)

func NewPlayerRepository(db *sqlx.DB) *playerRepository {
	return &playerRepository{repository: newRepository(db)}
}

func (repo playerRepository) boil(p player.Player) map[string]interface{} {
	return map[string]interface{}{
		"user_id":        null.Int64FromPtr(p.UserID),
		"first_name":     p.FirstName,
		"last_name":      p.LastName,
		"birth_date":     p.BirthDate,
		"position":       p.Position,
		"jersey_number":  null.IntFromPtr(p.JerseyNumber),
		"team_id":        null.Int64FromPtr(p.TeamID),
		"guardian_name":  p.GuardianName,
		"guardian_phone": p.GuardianPhone,
		"is_active":      p.IsActive,
		"created_at":     p.CreatedAt.UTC(),
		"updated_at":     p.UpdatedAt.UTC(),
	}
}

func (repo playerRepository) unboil(row playerRow) player.Player {
	return player.Player{
		ID:            row.ID,
		UserID:        row.UserID.Ptr(),
		FirstName:     row.FirstName,
		LastName:      row.LastName,
		BirthDate:     row.BirthDate,
		Position:      row.Position,
		JerseyNumber:  row.JerseyNumber.Ptr(),
		TeamID:        row.TeamID.Ptr(),
		GuardianName:  row.GuardianName,
		GuardianPhone: row.GuardianPhone,
		IsActive:      row.IsActive,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

func (repo playerRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return player.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo playerRepository) Create(ctx context.Context, p player.Player, exec ...core.DBExecutor) (player.Player, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), playersTable, repo.boil(p))
	if err != nil {
		return player.Player{}, errors.Wrap(err, "inserting player")
	}
	p.ID = id
	return p, nil
}

func (repo playerRepository) List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]player.Player, int, error) {
	var rows []playerRow
	total, err := repo.list(ctx, repo.getExec(exec), &rows, playersTable, playerColumns, params, scopeCondition(scope, playerOwnership))
	if err != nil {
		return nil, 0, errors.Wrap(err, "listing players")
	}
	players := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		players = append(players, repo.unboil(row))
	}
	return players, total, nil
}

func (repo playerRepository) getWhere(ctx context.Context, exec core.DBExecutor, where sq.Sqlizer) (player.Player, error) {
	var row playerRow
	q := repo.sb.Select(playerColumns...).From(playersTable).Where(where)
	if err := repo.get(ctx, exec, &row, q); err != nil {
		return player.Player{}, repo.trapNoRowsErr(err, "getting player")
	}
	return repo.unboil(row), nil
}

func (repo playerRepository) Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (player.Player, error) {
	return repo.getWhere(ctx, repo.getExec(exec), withScope(sq.Eq{"id": id}, scope, playerOwnership))
}

func (repo playerRepository) GetByUser(ctx context.Context, userID int64, exec ...core.DBExecutor) (player.Player, error) {
	return repo.getWhere(ctx, repo.getExec(exec), sq.Eq{"user_id": userID})
}

func (repo playerRepository) Update(ctx context.Context, p player.Player, exec ...core.DBExecutor) (player.Player, error) {
	values := repo.boil(p)
	delete(values, "created_at")
	if err := repo.update(ctx, repo.getExec(exec), playersTable, p.ID, values); err != nil {
		return player.Player{}, repo.trapNoRowsErr(err, "updating player")
	}
	return p, nil
}

