package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/user"
	"github.com/trezcool/soka/core/valuation"
)

const valuationsTable = "valuations"

var (
	valuationColumns = []string{
		"id", "player_id", "coach_id", "technique", "tactics", "physical", "mental",
		"overall_rating", "comments", "evaluated_on", "is_active", "created_at", "updated_at",
	}
	valuationOwnership = ownership{
		user.RoleCoach:  ownedBy("coach_id"),
		user.RolePlayer: linkedPlayerOf("player_id"),
	}
)

type valuationRow struct {
	ID            int64     `db:"id"`
	PlayerID      int64     `db:"player_id"`
	CoachID       int64     `db:"coach_id"`
	Technique     int       `db:"technique"`
	Tactics       int       `db:"tactics"`
	Physical      int       `db:"physical"`
	Mental        int       `db:"mental"`
	OverallRating float64   `db:"overall_rating"`
	Comments      string    `db:"comments"`
	EvaluatedOn   string    `db:"evaluated_on"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type ratingRow struct {
	Count     int     `db:"count"`
	Technique float64 `db:"technique"`
	Tactics   float64 `db:"tactics"`
	Physical  float64 `db:"physical"`
	Mental    float64 `db:"mental"`
	Overall   float64 `db:"overall"`
}

type valuationRepository struct {
	repository
}

var _ valuation.Repository = (*valuationRepository)(nil)

func NewValuationRepository(db *sqlx.DB) *valuationRepository {
	return &valuationRepository{repository: newRepository(db)}
}

func (repo valuationRepository) boil(v valuation.Valuation) map[string]interface{} {
	return map[string]interface{}{
		"player_id":      v.PlayerID,
		"coach_id":       v.CoachID,
		"technique":      v.Technique,
		"tactics":        v.Tactics,
		"physical":       v.Physical,
		"mental":         v.Mental,
		"overall_rating": v.OverallRating,
		"comments":       v.Comments,
		"evaluated_on":   v.EvaluatedOn,
		"is_active":      v.IsActive,
		"created_at":     v.CreatedAt.UTC(),
		"updated_at":     v.UpdatedAt.UTC(),
	}
}

func (repo valuationRepository) unboil(row valuationRow) valuation.Valuation {
	return valuation.Valuation{
		ID:            row.ID,
		PlayerID:      row.PlayerID,
		CoachID:       row.CoachID,
		Technique:     row.Technique,
		Tactics:       row.Tactics,
		Physical:      row.Physical,
		Mental:        row.Mental,
		OverallRating: row.OverallRating,
		Comments:      row.Comments,
		EvaluatedOn:   row.EvaluatedOn,
		IsActive:      row.IsActive,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

func (repo valuationRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return valuation.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo valuationRepository) Create(ctx context.Context, v valuation.Valuation, exec ...core.DBExecutor) (valuation.Valuation, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), valuationsTable, repo.boil(v))
	if err != nil {
		return valuation.Valuation{}, errors.Wrap(err, "inserting valuation")
	}
	v.ID = id
	return v, nil
}

func (repo valuationRepository) List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]valuation.Valuation, int, error) {
	var rows []valuationRow
	total, err := repo.list(ctx, repo.getExec(exec), &rows, valuationsTable, valuationColumns, params, scopeCondition(scope, valuationOwnership))
	if err != nil {
		return nil, 0, errors.Wrap(err, "listing valuations")
	}
	vals := make([]valuation.Valuation, 0, len(rows))
	for _, row := range rows {
		vals = append(vals, repo.unboil(row))
	}
	return vals, total, nil
}

func (repo valuationRepository) Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (valuation.Valuation, error) {
	var row valuationRow
	q := repo.sb.Select(valuationColumns...).
		From(valuationsTable).
		Where(withScope(sq.Eq{"id": id}, scope, valuationOwnership))
	if err := repo.get(ctx, repo.getExec(exec), &row, q); err != nil {
		return valuation.Valuation{}, repo.trapNoRowsErr(err, "getting valuation")
	}
	return repo.unboil(row), nil
}

func (repo valuationRepository) Update(ctx context.Context, v valuation.Valuation, exec ...core.DBExecutor) (valuation.Valuation, error) {
	values := repo.boil(v)
	delete(values, "created_at")
	if err := repo.update(ctx, repo.getExec(exec), valuationsTable, v.ID, values); err != nil {
		return valuation.Valuation{}, repo.trapNoRowsErr(err, "updating valuation")
	}
	return v, nil
}

func (repo valuationRepository) Rating(ctx context.Context, playerID int64, exec ...core.DBExecutor) (valuation.PlayerRating, error) {
	var row ratingRow
	q := repo.sb.Select(
		"COUNT(*) AS count",
		"COALESCE(AVG(technique), 0) AS technique",
		"COALESCE(AVG(tactics), 0) AS tactics",
		"COALESCE(AVG(physical), 0) AS physical",
		"COALESCE(AVG(mental), 0) AS mental",
		"COALESCE(AVG(overall_rating), 0) AS overall",
	).
		From(valuationsTable).
		Where(sq.Eq{"player_id": playerID, "is_active": true})
	if err := repo.get(ctx, repo.getExec(exec), &row, q); err != nil {
		return valuation.PlayerRating{}, errors.Wrap(err, "averaging valuations")
	}
	return valuation.PlayerRating{
		PlayerID:  playerID,
		Count:     row.Count,
		Technique: row.Technique,
		Tactics:   row.Tactics,
		Physical:  row.Physical,
		Mental:    row.Mental,
		Overall:   row.Overall,
	}, nil
}
