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
	"github.com/trezcool/soka/core/training"
	"github.com/trezcool/soka/core/user"
)

const (
	trainingsTable  = "trainings"
	attendanceTable = "attendance"
)

var (
	trainingColumns = []string{
		"id", "team_id", "coach_id", "title", "scheduled_at", "duration_minutes",
		"location", "notes", "is_active", "created_at", "updated_at",
	}
	attendanceColumns = []string{"id", "training_id", "player_id", "status", "notes", "created_at", "updated_at"}
	trainingOwnership = ownership{user.RoleCoach: ownedBy("coach_id")}

	attendanceOwnership = ownership{
		user.RoleCoach:  coachedTrainingsOf("training_id"),
		user.RolePlayer: linkedPlayerOf("player_id"),
	}
)

type trainingRow struct {
	ID              int64     `db:"id"`
	TeamID          int64     `db:"team_id"`
	CoachID         int64     `db:"coach_id"`
	Title           string    `db:"title"`
	ScheduledAt     time.Time `db:"scheduled_at"`
	DurationMinutes int       `db:"duration_minutes"`
	Location        string    `db:"location"`
	Notes           string    `db:"notes"`
	IsActive        bool      `db:"is_active"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

type attendanceRow struct {
	ID         int64     `db:"id"`
	TrainingID int64     `db:"training_id"`
	PlayerID   int64     `db:"player_id"`
	Status     string    `db:"status"`
	Notes      string    `db:"notes"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type statusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

type trainingRepository struct {
	repository
}

var _ training.Repository = (*trainingRepository)(nil)

func NewTrainingRepository(db *sqlx.DB) *trainingRepository {
	return &trainingRepository{repository: newRepository(db)}
}

func (repo trainingRepository) boil(t training.Training) map[string]interface{} {
	return map[string]interface{}{
		"team_id":          t.TeamID,
		"coach_id":         t.CoachID,
		"title":            t.Title,
		"scheduled_at":     t.ScheduledAt.UTC(),
		"duration_minutes": t.DurationMinutes,
		"location":         t.Location,
		"notes":            t.Notes,
		"is_active":        t.IsActive,
		"created_at":       t.CreatedAt.UTC(),
		"updated_at":       t.UpdatedAt.UTC(),
	}
}

func (repo trainingRepository) unboil(row trainingRow) training.Training {
	return training.Training{
		ID:              row.ID,
		TeamID:          row.TeamID,
		CoachID:         row.CoachID,
		Title:           row.Title,
		ScheduledAt:     row.ScheduledAt.UTC(),
		DurationMinutes: row.DurationMinutes,
		Location:        row.Location,
		Notes:           row.Notes,
		IsActive:        row.IsActive,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

func (repo trainingRepository) unboilAttendance(row attendanceRow) training.Attendance {
	return training.Attendance{
		ID:         row.ID,
		TrainingID: row.TrainingID,
		PlayerID:   row.PlayerID,
		Status:     row.Status,
		Notes:      row.Notes,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

func (repo trainingRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return training.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo trainingRepository) Create(ctx context.Context, t training.Training, exec ...core.DBExecutor) (training.Training, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), trainingsTable, repo.boil(t))
	if err != nil {
		return training.Training{}, errors.Wrap(err, "inserting training")
	}
	t.ID = id
	return t, nil
}

func (repo trainingRepository) List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]training.Training, int, error) {
	var rows []trainingRow
	total, err := repo.list(ctx, repo.getExec(exec), &rows, trainingsTable, trainingColumns, params, scopeCondition(scope, trainingOwnership))
	if err != nil {
		return nil, 0, errors.Wrap(err, "listing trainings")
	}
	trainings := make([]training.Training, 0, len(rows))
	for _, row := range rows {
		trainings = append(trainings, repo.unboil(row))
	}
	return trainings, total, nil
}

func (repo trainingRepository) Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (training.Training, error) {
	var row trainingRow
	q := repo.sb.Select(trainingColumns...).
		From(trainingsTable).
		Where(withScope(sq.Eq{"id": id}, scope, trainingOwnership))
	if err := repo.get(ctx, repo.getExec(exec), &row, q); err != nil {
		return training.Training{}, repo.trapNoRowsErr(err, "getting training")
	}
	return repo.unboil(row), nil
}

func (repo trainingRepository) Update(ctx context.Context, t training.Training, exec ...core.DBExecutor) (training.Training, error) {
	values := repo.boil(t)
	delete(values, "created_at")
	if err := repo.update(ctx, repo.getExec(exec), trainingsTable, t.ID, values); err != nil {
		return training.Training{}, repo.trapNoRowsErr(err, "updating training")
	}
	return t, nil
}

// UpsertAttendance records the attendance of a player, replacing the status & notes already recorded.
func (repo trainingRepository) UpsertAttendance(ctx context.Context, a training.Attendance, exec ...core.DBExecutor) (training.Attendance, error) {
	var row attendanceRow
	q := repo.sb.Insert(attendanceTable).
		SetMap(map[string]interface{}{
			"training_id": a.TrainingID,
			"player_id":   a.PlayerID,
			"status":      a.Status,
			"notes":       a.Notes,
			"created_at":  a.CreatedAt.UTC(),
			"updated_at":  a.UpdatedAt.UTC(),
		}).
		Suffix(
			"ON CONFLICT (training_id, player_id) DO UPDATE SET " +
				"status = excluded.status, notes = excluded.notes, updated_at = excluded.updated_at " +
				"RETURNING id, training_id, player_id, status, notes, created_at, updated_at",
		)
	if err := repo.get(ctx, repo.getExec(exec), &row, q); err != nil {
		return training.Attendance{}, errors.Wrap(err, "upserting attendance")
	}
	return repo.unboilAttendance(row), nil
}

func (repo trainingRepository) ListAttendance(ctx context.Context, trainingID int64, scope core.Scope, exec ...core.DBExecutor) ([]training.Attendance, error) {
	var rows []attendanceRow
	q := repo.sb.Select(attendanceColumns...).
		From(attendanceTable).
		Where(withScope(sq.Eq{"training_id": trainingID}, scope, attendanceOwnership)).
		OrderBy("player_id ASC")
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "listing attendance")
	}
	att := make([]training.Attendance, 0, len(rows))
	for _, row := range rows {
		att = append(att, repo.unboilAttendance(row))
	}
	return att, nil
}

func (repo trainingRepository) CountAttendance(ctx context.Context, playerID int64, exec ...core.DBExecutor) (map[string]int, error) {
	var rows []statusCount
	q := repo.sb.Select("a.status AS status", "COUNT(*) AS count").
		From(attendanceTable + " a").
		Join(trainingsTable + " t ON t.id = a.training_id").
		Where(sq.Eq{"a.player_id": playerID, "t.is_active": true}).
		GroupBy("a.status")
	if err := repo.selectRows(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "counting attendance")
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
