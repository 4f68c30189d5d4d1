package training

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/player"
	"github.com/trezcool/soka/core/team"
	"github.com/trezcool/soka/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("training not found")

	errInvalidTeam       = errors.New("invalid team")
	invalidTeamText      = "must reference an active team"
	errInvalidAttendance = errors.New("invalid attendance")
	notInTeamText        = "must reference an active player of the training's team"
	duplicateEntryText   = "player listed more than once"
)

type (
	Repository interface {
		Create(ctx context.Context, t Training, exec ...core.DBExecutor) (Training, error)
		List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]Training, int, error)
		Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (Training, error)
		Update(ctx context.Context, t Training, exec ...core.DBExecutor) (Training, error)

		UpsertAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		// ListAttendance returns the roll call of a training, ordered by player.
		ListAttendance(ctx context.Context, trainingID int64, scope core.Scope, exec ...core.DBExecutor) ([]Attendance, error)
		// CountAttendance counts a player's attendance per status, over active trainings.
		CountAttendance(ctx context.Context, playerID int64, exec ...core.DBExecutor) (map[string]int, error)
	}

	Service interface {
		Create(ctx context.Context, caller user.User, nt NewTraining) (Training, error)
		List(ctx context.Context, params listing.Params, scope core.Scope) ([]Training, int, error)
		Get(ctx context.Context, id int64, scope core.Scope) (Training, error)
		Update(ctx context.Context, id int64, ut UpdateTraining, scope core.Scope) (Training, error)
		SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Training, error)

		RecordAttendance(ctx context.Context, trainingID int64, ra RecordAttendance, scope core.Scope) ([]Attendance, error)
		ListAttendance(ctx context.Context, trainingID int64, scope core.Scope) ([]Attendance, error)
		// PlayerAttendance is scoped on the player: it is only returned if the caller may read them.
		PlayerAttendance(ctx context.Context, playerID int64, playerScope core.Scope) (AttendanceSummary, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		teamSvc   team.Service
		playerSvc player.Service
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, teamSvc team.Service, playerSvc player.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(teamSvc, "teamSvc"),
		vala.IsNotNil(playerSvc, "playerSvc"),
	).CheckAndPanic()

	return &service{db: db, repo: repo, teamSvc: teamSvc, playerSvc: playerSvc}
}

func (svc *service) Create(ctx context.Context, caller user.User, nt NewTraining) (Training, error) {
	tm, err := svc.teamSvc.GetActive(ctx, nt.TeamID)
	if err != nil {
		if core.IsNotFound(err) {
			return Training{}, core.NewValidationError(errInvalidTeam, core.FieldError{Field: "team_id", Error: invalidTeamText})
		}
		return Training{}, errors.Wrap(err, "finding team")
	}

	coachID := nt.CoachID
	switch {
	case caller.IsCoach():
		coachID = caller.ID // coaches run their own sessions
	case coachID == 0 && tm.CoachID != nil:
		coachID = *tm.CoachID
	case coachID == 0:
		coachID = caller.ID
	}

	now := core.Now()
	t := Training{
		TeamID:          nt.TeamID,
		CoachID:         coachID,
		Title:           nt.Title,
		ScheduledAt:     nt.ScheduledAt.UTC().Truncate(time.Microsecond),
		DurationMinutes: nt.DurationMinutes,
		Location:        nt.Location,
		Notes:           nt.Notes,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return svc.repo.Create(ctx, t)
}

func (svc *service) List(ctx context.Context, params listing.Params, scope core.Scope) ([]Training, int, error) {
	return svc.repo.List(ctx, params, scope)
}

func (svc *service) Get(ctx context.Context, id int64, scope core.Scope) (Training, error) {
	return svc.repo.Get(ctx, id, scope)
}

func (svc *service) Update(ctx context.Context, id int64, ut UpdateTraining, scope core.Scope) (Training, error) {
	t, err := svc.repo.Get(ctx, id, scope)
	if err != nil {
		return Training{}, err
	}
	t = ut.Apply(t)
	t.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, t)
}

func (svc *service) SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Training, error) {
	t, err := svc.repo.Get(ctx, id, scope)
	if err != nil {
		return Training{}, err
	}
	if t.IsActive == active {
		return t, nil
	}
	t.IsActive = active
	t.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, t)
}

// RecordAttendance saves the whole roll call in one transaction: either every entry is saved or none.
func (svc *service) RecordAttendance(ctx context.Context, trainingID int64, ra RecordAttendance, scope core.Scope) ([]Attendance, error) {
	t, err := svc.repo.Get(ctx, trainingID, scope)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, ErrNotFound
	}

	// the roll call is limited to the active players of the team
	var fldErrs []core.FieldError
	seen := make(map[int64]bool, len(ra.Entries))
	for i, e := range ra.Entries {
		field := fmt.Sprintf("attendance[%d].player_id", i)
		if seen[e.PlayerID] {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: duplicateEntryText})
			continue
		}
		seen[e.PlayerID] = true

		p, err := svc.playerSvc.Get(ctx, e.PlayerID, core.Unrestricted)
		if err != nil && !core.IsNotFound(err) {
			return nil, errors.Wrap(err, "finding player")
		}
		if err != nil || !p.IsActive || p.TeamID == nil || *p.TeamID != t.TeamID {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: notInTeamText})
		}
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(errInvalidAttendance, fldErrs...)
	}

	saved := make([]Attendance, 0, len(ra.Entries))
	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		now := core.Now()
		for _, e := range ra.Entries {
			a, err := svc.repo.UpsertAttendance(ctx, Attendance{
				TrainingID: t.ID,
				PlayerID:   e.PlayerID,
				Status:     e.Status,
				Notes:      e.Notes,
				CreatedAt:  now,
				UpdatedAt:  now,
			}, tx)
			if err != nil {
				return errors.Wrapf(err, "saving attendance of player %d", e.PlayerID)
			}
			saved = append(saved, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// ListAttendance returns the roll call of a visible training. Own scope only shows the caller's records.
func (svc *service) ListAttendance(ctx context.Context, trainingID int64, scope core.Scope) ([]Attendance, error) {
	if _, err := svc.repo.Get(ctx, trainingID, core.Unrestricted); err != nil {
		return nil, err
	}
	return svc.repo.ListAttendance(ctx, trainingID, scope)
}

func (svc *service) PlayerAttendance(ctx context.Context, playerID int64, playerScope core.Scope) (AttendanceSummary, error) {
	if _, err := svc.playerSvc.Get(ctx, playerID, playerScope); err != nil {
		return AttendanceSummary{}, err
	}
	counts, err := svc.repo.CountAttendance(ctx, playerID)
	if err != nil {
		return AttendanceSummary{}, errors.Wrap(err, "counting attendance")
	}
	summary := AttendanceSummary{PlayerID: playerID}
	for _, status := range []string{StatusPresent, StatusAbsent, StatusLate, StatusExcused} {
		summary.Add(status, counts[status])
	}
	return summary, nil
}
