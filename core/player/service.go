package player

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/team"
	"github.com/trezcool/soka/core/user"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("player not found")
	ErrAccountLinked = errors.New("this account is already linked to a player")

	errInvalidAccount  = errors.New("invalid account")
	invalidAccountText = "must reference an active player account"
	errInvalidTeam     = errors.New("invalid team")
	invalidTeamText    = "must reference an active team"
	notCoachedTeamText = "must reference a team you coach"
)

type (
	Repository interface {
		Create(ctx context.Context, p Player, exec ...core.DBExecutor) (Player, error)
		List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]Player, int, error)
		Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (Player, error)
		// GetByUser returns the player linked to the user account.
		GetByUser(ctx context.Context, userID int64, exec ...core.DBExecutor) (Player, error)
		Update(ctx context.Context, p Player, exec ...core.DBExecutor) (Player, error)
	}

	Service interface {
		Create(ctx context.Context, np NewPlayer) (Player, error)
		List(ctx context.Context, params listing.Params, scope core.Scope) ([]Player, int, error)
		Get(ctx context.Context, id int64, scope core.Scope) (Player, error)
		Update(ctx context.Context, id int64, up UpdatePlayer, scope core.Scope) (Player, error)
		AssignTeam(ctx context.Context, id int64, at AssignTeam, scope core.Scope) (Player, error)
		SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Player, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		usrRepo user.Repository
		teamSvc team.Service
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, usrRepo user.Repository, teamSvc team.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(usrRepo, "usrRepo"),
		vala.IsNotNil(teamSvc, "teamSvc"),
	).CheckAndPanic()

	return &service{db: db, repo: repo, usrRepo: usrRepo, teamSvc: teamSvc}
}

func (svc *service) checkAccount(ctx context.Context, userID *int64, exec core.DBExecutor) error {
	if userID == nil {
		return nil
	}
	usr, err := svc.usrRepo.Get(ctx, user.GetFilter{ID: *userID, Scope: core.Unrestricted}, exec)
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding account")
	}
	if err != nil || !usr.IsPlayer() || !usr.IsActive {
		return core.NewValidationError(errInvalidAccount, core.FieldError{Field: "user_id", Error: invalidAccountText})
	}

	if _, err = svc.repo.GetByUser(ctx, *userID, exec); err == nil {
		return core.NewConflictError(ErrAccountLinked, core.FieldError{Field: "user_id", Error: ErrAccountLinked.Error()})
	} else if !core.IsNotFound(err) {
		return errors.Wrap(err, "finding player by account")
	}
	return nil
}

// checkTeam ensures teamID is active and, under an own scope, coached by the caller.
func (svc *service) checkTeam(ctx context.Context, teamID *int64, scope core.Scope, exec core.DBExecutor) error {
	if teamID == nil {
		return nil
	}
	t, err := svc.teamSvc.GetActive(ctx, *teamID, exec)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(errInvalidTeam, core.FieldError{Field: "team_id", Error: invalidTeamText})
		}
		return errors.Wrap(err, "finding team")
	}
	if scope.Level == core.ScopeOwn && (t.CoachID == nil || *t.CoachID != scope.UserID) {
		return core.NewValidationError(errInvalidTeam, core.FieldError{Field: "team_id", Error: notCoachedTeamText})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, np NewPlayer) (Player, error) {
	now := core.Now()
	p := Player{
		UserID:        np.UserID,
		FirstName:     np.FirstName,
		LastName:      np.LastName,
		BirthDate:     np.BirthDate,
		Position:      np.Position,
		JerseyNumber:  np.JerseyNumber,
		TeamID:        np.TeamID,
		GuardianName:  np.GuardianName,
		GuardianPhone: np.GuardianPhone,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkAccount(ctx, p.UserID, tx); err != nil {
			return err
		}
		if err := svc.checkTeam(ctx, p.TeamID, core.Unrestricted, tx); err != nil {
			return err
		}
		var err error
		p, err = svc.repo.Create(ctx, p, tx)
		return err
	})
	if err != nil {
		return Player{}, err
	}
	return p, nil
}

func (svc *service) List(ctx context.Context, params listing.Params, scope core.Scope) ([]Player, int, error) {
	return svc.repo.List(ctx, params, scope)
}

func (svc *service) Get(ctx context.Context, id int64, scope core.Scope) (Player, error) {
	return svc.repo.Get(ctx, id, scope)
}

func (svc *service) Update(ctx context.Context, id int64, up UpdatePlayer, scope core.Scope) (Player, error) {
	p, err := svc.repo.Get(ctx, id, scope)
	if err != nil {
		return Player{}, err
	}
	p = up.Apply(p)
	p.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, p)
}

func (svc *service) AssignTeam(ctx context.Context, id int64, at AssignTeam, scope core.Scope) (Player, error) {
	var p Player
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if p, err = svc.repo.Get(ctx, id, scope, tx); err != nil {
			return err
		}
		if err = svc.checkTeam(ctx, at.TeamID, scope, tx); err != nil {
			return err
		}
		p.TeamID = at.TeamID
		p.UpdatedAt = core.Now()
		p, err = svc.repo.Update(ctx, p, tx)
		return err
	})
	if err != nil {
		return Player{}, err
	}
	return p, nil
}

func (svc *service) SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Player, error) {
	p, err := svc.repo.Get(ctx, id, scope)
	if err != nil {
		return Player{}, err
	}
	if p.IsActive == active {
		return p, nil
	}
	p.IsActive = active
	p.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, p)
}
