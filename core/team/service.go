package team

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/user"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("team not found")
	ErrNameExists = errors.New("a team with this name already exists")

	errInvalidCoach  = errors.New("invalid coach")
	invalidCoachText = "must reference an active coach"
)

type (
	Repository interface {
		CheckUniqueness(ctx context.Context, name string, excludeID int64, exec ...core.DBExecutor) error
		Create(ctx context.Context, t Team, exec ...core.DBExecutor) (Team, error)
		List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]Team, int, error)
		Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (Team, error)
		Update(ctx context.Context, t Team, exec ...core.DBExecutor) (Team, error)
	}

	Service interface {
		Create(ctx context.Context, nt NewTeam) (Team, error)
		List(ctx context.Context, params listing.Params, scope core.Scope) ([]Team, int, error)
		Get(ctx context.Context, id int64, scope core.Scope) (Team, error)
		// GetActive returns the team if it exists and is active, whoever the caller is.
		GetActive(ctx context.Context, id int64, exec ...core.DBExecutor) (Team, error)
		Update(ctx context.Context, id int64, ut UpdateTeam, scope core.Scope) (Team, error)
		SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Team, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		usrRepo user.Repository
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, usrRepo user.Repository) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(usrRepo, "usrRepo"),
	).CheckAndPanic()

	return &service{db: db, repo: repo, usrRepo: usrRepo}
}

func (svc *service) checkUniqueness(ctx context.Context, name string, excludeID int64, exec core.DBExecutor) error {
	if err := svc.repo.CheckUniqueness(ctx, name, excludeID, exec); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return core.NewConflictError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return errors.Wrap(err, "checking team uniqueness")
	}
	return nil
}

func (svc *service) checkCoach(ctx context.Context, coachID *int64, exec core.DBExecutor) error {
	if coachID == nil {
		return nil
	}
	coach, err := svc.usrRepo.Get(ctx, user.GetFilter{ID: *coachID, Scope: core.Unrestricted}, exec)
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding coach")
	}
	if err != nil || !coach.IsCoach() || !coach.IsActive {
		return core.NewValidationError(errInvalidCoach, core.FieldError{Field: "coach_id", Error: invalidCoachText})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nt NewTeam) (Team, error) {
	now := core.Now()
	t := Team{
		Name:      nt.Name,
		Category:  nt.Category,
		CoachID:   nt.CoachID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkCoach(ctx, t.CoachID, tx); err != nil {
			return err
		}
		if err := svc.checkUniqueness(ctx, t.Name, 0, tx); err != nil {
			return err
		}
		var err error
		t, err = svc.repo.Create(ctx, t, tx)
		return err
	})
	if err != nil {
		return Team{}, err
	}
	return t, nil
}

func (svc *service) List(ctx context.Context, params listing.Params, scope core.Scope) ([]Team, int, error) {
	return svc.repo.List(ctx, params, scope)
}

func (svc *service) Get(ctx context.Context, id int64, scope core.Scope) (Team, error) {
	return svc.repo.Get(ctx, id, scope)
}

func (svc *service) GetActive(ctx context.Context, id int64, exec ...core.DBExecutor) (Team, error) {
	t, err := svc.repo.Get(ctx, id, core.Unrestricted, exec...)
	if err != nil {
		return Team{}, err
	}
	if !t.IsActive {
		return Team{}, ErrNotFound
	}
	return t, nil
}

func (svc *service) Update(ctx context.Context, id int64, ut UpdateTeam, scope core.Scope) (Team, error) {
	var t Team
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		old, err := svc.repo.Get(ctx, id, scope, tx)
		if err != nil {
			return err
		}
		t = ut.Apply(old)

		if coachChanged(old.CoachID, t.CoachID) {
			// coaches manage their teams but cannot hand them over
			if scope.Restricted() {
				return core.ErrForbidden
			}
			if err = svc.checkCoach(ctx, t.CoachID, tx); err != nil {
				return err
			}
		}
		if t.Name != old.Name {
			if err = svc.checkUniqueness(ctx, t.Name, t.ID, tx); err != nil {
				return err
			}
		}
		t.UpdatedAt = core.Now()
		t, err = svc.repo.Update(ctx, t, tx)
		return err
	})
	if err != nil {
		return Team{}, err
	}
	return t, nil
}

func (svc *service) SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Team, error) {
	t, err := svc.repo.Get(ctx, id, scope)
	if err != nil {
		return Team{}, err
	}
	if t.IsActive == active {
		return t, nil
	}
	t.IsActive = active
	t.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, t)
}

func coachChanged(a, b *int64) bool {
	if a == nil || b == nil {
		return a != b
	}
	return *a != *b
}
