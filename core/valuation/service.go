package valuation

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/player"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("valuation not found")

	errInvalidPlayer  = errors.New("invalid player")
	invalidPlayerText = "must reference an active player"
)

type (
	Repository interface {
		Create(ctx context.Context, v Valuation, exec ...core.DBExecutor) (Valuation, error)
		List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]Valuation, int, error)
		Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (Valuation, error)
		Update(ctx context.Context, v Valuation, exec ...core.DBExecutor) (Valuation, error)
		// Rating averages the active valuations of the player.
		Rating(ctx context.Context, playerID int64, exec ...core.DBExecutor) (PlayerRating, error)
	}

	Service interface {
		// Create records a valuation authored by coachID.
		Create(ctx context.Context, coachID int64, nv NewValuation) (Valuation, error)
		List(ctx context.Context, params listing.Params, scope core.Scope) ([]Valuation, int, error)
		Get(ctx context.Context, id int64, scope core.Scope) (Valuation, error)
		Update(ctx context.Context, id int64, uv UpdateValuation, scope core.Scope) (Valuation, error)
		SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Valuation, error)
		// PlayerRating is scoped on the player: it is only returned if the caller may read them.
		PlayerRating(ctx context.Context, playerID int64, playerScope core.Scope) (PlayerRating, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		playerSvc player.Service
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, playerSvc player.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(playerSvc, "playerSvc"),
	).CheckAndPanic()

	return &service{db: db, repo: repo, playerSvc: playerSvc}
}

func (svc *service) Create(ctx context.Context, coachID int64, nv NewValuation) (Valuation, error) {
	p, err := svc.playerSvc.Get(ctx, nv.PlayerID, core.Unrestricted)
	if err != nil && !core.IsNotFound(err) {
		return Valuation{}, errors.Wrap(err, "finding player")
	}
	if err != nil || !p.IsActive {
		return Valuation{}, core.NewValidationError(errInvalidPlayer, core.FieldError{Field: "player_id", Error: invalidPlayerText})
	}

	now := core.Now()
	v := Valuation{
		PlayerID:    nv.PlayerID,
		CoachID:     coachID,
		Technique:   nv.Technique,
		Tactics:     nv.Tactics,
		Physical:    nv.Physical,
		Mental:      nv.Mental,
		Comments:    nv.Comments,
		EvaluatedOn: nv.EvaluatedOn,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	v.Rate()
	return svc.repo.Create(ctx, v)
}

func (svc *service) List(ctx context.Context, params listing.Params, scope core.Scope) ([]Valuation, int, error) {
	return svc.repo.List(ctx, params, scope)
}

func (svc *service) Get(ctx context.Context, id int64, scope core.Scope) (Valuation, error) {
	return svc.repo.Get(ctx, id, scope)
}

func (svc *service) Update(ctx context.Context, id int64, uv UpdateValuation, scope core.Scope) (Valuation, error) {
	v, err := svc.repo.Get(ctx, id, scope)
	if err != nil {
		return Valuation{}, err
	}
	v = uv.Apply(v)
	v.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, v)
}

func (svc *service) SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Valuation, error) {
	v, err := svc.repo.Get(ctx, id, scope)
	if err != nil {
		return Valuation{}, err
	}
	if v.IsActive == active {
		return v, nil
	}
	v.IsActive = active
	v.UpdatedAt = core.Now()
	return svc.repo.Update(ctx, v)
}

func (svc *service) PlayerRating(ctx context.Context, playerID int64, playerScope core.Scope) (PlayerRating, error) {
	if _, err := svc.playerSvc.Get(ctx, playerID, playerScope); err != nil {
		return PlayerRating{}, err
	}
	r, err := svc.repo.Rating(ctx, playerID)
	if err != nil {
		return PlayerRating{}, errors.Wrap(err, "rating player")
	}
	r.PlayerID = playerID
	r.round()
	return r, nil
}
