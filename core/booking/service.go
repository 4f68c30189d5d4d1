package booking

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
	"github.com/trezcool/soka/core/team"
)

var (
	// errors
	ErrFieldNotFound = core.NewNotFoundError("field not found")
	ErrNotFound      = core.NewNotFoundError("booking not found")
	ErrNameExists    = errors.New("a field with this name already exists")
	ErrOverlap       = errors.New("the field is already booked for this time slot")

	errInvalidBooking = errors.New("invalid booking")
	invalidFieldText  = "must reference an active field"
	invalidTeamText   = "must reference an active team"
	invalidSlotText   = "must be after starts_at"
)

type (
	Repository interface {
		CheckFieldUniqueness(ctx context.Context, name string, excludeID int64, exec ...core.DBExecutor) error
		CreateField(ctx context.Context, f Field, exec ...core.DBExecutor) (Field, error)
		ListFields(ctx context.Context, params listing.Params, exec ...core.DBExecutor) ([]Field, int, error)
		GetField(ctx context.Context, id int64, exec ...core.DBExecutor) (Field, error)
		UpdateField(ctx context.Context, f Field, exec ...core.DBExecutor) (Field, error)

		Create(ctx context.Context, b Booking, exec ...core.DBExecutor) (Booking, error)
		List(ctx context.Context, params listing.Params, scope core.Scope, exec ...core.DBExecutor) ([]Booking, int, error)
		Get(ctx context.Context, id int64, scope core.Scope, exec ...core.DBExecutor) (Booking, error)
		Update(ctx context.Context, b Booking, exec ...core.DBExecutor) (Booking, error)
		// Overlaps reports whether an active booking of the field (excludeID aside) intersects [start, end).
		Overlaps(ctx context.Context, fieldID int64, start, end time.Time, excludeID int64, exec ...core.DBExecutor) (bool, error)
	}

	Service interface {
		CreateField(ctx context.Context, nf NewField) (Field, error)
		ListFields(ctx context.Context, params listing.Params) ([]Field, int, error)
		GetField(ctx context.Context, id int64) (Field, error)
		UpdateField(ctx context.Context, id int64, uf UpdateField) (Field, error)
		SetFieldActive(ctx context.Context, id int64, active bool) (Field, error)

		Create(ctx context.Context, bookedBy int64, nb NewBooking) (Booking, error)
		List(ctx context.Context, params listing.Params, scope core.Scope) ([]Booking, int, error)
		Get(ctx context.Context, id int64, scope core.Scope) (Booking, error)
		Update(ctx context.Context, id int64, ub UpdateBooking, scope core.Scope) (Booking, error)
		SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Booking, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		teamSvc team.Service
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, teamSvc team.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(teamSvc, "teamSvc"),
	).CheckAndPanic()

	return &service{db: db, repo: repo, teamSvc: teamSvc}
}

// Fields

func (svc *service) checkFieldUniqueness(ctx context.Context, name string, excludeID int64, exec core.DBExecutor) error {
	if err := svc.repo.CheckFieldUniqueness(ctx, name, excludeID, exec); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return core.NewConflictError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return errors.Wrap(err, "checking field uniqueness")
	}
	return nil
}

func (svc *service) CreateField(ctx context.Context, nf NewField) (Field, error) {
	now := core.Now()
	f := Field{Name: nf.Name, Surface: nf.Surface, IsActive: true, CreatedAt: now, UpdatedAt: now}
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkFieldUniqueness(ctx, f.Name, 0, tx); err != nil {
			return err
		}
		var err error
		f, err = svc.repo.CreateField(ctx, f, tx)
		return err
	})
	if err != nil {
		return Field{}, err
	}
	return f, nil
}

func (svc *service) ListFields(ctx context.Context, params listing.Params) ([]Field, int, error) {
	return svc.repo.ListFields(ctx, params)
}

func (svc *service) GetField(ctx context.Context, id int64) (Field, error) {
	return svc.repo.GetField(ctx, id)
}

func (svc *service) UpdateField(ctx context.Context, id int64, uf UpdateField) (Field, error) {
	var f Field
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		old, err := svc.repo.GetField(ctx, id, tx)
		if err != nil {
			return err
		}
		f = uf.Apply(old)
		if f.Name != old.Name {
			if err = svc.checkFieldUniqueness(ctx, f.Name, f.ID, tx); err != nil {
				return err
			}
		}
		f.UpdatedAt = core.Now()
		f, err = svc.repo.UpdateField(ctx, f, tx)
		return err
	})
	if err != nil {
		return Field{}, err
	}
	return f, nil
}

func (svc *service) SetFieldActive(ctx context.Context, id int64, active bool) (Field, error) {
	f, err := svc.repo.GetField(ctx, id)
	if err != nil {
		return Field{}, err
	}
	if f.IsActive == active {
		return f, nil
	}
	f.IsActive = active
	f.UpdatedAt = core.Now()
	return svc.repo.UpdateField(ctx, f)
}

// Bookings

// checkSlot makes sure the active field is free for the booking's slot.
func (svc *service) checkSlot(ctx context.Context, b Booking, exec core.DBExecutor) error {
	if !b.EndsAt.After(b.StartsAt) {
		return core.NewValidationError(errInvalidBooking, core.FieldError{Field: "ends_at", Error: invalidSlotText})
	}
	f, err := svc.repo.GetField(ctx, b.FieldID, exec)
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding field")
	}
	if err != nil || !f.IsActive {
		return core.NewValidationError(errInvalidBooking, core.FieldError{Field: "field_id", Error: invalidFieldText})
	}

	overlaps, err := svc.repo.Overlaps(ctx, b.FieldID, b.StartsAt, b.EndsAt, b.ID, exec)
	if err != nil {
		return errors.Wrap(err, "checking overlapping bookings")
	}
	if overlaps {
		return core.NewConflictError(ErrOverlap, core.FieldError{Field: "starts_at", Error: ErrOverlap.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, bookedBy int64, nb NewBooking) (Booking, error) {
	if nb.TeamID != nil {
		if _, err := svc.teamSvc.GetActive(ctx, *nb.TeamID); err != nil {
			if core.IsNotFound(err) {
				return Booking{}, core.NewValidationError(errInvalidBooking, core.FieldError{Field: "team_id", Error: invalidTeamText})
			}
			return Booking{}, errors.Wrap(err, "finding team")
		}
	}

	now := core.Now()
	b := Booking{
		FieldID:   nb.FieldID,
		TeamID:    nb.TeamID,
		BookedBy:  bookedBy,
		StartsAt:  nb.StartsAt.UTC().Truncate(time.Microsecond),
		EndsAt:    nb.EndsAt.UTC().Truncate(time.Microsecond),
		Purpose:   nb.Purpose,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkSlot(ctx, b, tx); err != nil {
			return err
		}
		var err error
		b, err = svc.repo.Create(ctx, b, tx)
		return err
	})
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}

func (svc *service) List(ctx context.Context, params listing.Params, scope core.Scope) ([]Booking, int, error) {
	return svc.repo.List(ctx, params, scope)
}

func (svc *service) Get(ctx context.Context, id int64, scope core.Scope) (Booking, error) {
	return svc.repo.Get(ctx, id, scope)
}

func (svc *service) Update(ctx context.Context, id int64, ub UpdateBooking, scope core.Scope) (Booking, error) {
	var b Booking
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		old, err := svc.repo.Get(ctx, id, scope, tx)
		if err != nil {
			return err
		}
		b = ub.Apply(old)
		if b.IsActive && (!b.StartsAt.Equal(old.StartsAt) || !b.EndsAt.Equal(old.EndsAt)) {
			if err = svc.checkSlot(ctx, b, tx); err != nil {
				return err
			}
		}
		b.UpdatedAt = core.Now()
		b, err = svc.repo.Update(ctx, b, tx)
		return err
	})
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}

// SetActive cancels or restores a booking. A restored booking must still fit in the field's schedule.
func (svc *service) SetActive(ctx context.Context, id int64, active bool, scope core.Scope) (Booking, error) {
	var b Booking
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if b, err = svc.repo.Get(ctx, id, scope, tx); err != nil {
			return err
		}
		if b.IsActive == active {
			return nil
		}
		if active {
			if err = svc.checkSlot(ctx, b, tx); err != nil {
				return err
			}
		}
		b.IsActive = active
		b.UpdatedAt = core.Now()
		b, err = svc.repo.Update(ctx, b, tx)
		return err
	})
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}
