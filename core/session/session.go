// Package session keeps track of the logins behind the issued tokens, so that they can be revoked.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("session not found")
	ErrExpired  = errors.New("session expired")
	ErrRevoked  = errors.New("session revoked")
)

type Session struct {
	ID        string     `json:"id"` // the token's jti
	UserID    int64      `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at"`
}

// Valid reports whether the session may still authenticate requests at t.
func (s Session) Valid(t time.Time) error {
	if s.RevokedAt != nil {
		return ErrRevoked
	}
	if !t.Before(s.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

type (
	Repository interface {
		Create(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)
		Get(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		// Revoke marks the session revoked; already revoked sessions are left untouched.
		Revoke(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error
		RevokeAll(ctx context.Context, userID int64, at time.Time, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Open(ctx context.Context, userID int64, ttl time.Duration) (Session, error)
		Check(ctx context.Context, id string) (Session, error)
		Close(ctx context.Context, id string) error
		Rotate(ctx context.Context, id string, ttl time.Duration) (Session, error)
		CloseAll(ctx context.Context, userID int64) error
	}

	service struct {
		db   core.DB
		repo Repository
		now  func() time.Time // mockable
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &service{db: db, repo: repo, now: core.Now}
}

func (svc *service) newSession(userID int64, ttl time.Duration) Session {
	now := svc.now()
	return Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (svc *service) Open(ctx context.Context, userID int64, ttl time.Duration) (Session, error) {
	s, err := svc.repo.Create(ctx, svc.newSession(userID, ttl))
	return s, errors.Wrap(err, "creating session")
}

// Check returns the session if it is neither revoked nor expired.
func (svc *service) Check(ctx context.Context, id string) (Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Session{}, ErrNotFound
	}
	s, err := svc.repo.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err = s.Valid(svc.now()); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (svc *service) Close(ctx context.Context, id string) error {
	return errors.Wrap(svc.repo.Revoke(ctx, id, svc.now()), "revoking session")
}

// Rotate revokes the valid session id and opens a new one for the same user.
func (svc *service) Rotate(ctx context.Context, id string, ttl time.Duration) (Session, error) {
	var s Session
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		old, err := svc.repo.Get(ctx, id, tx)
		if err != nil {
			return err
		}
		if err = old.Valid(svc.now()); err != nil {
			return err
		}
		if err = svc.repo.Revoke(ctx, old.ID, svc.now(), tx); err != nil {
			return errors.Wrap(err, "revoking session")
		}
		s, err = svc.repo.Create(ctx, svc.newSession(old.UserID, ttl), tx)
		return errors.Wrap(err, "creating session")
	})
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// CloseAll revokes every open session of the user, e.g. after a deactivation or a password reset.
func (svc *service) CloseAll(ctx context.Context, userID int64) error {
	_, err := svc.repo.RevokeAll(ctx, userID, svc.now())
	return errors.Wrap(err, "revoking user sessions")
}
