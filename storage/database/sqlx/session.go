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
	"github.com/trezcool/soka/core/session"
)

const sessionsTable = "sessions"

type sessionRow struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
	RevokedAt null.Time `db:"revoked_at"`
}

type sessionRepository struct {
	repository
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{repository: newRepository(db)}
}

func (repo sessionRepository) Create(ctx context.Context, s session.Session, exec ...core.DBExecutor) (session.Session, error) {
	query, args, err := repo.sb.Insert(sessionsTable).SetMap(map[string]interface{}{
		"id":         s.ID,
		"user_id":    s.UserID,
		"created_at": s.CreatedAt.UTC(),
		"expires_at": s.ExpiresAt.UTC(),
		"revoked_at": null.TimeFromPtr(s.RevokedAt),
	}).ToSql()
	if err != nil {
		return session.Session{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, query, args...); err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return s, nil
}

func (repo sessionRepository) Get(ctx context.Context, id string, exec ...core.DBExecutor) (session.Session, error) {
	var row sessionRow
	q := repo.sb.Select("id", "user_id", "created_at", "expires_at", "revoked_at").
		From(sessionsTable).
		Where(sq.Eq{"id": id})
	if err := repo.get(ctx, repo.getExec(exec), &row, q); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "getting session")
	}

	s := session.Session{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt.UTC(),
		ExpiresAt: row.ExpiresAt.UTC(),
	}
	if row.RevokedAt.Valid {
		t := row.RevokedAt.Time.UTC()
		s.RevokedAt = &t
	}
	return s, nil
}

func (repo sessionRepository) revoke(ctx context.Context, exec core.DBExecutor, where sq.Sqlizer, at time.Time) (int, error) {
	query, args, err := repo.sb.Update(sessionsTable).
		Set("revoked_at", at.UTC()).
		Where(sq.And{where, sq.Eq{"revoked_at": nil}}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (repo sessionRepository) Revoke(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) error {
	_, err := repo.revoke(ctx, repo.getExec(exec), sq.Eq{"id": id}, at)
	return errors.Wrap(err, "revoking session")
}

func (repo sessionRepository) RevokeAll(ctx context.Context, userID int64, at time.Time, exec ...core.DBExecutor) (int, error) {
	n, err := repo.revoke(ctx, repo.getExec(exec), sq.Eq{"user_id": userID}, at)
	if err != nil {
		return 0, errors.Wrap(err, "revoking user sessions")
	}
	return n, nil
}
