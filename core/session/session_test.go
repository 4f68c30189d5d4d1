package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soka/core/session"
	"github.com/trezcool/soka/core/user"
	sqlxrepos "github.com/trezcool/soka/storage/database/sqlx"
	"github.com/trezcool/soka/testutil"
)

func TestService(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	svc := session.NewService(db, sqlxrepos.NewSessionRepository(db))
	ctx := context.Background()

	pep := testutil.CreateUser(t, usrRepo, "Pep", "pep", "pep@soka.test", "", user.RoleCoach, true)

	s, err := svc.Open(ctx, pep.ID, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, pep.ID, s.UserID)

	got, err := svc.Check(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	t.Run("unknown ids", func(t *testing.T) {
		_, err := svc.Check(ctx, "not-a-uuid")
		assert.Equal(t, session.ErrNotFound, err)
		_, err = svc.Check(ctx, uuid.New().String())
		assert.Equal(t, session.ErrNotFound, err)
	})

	t.Run("expired", func(t *testing.T) {
		old, err := svc.Open(ctx, pep.ID, -time.Minute)
		require.NoError(t, err)
		_, err = svc.Check(ctx, old.ID)
		assert.Equal(t, session.ErrExpired, err)
		_, err = svc.Rotate(ctx, old.ID, time.Hour)
		assert.Equal(t, session.ErrExpired, err)
	})

	t.Run("rotate", func(t *testing.T) {
		rotated, err := svc.Rotate(ctx, s.ID, time.Hour)
		require.NoError(t, err)
		assert.NotEqual(t, s.ID, rotated.ID)
		assert.Equal(t, pep.ID, rotated.UserID)

		_, err = svc.Check(ctx, s.ID)
		assert.Equal(t, session.ErrRevoked, err)
		_, err = svc.Rotate(ctx, s.ID, time.Hour)
		assert.Equal(t, session.ErrRevoked, err)

		require.NoError(t, svc.Close(ctx, rotated.ID))
		_, err = svc.Check(ctx, rotated.ID)
		assert.Equal(t, session.ErrRevoked, err)
		// closing twice is harmless
		assert.NoError(t, svc.Close(ctx, rotated.ID))
	})

	t.Run("close all", func(t *testing.T) {
		a, err := svc.Open(ctx, pep.ID, time.Hour)
		require.NoError(t, err)
		b, err := svc.Open(ctx, pep.ID, time.Hour)
		require.NoError(t, err)

		require.NoError(t, svc.CloseAll(ctx, pep.ID))
		for _, id := range []string{a.ID, b.ID} {
			_, err = svc.Check(ctx, id)
			assert.Equal(t, session.ErrRevoked, err)
		}
	})
}
