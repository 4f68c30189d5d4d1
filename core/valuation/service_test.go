package valuation_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/player"
	"github.com/trezcool/soka/core/team"
	"github.com/trezcool/soka/core/user"
	"github.com/trezcool/soka/core/valuation"
	sqlxrepos "github.com/trezcool/soka/storage/database/sqlx"
	"github.com/trezcool/soka/testutil"
)

func TestService(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	teamSvc := team.NewService(db, sqlxrepos.NewTeamRepository(db), usrRepo)
	playerRepo := sqlxrepos.NewPlayerRepository(db)
	playerSvc := player.NewService(db, playerRepo, usrRepo, teamSvc)
	svc := valuation.NewService(db, sqlxrepos.NewValuationRepository(db), playerSvc)
	ctx := context.Background()

	pep := testutil.CreateUser(t, usrRepo, "Pep", "pep", "pep@soka.test", "", user.RoleCoach, true)
	jose := testutil.CreateUser(t, usrRepo, "Jose", "jose", "jose@soka.test", "", user.RoleCoach, true)
	kid := testutil.CreateUser(t, usrRepo, "Kid", "kid", "kid@soka.test", "", user.RolePlayer, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@soka.test", "", user.RolePlayer, true)
	leo := testutil.CreatePlayer(t, playerRepo, "Leo", "Messi", "2012-06-24", nil, &kid.ID)
	gone := testutil.CreatePlayer(t, playerRepo, "Gone", "Away", "2011-01-01", nil, nil)
	_, err := playerSvc.SetActive(ctx, gone.ID, false, core.Unrestricted)
	require.NoError(t, err)

	_, err = svc.Create(ctx, pep.ID, valuation.NewValuation{PlayerID: gone.ID, Technique: 5, Tactics: 5, Physical: 5, Mental: 5, EvaluatedOn: "2024-03-01"})
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "player_id", vErr.Fields[0].Field)

	v1, err := svc.Create(ctx, pep.ID, valuation.NewValuation{PlayerID: leo.ID, Technique: 7, Tactics: 8, Physical: 6, Mental: 9, EvaluatedOn: "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, 7.5, v1.OverallRating)
	assert.Equal(t, pep.ID, v1.CoachID)

	v2, err := svc.Create(ctx, jose.ID, valuation.NewValuation{PlayerID: leo.ID, Technique: 6, Tactics: 6, Physical: 6, Mental: 7, EvaluatedOn: "2024-04-01"})
	require.NoError(t, err)
	assert.Equal(t, 6.25, v2.OverallRating)

	t.Run("scope", func(t *testing.T) {
		_, err := svc.Get(ctx, v2.ID, testutil.OwnScope(pep))
		assert.Equal(t, valuation.ErrNotFound, err)
		_, err = svc.Update(ctx, v2.ID, valuation.UpdateValuation{Technique: 1}, testutil.OwnScope(pep))
		assert.Equal(t, valuation.ErrNotFound, err)

		// players read their own valuations
		vals, total, err := svc.List(ctx, parseParams(t), testutil.OwnScope(kid))
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, vals, 2)
		_, total, err = svc.List(ctx, parseParams(t), testutil.OwnScope(other))
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("rating", func(t *testing.T) {
		r, err := svc.PlayerRating(ctx, leo.ID, core.Unrestricted)
		require.NoError(t, err)
		assert.Equal(t, valuation.PlayerRating{
			PlayerID:  leo.ID,
			Count:     2,
			Technique: 6.5,
			Tactics:   7,
			Physical:  6,
			Mental:    8,
			Overall:   6.88,
		}, r)

		_, err = svc.PlayerRating(ctx, leo.ID, testutil.OwnScope(other))
		assert.Equal(t, player.ErrNotFound, err)
		_, err = svc.PlayerRating(ctx, leo.ID, testutil.OwnScope(kid))
		assert.NoError(t, err)
	})

	t.Run("update & deactivate", func(t *testing.T) {
		v, err := svc.Update(ctx, v1.ID, valuation.UpdateValuation{Technique: 9}, testutil.OwnScope(pep))
		require.NoError(t, err)
		assert.Equal(t, 8.0, v.OverallRating)

		_, err = svc.SetActive(ctx, v2.ID, false, core.Unrestricted)
		require.NoError(t, err)
		r, err := svc.PlayerRating(ctx, leo.ID, core.Unrestricted)
		require.NoError(t, err)
		assert.Equal(t, 1, r.Count)
		assert.Equal(t, 8.0, r.Overall)
	})
}
