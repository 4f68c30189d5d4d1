package team_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/team"
	"github.com/trezcool/soka/core/user"
	sqlxrepos "github.com/trezcool/soka/storage/database/sqlx"
	"github.com/trezcool/soka/testutil"
)

func TestService(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	svc := team.NewService(db, sqlxrepos.NewTeamRepository(db), usrRepo)
	ctx := context.Background()

	pep := testutil.CreateUser(t, usrRepo, "Pep", "pep", "pep@soka.test", "", user.RoleCoach, true)
	jose := testutil.CreateUser(t, usrRepo, "Jose", "jose", "jose@soka.test", "", user.RoleCoach, true)
	retired := testutil.CreateUser(t, usrRepo, "Retired", "retired", "retired@soka.test", "", user.RoleCoach, false)
	kid := testutil.CreateUser(t, usrRepo, "Kid", "kid", "kid@soka.test", "", user.RolePlayer, true)

	t.Run("create", func(t *testing.T) {
		for _, coachID := range []int64{retired.ID, kid.ID, 999} {
			_, err := svc.Create(ctx, team.NewTeam{Name: "U10 Hawks", Category: "U10", CoachID: testutil.Int64Ptr(coachID)})
			vErr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok, "coach %d: %v", coachID, err)
			assert.Equal(t, "coach_id", vErr.Fields[0].Field)
		}

		tm, err := svc.Create(ctx, team.NewTeam{Name: "U12 Lions", Category: "U12", CoachID: testutil.Int64Ptr(pep.ID)})
		require.NoError(t, err)
		assert.True(t, tm.IsActive)
		assert.Equal(t, pep.ID, *tm.CoachID)

		_, err = svc.Create(ctx, team.NewTeam{Name: "u12 LIONS", Category: "U12"})
		assert.True(t, core.IsConflict(err))
	})

	tigers := testutil.CreateTeam(t, sqlxrepos.NewTeamRepository(db), "U14 Tigers", "U14", testutil.Int64Ptr(pep.ID))

	t.Run("update", func(t *testing.T) {
		tm, err := svc.Update(ctx, tigers.ID, team.UpdateTeam{Category: "U15"}, testutil.OwnScope(pep))
		require.NoError(t, err)
		assert.Equal(t, "U15", tm.Category)

		// coaches cannot hand their teams over
		_, err = svc.Update(ctx, tigers.ID, team.UpdateTeam{CoachID: testutil.Int64Ptr(jose.ID)}, testutil.OwnScope(pep))
		assert.Equal(t, core.ErrForbidden, err)
		_, err = svc.Update(ctx, tigers.ID, team.UpdateTeam{Name: "Nope"}, testutil.OwnScope(jose))
		assert.Equal(t, team.ErrNotFound, err)

		tm, err = svc.Update(ctx, tigers.ID, team.UpdateTeam{CoachID: testutil.Int64Ptr(jose.ID)}, core.Unrestricted)
		require.NoError(t, err)
		assert.Equal(t, jose.ID, *tm.CoachID)

		_, err = svc.Update(ctx, tigers.ID, team.UpdateTeam{Name: "U12 Lions"}, core.Unrestricted)
		assert.True(t, core.IsConflict(err))
	})

	t.Run("set active", func(t *testing.T) {
		tm, err := svc.SetActive(ctx, tigers.ID, false, core.Unrestricted)
		require.NoError(t, err)
		assert.False(t, tm.IsActive)

		_, err = svc.GetActive(ctx, tigers.ID)
		assert.Equal(t, team.ErrNotFound, err)
		// still readable
		_, err = svc.Get(ctx, tigers.ID, core.Unrestricted)
		assert.NoError(t, err)

		tm, err = svc.SetActive(ctx, tigers.ID, true, core.Unrestricted)
		require.NoError(t, err)
		assert.True(t, tm.IsActive)
	})
}
