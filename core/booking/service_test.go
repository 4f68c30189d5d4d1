package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/booking"
	"github.com/trezcool/soka/core/team"
	"github.com/trezcool/soka/core/user"
	sqlxrepos "github.com/trezcool/soka/storage/database/sqlx"
	"github.com/trezcool/soka/testutil"
)

func invalidField(t *testing.T, err error) string {
	t.Helper()
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "expected a validation error, got %v", err)
	return vErr.Fields[0].Field
}

func TestService_fields(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	svc := booking.NewService(db, sqlxrepos.NewBookingRepository(db), team.NewService(db, sqlxrepos.NewTeamRepository(db), usrRepo))
	ctx := context.Background()

	f, err := svc.CreateField(ctx, booking.NewField{Name: "Main pitch", Surface: "grass"})
	require.NoError(t, err)
	assert.True(t, f.IsActive)

	_, err = svc.CreateField(ctx, booking.NewField{Name: "MAIN PITCH", Surface: "turf"})
	assert.True(t, core.IsConflict(err))

	other, err := svc.CreateField(ctx, booking.NewField{Name: "Dome", Surface: "indoor"})
	require.NoError(t, err)
	_, err = svc.UpdateField(ctx, other.ID, booking.UpdateField{Name: "main pitch"})
	assert.True(t, core.IsConflict(err))

	other, err = svc.UpdateField(ctx, other.ID, booking.UpdateField{Surface: "turf"})
	require.NoError(t, err)
	assert.Equal(t, "turf", other.Surface)

	other, err = svc.SetFieldActive(ctx, other.ID, false)
	require.NoError(t, err)
	assert.False(t, other.IsActive)

	_, err = svc.GetField(ctx, 999)
	assert.Equal(t, booking.ErrFieldNotFound, err)
}

func TestService_bookings(t *testing.T) {
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	teamRepo := sqlxrepos.NewTeamRepository(db)
	repo := sqlxrepos.NewBookingRepository(db)
	svc := booking.NewService(db, repo, team.NewService(db, teamRepo, usrRepo))
	ctx := context.Background()

	pep := testutil.CreateUser(t, usrRepo, "Pep", "pep", "pep@soka.test", "", user.RoleCoach, true)
	jose := testutil.CreateUser(t, usrRepo, "Jose", "jose", "jose@soka.test", "", user.RoleCoach, true)
	lions := testutil.CreateTeam(t, teamRepo, "U12 Lions", "U12", &pep.ID)
	pitch := testutil.CreateField(t, repo, "Main pitch", "grass")
	closed := testutil.CreateField(t, repo, "Old pitch", "grass")
	_, err := svc.SetFieldActive(ctx, closed.ID, false)
	require.NoError(t, err)

	at := func(h, m int) time.Time { return time.Date(2024, 3, 5, h, m, 0, 0, time.UTC) }

	first, err := svc.Create(ctx, pep.ID, booking.NewBooking{FieldID: pitch.ID, TeamID: &lions.ID, StartsAt: at(10, 0), EndsAt: at(11, 0)})
	require.NoError(t, err)
	assert.Equal(t, pep.ID, first.BookedBy)

	t.Run("rejected slots", func(t *testing.T) {
		_, err := svc.Create(ctx, jose.ID, booking.NewBooking{FieldID: pitch.ID, StartsAt: at(10, 30), EndsAt: at(11, 30)})
		assert.True(t, core.IsConflict(err))

		_, err = svc.Create(ctx, jose.ID, booking.NewBooking{FieldID: pitch.ID, StartsAt: at(12, 0), EndsAt: at(12, 0)})
		assert.Equal(t, "ends_at", invalidField(t, err))

		_, err = svc.Create(ctx, jose.ID, booking.NewBooking{FieldID: closed.ID, StartsAt: at(12, 0), EndsAt: at(13, 0)})
		assert.Equal(t, "field_id", invalidField(t, err))

		_, err = svc.Create(ctx, jose.ID, booking.NewBooking{FieldID: pitch.ID, TeamID: testutil.Int64Ptr(999), StartsAt: at(12, 0), EndsAt: at(13, 0)})
		assert.Equal(t, "team_id", invalidField(t, err))
	})

	// back to back is fine
	second, err := svc.Create(ctx, jose.ID, booking.NewBooking{FieldID: pitch.ID, StartsAt: at(11, 0), EndsAt: at(12, 0)})
	require.NoError(t, err)

	t.Run("move", func(t *testing.T) {
		start, end := at(10, 30), at(11, 30)
		_, err := svc.Update(ctx, second.ID, booking.UpdateBooking{StartsAt: &start, EndsAt: &end}, core.Unrestricted)
		assert.True(t, core.IsConflict(err))

		// coaches only manage their own bookings
		purpose := "friendly"
		_, err = svc.Update(ctx, second.ID, booking.UpdateBooking{Purpose: &purpose}, testutil.OwnScope(pep))
		assert.Equal(t, booking.ErrNotFound, err)

		start, end = at(11, 15), at(12, 15)
		b, err := svc.Update(ctx, second.ID, booking.UpdateBooking{StartsAt: &start, EndsAt: &end, Purpose: &purpose}, testutil.OwnScope(jose))
		require.NoError(t, err)
		assert.True(t, b.StartsAt.Equal(start))
		assert.Equal(t, "friendly", b.Purpose)
	})

	t.Run("cancel & restore", func(t *testing.T) {
		b, err := svc.SetActive(ctx, first.ID, false, testutil.OwnScope(pep))
		require.NoError(t, err)
		assert.False(t, b.IsActive)

		// the freed slot can be taken
		_, err = svc.Create(ctx, jose.ID, booking.NewBooking{FieldID: pitch.ID, StartsAt: at(10, 0), EndsAt: at(11, 0)})
		require.NoError(t, err)

		_, err = svc.SetActive(ctx, first.ID, true, core.Unrestricted)
		assert.True(t, core.IsConflict(err))
	})
}
