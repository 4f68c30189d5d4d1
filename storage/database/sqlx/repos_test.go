package sqlxrepos

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/booking"
	"github.com/trezcool/soka/core/payment"
	"github.com/trezcool/soka/core/player"
	"github.com/trezcool/soka/core/session"
	"github.com/trezcool/soka/core/training"
	"github.com/trezcool/soka/core/user"
	"github.com/trezcool/soka/core/valuation"
	"github.com/trezcool/soka/testutil"
)

var (
	ctx  = context.Background()
	base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
)

type repos struct {
	db        *sqlx.DB
	users     *userRepository
	sessions  *sessionRepository
	teams     *teamRepository
	players   *playerRepository
	vals      *valuationRepository
	trainings *trainingRepository
	bookings  *bookingRepository
	payments  *paymentRepository
}

func setup(t *testing.T) repos {
	db := testutil.PrepareDB(t)
	return repos{
		db:        db,
		users:     NewUserRepository(db),
		sessions:  NewSessionRepository(db),
		teams:     NewTeamRepository(db),
		players:   NewPlayerRepository(db),
		vals:      NewValuationRepository(db),
		trainings: NewTrainingRepository(db),
		bookings:  NewBookingRepository(db),
		payments:  NewPaymentRepository(db),
	}
}

func ownScope(usr user.User) core.Scope {
	return core.Scope{Level: core.ScopeOwn, UserID: usr.ID, Role: usr.Role}
}

func TestUserRepository_List(t *testing.T) {
	r := setup(t)

	coaches := make([]user.User, 0, 25)
	for i := 1; i <= 25; i++ {
		uname := fmt.Sprintf("coach%02d", i)
		coaches = append(coaches, testutil.CreateUser(
			t, r.users, "Coach", uname, uname+"@soka.test", "", user.RoleCoach, true, base.Add(time.Duration(i)*time.Minute)))
	}
	testutil.CreateUser(t, r.users, "Admin", "admin", "admin@soka.test", "", user.RoleAdmin, true)
	testutil.CreateUser(t, r.users, "Retired", "retired", "retired@soka.test", "", user.RoleCoach, false)

	t.Run("pages", func(t *testing.T) {
		q := url.Values{"role": {"coach"}, "sort": {"created_at"}, "order": {"asc"}, "page": {"2"}, "limit": {"10"}}
		users, total, err := r.users.List(ctx, parse(t, user.ListSchema, q), core.Unrestricted)
		require.NoError(t, err)
		assert.Equal(t, 25, total)
		if assert.Len(t, users, 10) {
			assert.Equal(t, coaches[10].ID, users[0].ID)
			assert.Equal(t, coaches[19].ID, users[9].ID)
		}

		q.Set("page", "3")
		users, total, err = r.users.List(ctx, parse(t, user.ListSchema, q), core.Unrestricted)
		require.NoError(t, err)
		assert.Equal(t, 25, total)
		assert.Len(t, users, 5)
	})

	t.Run("ties are broken by id", func(t *testing.T) {
		q := url.Values{"role": {"coach"}, "sort": {"name"}, "order": {"desc"}, "limit": {"100"}}
		users, _, err := r.users.List(ctx, parse(t, user.ListSchema, q), core.Unrestricted)
		require.NoError(t, err)
		require.Len(t, users, 25)
		for i, usr := range users {
			assert.Equal(t, coaches[i].ID, usr.ID)
		}
	})

	t.Run("status", func(t *testing.T) {
		_, total, err := r.users.List(ctx, parse(t, user.ListSchema, url.Values{}), core.Unrestricted)
		require.NoError(t, err)
		assert.Equal(t, 26, total)

		users, total, err := r.users.List(ctx, parse(t, user.ListSchema, url.Values{"status": {"inactive"}}), core.Unrestricted)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "retired", users[0].Username)

		_, total, err = r.users.List(ctx, parse(t, user.ListSchema, url.Values{"status": {"all"}}), core.Unrestricted)
		require.NoError(t, err)
		assert.Equal(t, 27, total)
	})

	t.Run("no match", func(t *testing.T) {
		users, total, err := r.users.List(ctx, parse(t, user.ListSchema, url.Values{"search": {"nobody"}}), core.Unrestricted)
		require.NoError(t, err)
		assert.Equal(t, 0, total)
		assert.Empty(t, users)
	})

	t.Run("own scope", func(t *testing.T) {
		users, total, err := r.users.List(ctx, parse(t, user.ListSchema, url.Values{}), ownScope(coaches[3]))
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, coaches[3].ID, users[0].ID)
	})
}

func TestUserRepository_search(t *testing.T) {
	r := setup(t)
	testutil.CreateUser(t, r.users, "Full 100% Effort", "effort", "effort@soka.test", "", user.RoleCoach, true)
	testutil.CreateUser(t, r.users, "Full 1000 Effort", "effort2", "effort2@soka.test", "", user.RoleCoach, true)
	testutil.CreateUser(t, r.users, "Jane_Doe", "jane", "jane@soka.test", "", user.RoleCoach, true)
	testutil.CreateUser(t, r.users, "JaneXDoe", "janex", "janex@soka.test", "", user.RoleCoach, true)

	tests := []struct {
		search string
		want   []string
	}{
		{search: "100%", want: []string{"effort"}},
		{search: "jane_", want: []string{"jane"}},
		{search: "EFFORT", want: []string{"effort", "effort2"}},
		{search: "janex@", want: []string{"janex"}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			q := url.Values{"search": {tt.search}, "sort": {"id"}}
			users, total, err := r.users.List(ctx, parse(t, user.ListSchema, q), core.Unrestricted)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)
			got := make([]string, 0, len(users))
			for _, usr := range users {
				got = append(got, usr.Username)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserRepository_CRUD(t *testing.T) {
	r := setup(t)
	usr := testutil.CreateUser(t, r.users, "Kylian", "kmbappe", "km@soka.test", "", user.RolePlayer, true)

	assert.Equal(t, user.ErrUsernameExists, r.users.CheckUniqueness(ctx, "kmbappe", "other@soka.test", 0))
	assert.Equal(t, user.ErrEmailExists, r.users.CheckUniqueness(ctx, "other", "km@soka.test", 0))
	assert.NoError(t, r.users.CheckUniqueness(ctx, "kmbappe", "km@soka.test", usr.ID))

	// a lost uniqueness race still answers with a conflict
	_, err := r.users.Create(ctx, user.User{Name: "Copy", Username: "kmbappe", Email: "copy@soka.test", Role: user.RolePlayer,
		PasswordHash: []byte("x"), CreatedAt: core.Now(), UpdatedAt: core.Now()})
	assert.True(t, core.IsConflict(err), "got %v", err)

	got, err := r.users.Get(ctx, user.GetFilter{UsernameOrEmail: "km@soka.test", Scope: core.Unrestricted})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
	assert.Nil(t, got.LastLogin)
	assert.Equal(t, usr.PasswordHash, got.PasswordHash)

	now := core.Now()
	got.LastLogin = &now
	got.Phone = "+243 800 000 000"
	_, err = r.users.Update(ctx, got)
	require.NoError(t, err)

	got, err = r.users.Get(ctx, user.GetFilter{ID: usr.ID, Scope: ownScope(usr)})
	require.NoError(t, err)
	if assert.NotNil(t, got.LastLogin) {
		assert.True(t, now.Equal(*got.LastLogin))
	}
	assert.Equal(t, "+243 800 000 000", got.Phone)

	other := testutil.CreateUser(t, r.users, "Other", "other", "other@soka.test", "", user.RolePlayer, true)
	_, err = r.users.Get(ctx, user.GetFilter{ID: other.ID, Scope: ownScope(usr)})
	assert.Equal(t, user.ErrNotFound, err)
	_, err = r.users.Get(ctx, user.GetFilter{})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestSessionRepository(t *testing.T) {
	r := setup(t)
	usr := testutil.CreateUser(t, r.users, "Kylian", "kmbappe", "km@soka.test", "", user.RolePlayer, true)

	now := core.Now()
	for _, id := range []string{"s1", "s2"} {
		_, err := r.sessions.Create(ctx, session.Session{ID: id, UserID: usr.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
		require.NoError(t, err)
	}

	s, err := r.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, s.RevokedAt)
	assert.True(t, s.ExpiresAt.Equal(now.Add(time.Hour)))

	require.NoError(t, r.sessions.Revoke(ctx, "s1", now))
	s, err = r.sessions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, s.RevokedAt)

	n, err := r.sessions.RevokeAll(ctx, usr.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = r.sessions.Get(ctx, "nope")
	assert.Equal(t, session.ErrNotFound, err)
}

func TestPlayerRepository_scope(t *testing.T) {
	r := setup(t)
	coach := testutil.CreateUser(t, r.users, "Coach", "coach", "coach@soka.test", "", user.RoleCoach, true)
	other := testutil.CreateUser(t, r.users, "Other", "other", "other@soka.test", "", user.RoleCoach, true)
	account := testutil.CreateUser(t, r.users, "Kid", "kid", "kid@soka.test", "", user.RolePlayer, true)

	lions := testutil.CreateTeam(t, r.teams, "U12 Lions", "U12", &coach.ID)
	eagles := testutil.CreateTeam(t, r.teams, "U12 Eagles", "U12", &other.ID)

	kid := testutil.CreatePlayer(t, r.players, "Kid", "One", "2012-05-01", &lions.ID, &account.ID)
	testutil.CreatePlayer(t, r.players, "Kid", "Two", "2012-06-01", &lions.ID, nil)
	testutil.CreatePlayer(t, r.players, "Kid", "Three", "2012-07-01", &eagles.ID, nil)
	free := testutil.CreatePlayer(t, r.players, "Kid", "Four", "2011-01-01", nil, nil)

	params := parse(t, player.ListSchema, url.Values{})
	_, total, err := r.players.List(ctx, params, core.Unrestricted)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	_, total, err = r.players.List(ctx, params, ownScope(coach))
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	players, total, err := r.players.List(ctx, params, ownScope(account))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, kid.ID, players[0].ID)

	players, _, err = r.players.List(ctx, parse(t, player.ListSchema, url.Values{"unassigned": {"true"}}), core.Unrestricted)
	require.NoError(t, err)
	if assert.Len(t, players, 1) {
		assert.Equal(t, free.ID, players[0].ID)
		assert.Nil(t, players[0].TeamID)
	}

	_, err = r.players.Get(ctx, free.ID, ownScope(coach))
	assert.Equal(t, player.ErrNotFound, err)

	got, err := r.players.GetByUser(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, kid.ID, got.ID)
	assert.Equal(t, "2012-05-01", got.BirthDate)
}

func TestValuationRepository_Rating(t *testing.T) {
	r := setup(t)
	coach := testutil.CreateUser(t, r.users, "Coach", "coach", "coach@soka.test", "", user.RoleCoach, true)
	kid := testutil.CreatePlayer(t, r.players, "Kid", "One", "2012-05-01", nil, nil)

	rating, err := r.vals.Rating(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rating.Count)
	assert.Equal(t, 0.0, rating.Overall)

	testutil.CreateValuation(t, r.vals, kid.ID, coach.ID, "2024-03-01", [4]int{8, 6, 7, 9})
	testutil.CreateValuation(t, r.vals, kid.ID, coach.ID, "2024-04-01", [4]int{6, 6, 5, 7})
	old := testutil.CreateValuation(t, r.vals, kid.ID, coach.ID, "2023-01-01", [4]int{1, 1, 1, 1})
	old.IsActive = false
	_, err = r.vals.Update(ctx, old)
	require.NoError(t, err)

	rating, err = r.vals.Rating(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rating.Count)
	assert.InDelta(t, 7.0, rating.Technique, 0.001)
	assert.InDelta(t, 6.0, rating.Tactics, 0.001)
	assert.InDelta(t, 6.75, rating.Overall, 0.001)

	vals, _, err := r.vals.List(ctx, parse(t, valuation.ListSchema, url.Values{"rating_min": {"7"}}), core.Unrestricted)
	require.NoError(t, err)
	if assert.Len(t, vals, 1) {
		assert.Equal(t, 7.5, vals[0].OverallRating)
	}
}

func TestTrainingRepository_attendance(t *testing.T) {
	r := setup(t)
	coach := testutil.CreateUser(t, r.users, "Coach", "coach", "coach@soka.test", "", user.RoleCoach, true)
	account := testutil.CreateUser(t, r.users, "Kid", "kid", "kid@soka.test", "", user.RolePlayer, true)
	lions := testutil.CreateTeam(t, r.teams, "U12 Lions", "U12", &coach.ID)
	kid := testutil.CreatePlayer(t, r.players, "Kid", "One", "2012-05-01", &lions.ID, &account.ID)
	mate := testutil.CreatePlayer(t, r.players, "Kid", "Two", "2012-06-01", &lions.ID, nil)

	tr1 := testutil.CreateTraining(t, r.trainings, lions.ID, coach.ID, "Passing drills", base)
	tr2 := testutil.CreateTraining(t, r.trainings, lions.ID, coach.ID, "Set pieces", base.Add(48*time.Hour))

	upsert := func(trainingID, playerID int64, status string) training.Attendance {
		now := core.Now()
		a, err := r.trainings.UpsertAttendance(ctx, training.Attendance{
			TrainingID: trainingID, PlayerID: playerID, Status: status, CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		return a
	}

	first := upsert(tr1.ID, kid.ID, training.StatusAbsent)
	upsert(tr1.ID, mate.ID, training.StatusPresent)
	again := upsert(tr1.ID, kid.ID, training.StatusLate)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, training.StatusLate, again.Status)
	upsert(tr2.ID, kid.ID, training.StatusPresent)

	att, err := r.trainings.ListAttendance(ctx, tr1.ID, core.Unrestricted)
	require.NoError(t, err)
	require.Len(t, att, 2)
	assert.Equal(t, kid.ID, att[0].PlayerID)

	att, err = r.trainings.ListAttendance(ctx, tr1.ID, ownScope(account))
	require.NoError(t, err)
	assert.Len(t, att, 1)

	counts, err := r.trainings.CountAttendance(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{training.StatusLate: 1, training.StatusPresent: 1}, counts)

	// cancelled trainings are not counted
	tr2.IsActive = false
	_, err = r.trainings.Update(ctx, tr2)
	require.NoError(t, err)
	counts, err = r.trainings.CountAttendance(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{training.StatusLate: 1}, counts)

	q := url.Values{"from": {base.Add(time.Hour).Format(time.RFC3339)}, "status": {"all"}}
	trainings, _, err := r.trainings.List(ctx, parse(t, training.ListSchema, q), core.Unrestricted)
	require.NoError(t, err)
	if assert.Len(t, trainings, 1) {
		assert.Equal(t, tr2.ID, trainings[0].ID)
		assert.True(t, trainings[0].ScheduledAt.Equal(tr2.ScheduledAt))
	}
}

func TestBookingRepository_Overlaps(t *testing.T) {
	r := setup(t)
	coach := testutil.CreateUser(t, r.users, "Coach", "coach", "coach@soka.test", "", user.RoleCoach, true)
	pitch := testutil.CreateField(t, r.bookings, "Main pitch", booking.SurfaceGrass)
	hall := testutil.CreateField(t, r.bookings, "Hall", booking.SurfaceIndoor)

	b := testutil.CreateBooking(t, r.bookings, pitch.ID, coach.ID, base, base.Add(2*time.Hour))

	tests := []struct {
		name       string
		fieldID    int64
		start, end time.Time
		excludeID  int64
		want       bool
	}{
		{"same slot", pitch.ID, base, base.Add(2 * time.Hour), 0, true},
		{"inside", pitch.ID, base.Add(30 * time.Minute), base.Add(time.Hour), 0, true},
		{"straddles the start", pitch.ID, base.Add(-time.Hour), base.Add(time.Minute), 0, true},
		{"ends when it starts", pitch.ID, base.Add(-time.Hour), base, 0, false},
		{"starts when it ends", pitch.ID, base.Add(2 * time.Hour), base.Add(3 * time.Hour), 0, false},
		{"other field", hall.ID, base, base.Add(2 * time.Hour), 0, false},
		{"itself", pitch.ID, base, base.Add(3 * time.Hour), b.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.bookings.Overlaps(ctx, tt.fieldID, tt.start, tt.end, tt.excludeID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	// cancelled bookings free their slot
	b.IsActive = false
	_, err := r.bookings.Update(ctx, b)
	require.NoError(t, err)
	got, err := r.bookings.Overlaps(ctx, pitch.ID, base, base.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.False(t, got)

	assert.Equal(t, booking.ErrNameExists, r.bookings.CheckFieldUniqueness(ctx, "main PITCH", 0))
	assert.NoError(t, r.bookings.CheckFieldUniqueness(ctx, "main PITCH", pitch.ID))
	_, err = r.bookings.GetField(ctx, 999)
	assert.Equal(t, booking.ErrFieldNotFound, err)
}

func TestPaymentRepository_Revenue(t *testing.T) {
	r := setup(t)
	admin := testutil.CreateUser(t, r.users, "Admin", "admin", "admin@soka.test", "", user.RoleAdmin, true)
	account := testutil.CreateUser(t, r.users, "Kid", "kid", "kid@soka.test", "", user.RolePlayer, true)
	kid := testutil.CreatePlayer(t, r.players, "Kid", "One", "2012-05-01", nil, &account.ID)
	mate := testutil.CreatePlayer(t, r.players, "Kid", "Two", "2012-06-01", nil, nil)

	testutil.CreatePayment(t, r.payments, kid.ID, admin.ID, 5000, payment.ConceptMonthlyFee, payment.StatusPaid, "2024-01-05")
	testutil.CreatePayment(t, r.payments, mate.ID, admin.ID, 5000, payment.ConceptMonthlyFee, payment.StatusPaid, "2024-01-20")
	testutil.CreatePayment(t, r.payments, kid.ID, admin.ID, 2500, payment.ConceptEquipment, payment.StatusPending, "2024-02-01")
	testutil.CreatePayment(t, r.payments, kid.ID, admin.ID, 9900, payment.ConceptTournament, payment.StatusPaid, "2024-03-01")
	voided := testutil.CreatePayment(t, r.payments, kid.ID, admin.ID, 100000, payment.ConceptOther, payment.StatusPaid, "2024-01-10")
	voided.IsActive = false
	_, err := r.payments.Update(ctx, voided)
	require.NoError(t, err)

	entries, err := r.payments.Revenue(ctx, "2024-01-01", "2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, []payment.RevenueEntry{
		{Month: "2024-01", Concept: payment.ConceptMonthlyFee, Status: payment.StatusPaid, Amount: 10000, Count: 2},
		{Month: "2024-02", Concept: payment.ConceptEquipment, Status: payment.StatusPending, Amount: 2500, Count: 1},
	}, entries)

	entries, err = r.payments.Revenue(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	payments, total, err := r.payments.List(ctx, parse(t, payment.ListSchema, url.Values{}), ownScope(account))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	for _, p := range payments {
		assert.Equal(t, kid.ID, p.PlayerID)
	}

	q := url.Values{"amount_min": {"5000"}, "payment_status": {"paid"}, "sort": {"amount"}, "order": {"desc"}}
	payments, total, err = r.payments.List(ctx, parse(t, payment.ListSchema, q), core.Unrestricted)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, int64(9900), payments[0].Amount)
}
