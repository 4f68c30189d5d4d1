// Package testutil holds the fixtures shared by the repositories, services & API tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/booking"
	"github.com/trezcool/soka/core/payment"
	"github.com/trezcool/soka/core/player"
	"github.com/trezcool/soka/core/team"
	"github.com/trezcool/soka/core/training"
	"github.com/trezcool/soka/core/user"
	"github.com/trezcool/soka/core/valuation"
	"github.com/trezcool/soka/storage/database"
)

// tables, children first
var tables = []string{
	"attendance", "trainings", "valuations", "payments", "bookings",
	"fields", "players", "teams", "sessions", "users",
}

// NewConfig returns the configuration of the test suites: an in-memory database & no side effects.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:              "Soka",
		Env:                  "TEST",
		Build:                "test",
		TestMode:             true,
		SecretKey:            "test-secret-key",
		FrontendBaseURL:      "http://localhost:4200",
		DefaultFromEmailStr:  "Soka <noreply@soka.test>",
		PasswordResetTimeout: 24 * time.Hour,
		Server: core.ServerConfig{
			Address:              ":0",
			Host:                 "localhost",
			ReadTimeout:          5 * time.Second,
			WriteTimeout:         5 * time.Second,
			ShutdownTimeout:      5 * time.Second,
			JWTExpiration:        time.Hour,
			JWTRefreshExpiration: 24 * time.Hour,
			CORSOrigins:          []string{"*"},
			DisableReqLogs:       true,
		},
		Database: core.DatabaseConfig{
			Engine:         database.EngineSQLite,
			Name:           ":memory:",
			ConnectTimeout: 5 * time.Second,
		},
		Listing: core.ListingConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
			Strict:       true,
		},
	}
}

// OpenDB opens & migrates a fresh in-memory database.
func OpenDB(conf ...*core.Config) (*sqlx.DB, error) {
	cfg := NewConfig()
	if len(conf) > 0 && conf[0] != nil {
		cfg = conf[0]
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db, nil); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// PrepareDB opens a fresh database, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := OpenDB()
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ResetDB empties every table of a shared database.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	for _, table := range tables {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("ResetDB() failed: %v", err)
		}
	}
	if db.DriverName() == database.EngineSQLite {
		if _, err := db.Exec("DELETE FROM sqlite_sequence"); err != nil {
			t.Fatalf("ResetDB() failed: %v", err)
		}
	}
}

func tstamp(createdAt []time.Time) time.Time {
	if len(createdAt) > 0 {
		return createdAt[0].UTC().Truncate(time.Microsecond)
	}
	return core.Now()
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	ts := tstamp(createdAt)
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if pwd == "" {
		pwd = uname
	}
	// the lowest cost keeps the suites fast
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr.PasswordHash = hash

	usr, err = repo.Create(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateTeam(t *testing.T, repo team.Repository, name, category string, coachID *int64, createdAt ...time.Time) team.Team {
	t.Helper()
	ts := tstamp(createdAt)
	tm, err := repo.Create(context.Background(), team.Team{
		Name:      name,
		Category:  category,
		CoachID:   coachID,
		IsActive:  true,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		t.Fatalf("CreateTeam() failed: %v", err)
	}
	return tm
}

func CreatePlayer(t *testing.T, repo player.Repository, first, last, birthDate string, teamID, userID *int64) player.Player {
	t.Helper()
	ts := core.Now()
	p, err := repo.Create(context.Background(), player.Player{
		UserID:    userID,
		FirstName: first,
		LastName:  last,
		BirthDate: birthDate,
		Position:  player.PositionMidfielder,
		TeamID:    teamID,
		IsActive:  true,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		t.Fatalf("CreatePlayer() failed: %v", err)
	}
	return p
}

// CreateValuation records marks (technique, tactics, physical, mental) of a player.
func CreateValuation(t *testing.T, repo valuation.Repository, playerID, coachID int64, evaluatedOn string, marks [4]int) valuation.Valuation {
	t.Helper()
	ts := core.Now()
	v := valuation.Valuation{
		PlayerID:    playerID,
		CoachID:     coachID,
		Technique:   marks[0],
		Tactics:     marks[1],
		Physical:    marks[2],
		Mental:      marks[3],
		EvaluatedOn: evaluatedOn,
		IsActive:    true,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	v.Rate()
	v, err := repo.Create(context.Background(), v)
	if err != nil {
		t.Fatalf("CreateValuation() failed: %v", err)
	}
	return v
}

func CreateTraining(t *testing.T, repo training.Repository, teamID, coachID int64, title string, scheduledAt time.Time) training.Training {
	t.Helper()
	ts := core.Now()
	tr, err := repo.Create(context.Background(), training.Training{
		TeamID:          teamID,
		CoachID:         coachID,
		Title:           title,
		ScheduledAt:     scheduledAt.UTC().Truncate(time.Microsecond),
		DurationMinutes: 90,
		IsActive:        true,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	})
	if err != nil {
		t.Fatalf("CreateTraining() failed: %v", err)
	}
	return tr
}

func CreateField(t *testing.T, repo booking.Repository, name, surface string) booking.Field {
	t.Helper()
	ts := core.Now()
	f, err := repo.CreateField(context.Background(), booking.Field{
		Name:      name,
		Surface:   surface,
		IsActive:  true,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		t.Fatalf("CreateField() failed: %v", err)
	}
	return f
}

func CreateBooking(t *testing.T, repo booking.Repository, fieldID, bookedBy int64, start, end time.Time) booking.Booking {
	t.Helper()
	ts := core.Now()
	b, err := repo.Create(context.Background(), booking.Booking{
		FieldID:   fieldID,
		BookedBy:  bookedBy,
		StartsAt:  start.UTC().Truncate(time.Microsecond),
		EndsAt:    end.UTC().Truncate(time.Microsecond),
		IsActive:  true,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		t.Fatalf("CreateBooking() failed: %v", err)
	}
	return b
}

func CreatePayment(t *testing.T, repo payment.Repository, playerID, recordedBy, amount int64, concept, status, paidOn string) payment.Payment {
	t.Helper()
	ts := core.Now()
	p, err := repo.Create(context.Background(), payment.Payment{
		PlayerID:   playerID,
		Amount:     amount,
		Concept:    concept,
		Method:     payment.MethodCash,
		Status:     status,
		PaidOn:     paidOn,
		RecordedBy: recordedBy,
		IsActive:   true,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	})
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return p
}

func Int64Ptr(i int64) *int64 { return &i }

// OwnScope restricts the stores to the records of usr.
func OwnScope(usr user.User) core.Scope {
	return core.Scope{Level: core.ScopeOwn, UserID: usr.ID, Role: usr.Role}
}
