package training

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
)

// Attendance statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

type Training struct {
	ID              int64     `json:"id"`
	TeamID          int64     `json:"team_id"`
	CoachID         int64     `json:"coach_id"`
	Title           string    `json:"title"`
	ScheduledAt     time.Time `json:"scheduled_at"` // UTC
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location"`
	Notes           string    `json:"notes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type NewTraining struct {
	TeamID          int64     `json:"team_id" validate:"required,min=1"`
	CoachID         int64     `json:"coach_id" validate:"omitempty,min=1"` // defaults to the team's coach, then the caller
	Title           string    `json:"title" validate:"required,notblank,max=150"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=1,max=600"`
	Location        string    `json:"location" validate:"max=150"`
	Notes           string    `json:"notes" validate:"max=2000"`
}

func (nt *NewTraining) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Location = core.CleanString(nt.Location)
	nt.Notes = core.CleanString(nt.Notes)
	return validate.Struct(nt)
}

// UpdateTraining holds the fields to change; empty ones are left untouched.
type UpdateTraining struct {
	Title           string     `json:"title" validate:"omitempty,notblank,max=150"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes" validate:"omitempty,min=1,max=600"`
	Location        *string    `json:"location" validate:"omitempty,max=150"`
	Notes           *string    `json:"notes" validate:"omitempty,max=2000"`
}

func (ut *UpdateTraining) Validate(validate *validator.Validate) error {
	ut.Title = core.CleanString(ut.Title)
	return validate.Struct(ut)
}

func (ut UpdateTraining) Apply(t Training) Training {
	if ut.Title != "" {
		t.Title = ut.Title
	}
	if ut.ScheduledAt != nil {
		t.ScheduledAt = ut.ScheduledAt.UTC().Truncate(time.Microsecond)
	}
	if ut.DurationMinutes != 0 {
		t.DurationMinutes = ut.DurationMinutes
	}
	if ut.Location != nil {
		t.Location = core.CleanString(*ut.Location)
	}
	if ut.Notes != nil {
		t.Notes = core.CleanString(*ut.Notes)
	}
	return t
}

type Attendance struct {
	ID         int64     `json:"id"`
	TrainingID int64     `json:"training_id"`
	PlayerID   int64     `json:"player_id"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type AttendanceEntry struct {
	PlayerID int64  `json:"player_id" validate:"required,min=1"`
	Status   string `json:"status" validate:"required,oneof=present absent late excused"`
	Notes    string `json:"notes" validate:"max=500"`
}

// RecordAttendance is the roll call of a training; entries of players already recorded replace the old ones.
type RecordAttendance struct {
	Entries []AttendanceEntry `json:"attendance" validate:"required,min=1,dive"`
}

func (ra *RecordAttendance) Validate(validate *validator.Validate) error {
	for i := range ra.Entries {
		ra.Entries[i].Status = core.CleanString(ra.Entries[i].Status, true /* lower */)
		ra.Entries[i].Notes = core.CleanString(ra.Entries[i].Notes)
	}
	return validate.Struct(ra)
}

// AttendanceSummary counts a player's attendance to active trainings.
// Rate is the share of trainings attended (present or late).
type AttendanceSummary struct {
	PlayerID int64   `json:"player_id"`
	Total    int     `json:"total"`
	Present  int     `json:"present"`
	Absent   int     `json:"absent"`
	Late     int     `json:"late"`
	Excused  int     `json:"excused"`
	Rate     float64 `json:"rate"`
}

func (s *AttendanceSummary) Add(status string, n int) {
	switch status {
	case StatusPresent:
		s.Present += n
	case StatusAbsent:
		s.Absent += n
	case StatusLate:
		s.Late += n
	case StatusExcused:
		s.Excused += n
	default:
		return
	}
	s.Total += n
	s.Rate = 0
	if s.Total > 0 {
		s.Rate = math.Round(float64(s.Present+s.Late)/float64(s.Total)*100) / 100
	}
}

var ListSchema = listing.Schema{
	Resource: "trainings",
	Filters: []listing.Filter{
		{Param: "search", Kind: listing.Search, Columns: []string{"title"}},
		{Param: "team_id", Kind: listing.Exact, Type: listing.Int, Columns: []string{"team_id"}},
		{Param: "coach_id", Kind: listing.Exact, Type: listing.Int, Columns: []string{"coach_id"}},
		{Param: "from", Kind: listing.Min, Type: listing.Time, Columns: []string{"scheduled_at"}},
		{Param: "to", Kind: listing.Max, Type: listing.Time, Columns: []string{"scheduled_at"}},
	},
	Sorts: map[string]string{
		"id":           "id",
		"scheduled_at": "scheduled_at",
		"title":        "title",
		"created_at":   "created_at",
	},
	DefaultSort: listing.Sort{Column: "created_at", Desc: true},
}
