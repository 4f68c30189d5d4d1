package player

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
)

// Positions
const (
	PositionGoalkeeper = "goalkeeper"
	PositionDefender   = "defender"
	PositionMidfielder = "midfielder"
	PositionForward    = "forward"
)

type Player struct {
	ID            int64     `json:"id"`
	UserID        *int64    `json:"user_id"` // linked account, if the player logs in
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	BirthDate     string    `json:"birth_date"` // YYYY-MM-DD
	Position      string    `json:"position"`
	JerseyNumber  *int      `json:"jersey_number"`
	TeamID        *int64    `json:"team_id"`
	GuardianName  string    `json:"guardian_name"`
	GuardianPhone string    `json:"guardian_phone"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p Player) FullName() string { return p.FirstName + " " + p.LastName }

type NewPlayer struct {
	UserID        *int64 `json:"user_id" validate:"omitempty,min=1"`
	FirstName     string `json:"first_name" validate:"required,notblank,max=50"`
	LastName      string `json:"last_name" validate:"required,notblank,max=50"`
	BirthDate     string `json:"birth_date" validate:"required,date"`
	Position      string `json:"position" validate:"required,oneof=goalkeeper defender midfielder forward"`
	JerseyNumber  *int   `json:"jersey_number" validate:"omitempty,min=1,max=99"`
	TeamID        *int64 `json:"team_id" validate:"omitempty,min=1"`
	GuardianName  string `json:"guardian_name" validate:"max=100"`
	GuardianPhone string `json:"guardian_phone" validate:"max=30"`
}

func (np *NewPlayer) Validate(validate *validator.Validate) error {
	np.FirstName = core.CleanString(np.FirstName)
	np.LastName = core.CleanString(np.LastName)
	np.Position = core.CleanString(np.Position, true /* lower */)
	np.GuardianName = core.CleanString(np.GuardianName)
	np.GuardianPhone = core.CleanString(np.GuardianPhone)
	return validate.Struct(np)
}

// UpdatePlayer holds the fields to change; empty ones are left untouched.
// The team is changed through AssignTeam.
type UpdatePlayer struct {
	FirstName     string `json:"first_name" validate:"omitempty,notblank,max=50"`
	LastName      string `json:"last_name" validate:"omitempty,notblank,max=50"`
	BirthDate     string `json:"birth_date" validate:"omitempty,date"`
	Position      string `json:"position" validate:"omitempty,oneof=goalkeeper defender midfielder forward"`
	JerseyNumber  *int   `json:"jersey_number" validate:"omitempty,min=1,max=99"`
	GuardianName  string `json:"guardian_name" validate:"max=100"`
	GuardianPhone string `json:"guardian_phone" validate:"max=30"`
}

func (up *UpdatePlayer) Validate(validate *validator.Validate) error {
	up.FirstName = core.CleanString(up.FirstName)
	up.LastName = core.CleanString(up.LastName)
	up.Position = core.CleanString(up.Position, true /* lower */)
	up.GuardianName = core.CleanString(up.GuardianName)
	up.GuardianPhone = core.CleanString(up.GuardianPhone)
	return validate.Struct(up)
}

func (up UpdatePlayer) Apply(p Player) Player {
	if up.FirstName != "" {
		p.FirstName = up.FirstName
	}
	if up.LastName != "" {
		p.LastName = up.LastName
	}
	if up.BirthDate != "" {
		p.BirthDate = up.BirthDate
	}
	if up.Position != "" {
		p.Position = up.Position
	}
	if up.JerseyNumber != nil {
		n := *up.JerseyNumber
		p.JerseyNumber = &n
	}
	if up.GuardianName != "" {
		p.GuardianName = up.GuardianName
	}
	if up.GuardianPhone != "" {
		p.GuardianPhone = up.GuardianPhone
	}
	return p
}

// AssignTeam moves a player to a team; a null team_id takes them out of their team.
type AssignTeam struct {
	TeamID *int64 `json:"team_id" validate:"omitempty,min=1"`
}

func (at AssignTeam) Validate(validate *validator.Validate) error { return validate.Struct(at) }

var ListSchema = listing.Schema{
	Resource: "players",
	Filters: []listing.Filter{
		{Param: "search", Kind: listing.Search, Columns: []string{"first_name", "last_name"}},
		{Param: "team_id", Kind: listing.Exact, Type: listing.Int, Columns: []string{"team_id"}},
		{Param: "position", Kind: listing.OneOf, Columns: []string{"position"}},
		{Param: "born_from", Kind: listing.Min, Type: listing.Date, Columns: []string{"birth_date"}},
		{Param: "born_to", Kind: listing.Max, Type: listing.Date, Columns: []string{"birth_date"}},
		{Param: "unassigned", Kind: listing.IsNull, Type: listing.Bool, Columns: []string{"team_id"}},
	},
	Sorts: map[string]string{
		"id":            "id",
		"first_name":    "first_name",
		"last_name":     "last_name",
		"birth_date":    "birth_date",
		"jersey_number": "jersey_number",
		"created_at":    "created_at",
	},
	DefaultSort: listing.Sort{Column: "created_at", Desc: true},
}
