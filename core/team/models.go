package team

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
)

type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"` // U8, U10, U12... or Senior
	CoachID   *int64    `json:"coach_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewTeam struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Category string `json:"category" validate:"required,notblank,max=20"`
	CoachID  *int64 `json:"coach_id" validate:"omitempty,min=1"`
}

func (nt *NewTeam) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Category = core.CleanString(nt.Category)
	return validate.Struct(nt)
}

// UpdateTeam holds the fields to change; empty ones are left untouched.
type UpdateTeam struct {
	Name     string `json:"name" validate:"omitempty,notblank,max=100"`
	Category string `json:"category" validate:"omitempty,notblank,max=20"`
	CoachID  *int64 `json:"coach_id" validate:"omitempty,min=1"`
}

func (ut *UpdateTeam) Validate(validate *validator.Validate) error {
	ut.Name = core.CleanString(ut.Name)
	ut.Category = core.CleanString(ut.Category)
	return validate.Struct(ut)
}

func (ut UpdateTeam) Apply(t Team) Team {
	if ut.Name != "" {
		t.Name = ut.Name
	}
	if ut.Category != "" {
		t.Category = ut.Category
	}
	if ut.CoachID != nil {
		id := *ut.CoachID
		t.CoachID = &id
	}
	return t
}

var ListSchema = listing.Schema{
	Resource: "teams",
	Filters: []listing.Filter{
		{Param: "search", Kind: listing.Search, Columns: []string{"name"}},
		{Param: "category", Kind: listing.OneOf, Columns: []string{"category"}},
		{Param: "coach_id", Kind: listing.Exact, Type: listing.Int, Columns: []string{"coach_id"}},
	},
	Sorts: map[string]string{
		"id":         "id",
		"name":       "name",
		"category":   "category",
		"created_at": "created_at",
	},
	DefaultSort: listing.Sort{Column: "created_at", Desc: true},
}
