package valuation

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
)

type Valuation struct {
	ID            int64     `json:"id"`
	PlayerID      int64     `json:"player_id"`
	CoachID       int64     `json:"coach_id"`
	Technique     int       `json:"technique"`
	Tactics       int       `json:"tactics"`
	Physical      int       `json:"physical"`
	Mental        int       `json:"mental"`
	OverallRating float64   `json:"overall_rating"`
	Comments      string    `json:"comments"`
	EvaluatedOn   string    `json:"evaluated_on"` // YYYY-MM-DD
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Rate sets the overall rating: the mean of the four marks, with 2 decimals.
func (v *Valuation) Rate() {
	v.OverallRating = round2(float64(v.Technique+v.Tactics+v.Physical+v.Mental) / 4)
}

// PlayerRating sums up the active valuations of a player.
type PlayerRating struct {
	PlayerID  int64   `json:"player_id"`
	Count     int     `json:"count"`
	Technique float64 `json:"technique"`
	Tactics   float64 `json:"tactics"`
	Physical  float64 `json:"physical"`
	Mental    float64 `json:"mental"`
	Overall   float64 `json:"overall_rating"`
}

func (r *PlayerRating) round() {
	r.Technique = round2(r.Technique)
	r.Tactics = round2(r.Tactics)
	r.Physical = round2(r.Physical)
	r.Mental = round2(r.Mental)
	r.Overall = round2(r.Overall)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

type NewValuation struct {
	PlayerID    int64  `json:"player_id" validate:"required,min=1"`
	Technique   int    `json:"technique" validate:"required,min=1,max=10"`
	Tactics     int    `json:"tactics" validate:"required,min=1,max=10"`
	Physical    int    `json:"physical" validate:"required,min=1,max=10"`
	Mental      int    `json:"mental" validate:"required,min=1,max=10"`
	Comments    string `json:"comments" validate:"max=2000"`
	EvaluatedOn string `json:"evaluated_on" validate:"required,date"`
}

func (nv *NewValuation) Validate(validate *validator.Validate) error {
	nv.Comments = core.CleanString(nv.Comments)
	nv.EvaluatedOn = core.CleanString(nv.EvaluatedOn)
	return validate.Struct(nv)
}

// UpdateValuation holds the fields to change; zero marks are left untouched.
type UpdateValuation struct {
	Technique   int     `json:"technique" validate:"omitempty,min=1,max=10"`
	Tactics     int     `json:"tactics" validate:"omitempty,min=1,max=10"`
	Physical    int     `json:"physical" validate:"omitempty,min=1,max=10"`
	Mental      int     `json:"mental" validate:"omitempty,min=1,max=10"`
	Comments    *string `json:"comments" validate:"omitempty,max=2000"`
	EvaluatedOn string  `json:"evaluated_on" validate:"omitempty,date"`
}

func (uv *UpdateValuation) Validate(validate *validator.Validate) error {
	if uv.Comments != nil {
		c := core.CleanString(*uv.Comments)
		uv.Comments = &c
	}
	return validate.Struct(uv)
}

func (uv UpdateValuation) Apply(v Valuation) Valuation {
	if uv.Technique != 0 {
		v.Technique = uv.Technique
	}
	if uv.Tactics != 0 {
		v.Tactics = uv.Tactics
	}
	if uv.Physical != 0 {
		v.Physical = uv.Physical
	}
	if uv.Mental != 0 {
		v.Mental = uv.Mental
	}
	if uv.Comments != nil {
		v.Comments = *uv.Comments
	}
	if uv.EvaluatedOn != "" {
		v.EvaluatedOn = uv.EvaluatedOn
	}
	v.Rate()
	return v
}

var ListSchema = listing.Schema{
	Resource: "valuations",
	Filters: []listing.Filter{
		{Param: "player_id", Kind: listing.Exact, Type: listing.Int, Columns: []string{"player_id"}},
		{Param: "coach_id", Kind: listing.Exact, Type: listing.Int, Columns: []string{"coach_id"}},
		{Param: "rating_min", Kind: listing.Min, Type: listing.Float, Columns: []string{"overall_rating"}},
		{Param: "rating_max", Kind: listing.Max, Type: listing.Float, Columns: []string{"overall_rating"}},
		{Param: "date_from", Kind: listing.Min, Type: listing.Date, Columns: []string{"evaluated_on"}},
		{Param: "date_to", Kind: listing.Max, Type: listing.Date, Columns: []string{"evaluated_on"}},
	},
	Sorts: map[string]string{
		"id":             "id",
		"overall_rating": "overall_rating",
		"evaluated_on":   "evaluated_on",
		"created_at":     "created_at",
	},
	DefaultSort: listing.Sort{Column: "created_at", Desc: true},
}
