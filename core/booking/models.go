package booking

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
)

// Field surfaces
const (
	SurfaceGrass  = "grass"
	SurfaceTurf   = "turf"
	SurfaceIndoor = "indoor"
)

type Field struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Surface   string    `json:"surface"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewField struct {
	Name    string `json:"name" validate:"required,notblank,max=100"`
	Surface string `json:"surface" validate:"required,oneof=grass turf indoor"`
}

func (nf *NewField) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	nf.Surface = core.CleanString(nf.Surface, true /* lower */)
	return validate.Struct(nf)
}

type UpdateField struct {
	Name    string `json:"name" validate:"omitempty,notblank,max=100"`
	Surface string `json:"surface" validate:"omitempty,oneof=grass turf indoor"`
}

func (uf *UpdateField) Validate(validate *validator.Validate) error {
	uf.Name = core.CleanString(uf.Name)
	uf.Surface = core.CleanString(uf.Surface, true /* lower */)
	return validate.Struct(uf)
}

func (uf UpdateField) Apply(f Field) Field {
	if uf.Name != "" {
		f.Name = uf.Name
	}
	if uf.Surface != "" {
		f.Surface = uf.Surface
	}
	return f
}

type Booking struct {
	ID        int64     `json:"id"`
	FieldID   int64     `json:"field_id"`
	TeamID    *int64    `json:"team_id"`
	BookedBy  int64     `json:"booked_by"`
	StartsAt  time.Time `json:"starts_at"` // UTC
	EndsAt    time.Time `json:"ends_at"`   // UTC
	Purpose   string    `json:"purpose"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewBooking struct {
	FieldID  int64     `json:"field_id" validate:"required,min=1"`
	TeamID   *int64    `json:"team_id" validate:"omitempty,min=1"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Purpose  string    `json:"purpose" validate:"max=200"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.Purpose = core.CleanString(nb.Purpose)
	return validate.Struct(nb)
}

// UpdateBooking moves or relabels a booking; nil fields are left untouched.
type UpdateBooking struct {
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
	Purpose  *string    `json:"purpose" validate:"omitempty,max=200"`
}

func (ub UpdateBooking) Validate(validate *validator.Validate) error { return validate.Struct(ub) }

func (ub UpdateBooking) Apply(b Booking) Booking {
	if ub.StartsAt != nil {
		b.StartsAt = ub.StartsAt.UTC().Truncate(time.Microsecond)
	}
	if ub.EndsAt != nil {
		b.EndsAt = ub.EndsAt.UTC().Truncate(time.Microsecond)
	}
	if ub.Purpose != nil {
		b.Purpose = core.CleanString(*ub.Purpose)
	}
	return b
}

var FieldListSchema = listing.Schema{
	Resource: "fields",
	Filters: []listing.Filter{
		{Param: "search", Kind: listing.Search, Columns: []string{"name"}},
		{Param: "surface", Kind: listing.OneOf, Columns: []string{"surface"}},
	},
	Sorts: map[string]string{
		"id":         "id",
		"name":       "name",
		"created_at": "created_at",
	},
	DefaultSort: listing.Sort{Column: "created_at", Desc: true},
}

var ListSchema = listing.Schema{
	Resource: "bookings",
	Filters: []listing.Filter{
		{Param: "field_id", Kind: listing.Exact, Type: listing.Int, Columns: []string{"field_id"}},
		{Param: "team_id", Kind: listing.Exact, Type: listing.Int, Columns: []string{"team_id"}},
		{Param: "booked_by", Kind: listing.Exact, Type: listing.Int, Columns: []string{"booked_by"}},
		{Param: "from", Kind: listing.Min, Type: listing.Time, Columns: []string{"starts_at"}},
		{Param: "to", Kind: listing.Max, Type: listing.Time, Columns: []string{"starts_at"}},
	},
	Sorts: map[string]string{
		"id":         "id",
		"starts_at":  "starts_at",
		"created_at": "created_at",
	},
	DefaultSort: listing.Sort{Column: "created_at", Desc: true},
}
