package payment

import (
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/listing"
)

// Concepts
const (
	ConceptMonthlyFee   = "monthly_fee"
	ConceptRegistration = "registration"
	ConceptEquipment    = "equipment"
	ConceptTournament   = "tournament"
	ConceptOther        = "other"
)

// Methods
const (
	MethodCash     = "cash"
	MethodCard     = "card"
	MethodTransfer = "transfer"
)

// Statuses
const (
	StatusPaid     = "paid"
	StatusPending  = "pending"
	StatusRefunded = "refunded"
)

type Payment struct {
	ID         int64     `json:"id"`
	PlayerID   int64     `json:"player_id"`
	Amount     int64     `json:"amount"` // cents
	Concept    string    `json:"concept"`
	Method     string    `json:"method"`
	Status     string    `json:"status"`
	PaidOn     string    `json:"paid_on"` // YYYY-MM-DD
	Reference  string    `json:"reference"`
	Notes      string    `json:"notes"`
	RecordedBy int64     `json:"recorded_by"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FormatAmount renders cents as a decimal amount, e.g. 12050 -> "120.50".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

type NewPayment struct {
	PlayerID  int64  `json:"player_id" validate:"required,min=1"`
	Amount    int64  `json:"amount" validate:"required,min=1"`
	Concept   string `json:"concept" validate:"required,oneof=monthly_fee registration equipment tournament other"`
	Method    string `json:"method" validate:"required,oneof=cash card transfer"`
	Status    string `json:"status" validate:"omitempty,oneof=paid pending refunded"` // defaults to paid
	PaidOn    string `json:"paid_on" validate:"required,date"`
	Reference string `json:"reference" validate:"max=100"`
	Notes     string `json:"notes" validate:"max=1000"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Concept = core.CleanString(np.Concept, true /* lower */)
	np.Method = core.CleanString(np.Method, true /* lower */)
	np.Status = core.CleanString(np.Status, true /* lower */)
	np.Reference = core.CleanString(np.Reference)
	np.Notes = core.CleanString(np.Notes)
	if np.Status == "" {
		np.Status = StatusPaid
	}
	return validate.Struct(np)
}

// UpdatePayment holds the fields to change; empty ones are left untouched.
type UpdatePayment struct {
	Amount    int64   `json:"amount" validate:"omitempty,min=1"`
	Concept   string  `json:"concept" validate:"omitempty,oneof=monthly_fee registration equipment tournament other"`
	Method    string  `json:"method" validate:"omitempty,oneof=cash card transfer"`
	Status    string  `json:"status" validate:"omitempty,oneof=paid pending refunded"`
	PaidOn    string  `json:"paid_on" validate:"omitempty,date"`
	Reference *string `json:"reference" validate:"omitempty,max=100"`
	Notes     *string `json:"notes" validate:"omitempty,max=1000"`
}

func (up *UpdatePayment) Validate(validate *validator.Validate) error {
	up.Concept = core.CleanString(up.Concept, true /* lower */)
	up.Method = core.CleanString(up.Method, true /* lower */)
	up.Status = core.CleanString(up.Status, true /* lower */)
	return validate.Struct(up)
}

func (up UpdatePayment) Apply(p Payment) Payment {
	if up.Amount != 0 {
		p.Amount = up.Amount
	}
	if up.Concept != "" {
		p.Concept = up.Concept
	}
	if up.Method != "" {
		p.Method = up.Method
	}
	if up.Status != "" {
		p.Status = up.Status
	}
	if up.PaidOn != "" {
		p.PaidOn = up.PaidOn
	}
	if up.Reference != nil {
		p.Reference = core.CleanString(*up.Reference)
	}
	if up.Notes != nil {
		p.Notes = core.CleanString(*up.Notes)
	}
	return p
}

// Receipt gathers what is printed on a payment receipt.
type Receipt struct {
	AcademyName string
	Payment     Payment
	PlayerName  string
	RecordedBy  string
	IssuedAt    time.Time
}

// ReceiptRenderer writes a printable receipt, e.g. a PDF document.
type ReceiptRenderer interface {
	ContentType() string
	Render(w io.Writer, r Receipt) error
}

type (
	// RevenueRow is one line of a revenue breakdown; Key is a month (YYYY-MM) or a concept.
	RevenueRow struct {
		Key      string `json:"-"`
		Paid     int64  `json:"paid"`
		Pending  int64  `json:"pending"`
		Refunded int64  `json:"refunded"`
		Count    int    `json:"count"`
	}

	MonthRevenue struct {
		Month string `json:"month"`
		RevenueRow
	}

	ConceptRevenue struct {
		Concept string `json:"concept"`
		RevenueRow
	}

	RevenueReport struct {
		DateFrom  string           `json:"date_from,omitempty"`
		DateTo    string           `json:"date_to,omitempty"`
		Totals    RevenueRow       `json:"totals"`
		ByMonth   []MonthRevenue   `json:"by_month"`
		ByConcept []ConceptRevenue `json:"by_concept"`
	}

	RevenueFilter struct {
		DateFrom string `json:"date_from" query:"date_from" validate:"omitempty,date"`
		DateTo   string `json:"date_to" query:"date_to" validate:"omitempty,date"`
	}
)

func (rf *RevenueFilter) Validate(validate *validator.Validate) error {
	rf.DateFrom = core.CleanString(rf.DateFrom)
	rf.DateTo = core.CleanString(rf.DateTo)
	return validate.Struct(rf)
}

// Add accounts for n payments of the given status, totaling amount.
func (r *RevenueRow) Add(status string, amount int64, n int) {
	switch status {
	case StatusPaid:
		r.Paid += amount
	case StatusPending:
		r.Pending += amount
	case StatusRefunded:
		r.Refunded += amount
	}
	r.Count += n
}

var ListSchema = listing.Schema{
	Resource: "payments",
	Filters: []listing.Filter{
		{Param: "search", Kind: listing.Search, Columns: []string{"reference"}},
		{Param: "player_id", Kind: listing.Exact, Type: listing.Int, Columns: []string{"player_id"}},
		{Param: "concept", Kind: listing.OneOf, Columns: []string{"concept"}},
		{Param: "method", Kind: listing.OneOf, Columns: []string{"method"}},
		{Param: "payment_status", Kind: listing.OneOf, Columns: []string{"status"}},
		{Param: "date_from", Kind: listing.Min, Type: listing.Date, Columns: []string{"paid_on"}},
		{Param: "date_to", Kind: listing.Max, Type: listing.Date, Columns: []string{"paid_on"}},
		{Param: "amount_min", Kind: listing.Min, Type: listing.Int, Columns: []string{"amount"}},
		{Param: "amount_max", Kind: listing.Max, Type: listing.Int, Columns: []string{"amount"}},
	},
	Sorts: map[string]string{
		"id":         "id",
		"amount":     "amount",
		"paid_on":    "paid_on",
		"created_at": "created_at",
	},
	DefaultSort: listing.Sort{Column: "created_at", Desc: true},
}
