// Package listing parses the page / sort / filter query parameters shared by every list endpoint
// and shapes the paginated response envelope.
package listing

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/soka/core"
)

// Reserved query parameters.
const (
	ParamPage   = "page"
	ParamLimit  = "limit"
	ParamSort   = "sort"
	ParamOrder  = "order"
	ParamStatus = "status"
)

type Status string

const (
	StatusActive   Status = "active" // default
	StatusInactive Status = "inactive"
	StatusAll      Status = "all"
)

// Kind is how a filter value is matched against its column(s).
type Kind int

const (
	Exact  Kind = iota // col = v
	OneOf              // col IN (v1, v2...), the param may be repeated
	Search             // case-insensitive substring match on any of the columns
	Min                // col >= v
	Max                // col <= v
	IsNull             // true: col IS NULL, false: col IS NOT NULL
)

// ValueType is how a raw filter value is parsed.
type ValueType int

const (
	String ValueType = iota
	Int
	Float
	Bool
	Date // YYYY-MM-DD, kept as a string
	Time // RFC3339, converted to UTC
)

type Filter struct {
	Param   string
	Kind    Kind
	Type    ValueType
	Columns []string
}

func (f Filter) Column() string { return f.Columns[0] }

// Schema describes what a resource's list endpoint accepts.
// Sorts maps the public sort names to their (trusted) column names.
type Schema struct {
	Resource    string
	Filters     []Filter
	Sorts       map[string]string
	DefaultSort Sort
}

type Sort struct {
	Column string
	Desc   bool
}

func (s Sort) Direction() string {
	if s.Desc {
		return "DESC"
	}
	return "ASC"
}

// Criterion is a parsed filter: every criterion of a query is ANDed.
type Criterion struct {
	Filter Filter
	Values []interface{}
}

func (c Criterion) Value() interface{} { return c.Values[0] }

type Params struct {
	Criteria []Criterion
	Sort     Sort
	Status   Status
	Page     int
	Limit    int
}

func (p Params) Offset() int { return (p.Page - 1) * p.Limit }

type Options struct {
	DefaultLimit int
	MaxLimit     int
	Strict       bool // reject unknown params instead of ignoring them
}

func NewOptions(conf core.ListingConfig) Options {
	return Options{DefaultLimit: conf.DefaultLimit, MaxLimit: conf.MaxLimit, Strict: conf.Strict}
}

var errInvalidQuery = errors.New("invalid query parameters")

// maxOffset bounds (page-1)*limit so the offset always fits the store's integers.
const maxOffset = math.MaxInt32

// normaliseSort folds a sort name so that snake_case, camelCase & TitleCase spellings compare equal.
// Only trusted names go through strmangle: its TitleCase caches every input.
func normaliseSort(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

func sortLookup(sorts map[string]string) map[string]string {
	lookup := make(map[string]string, len(sorts))
	for name, col := range sorts {
		lookup[normaliseSort(strmangle.TitleCase(name))] = col
	}
	return lookup
}

// Parse validates the raw query against the schema.
// Malformed values always fail; unknown parameters and sort fields fail only in strict mode.
func Parse(schema Schema, q url.Values, opts Options) (Params, error) {
	var fldErrs []core.FieldError
	addErr := func(field, msg string) {
		fldErrs = append(fldErrs, core.FieldError{Field: field, Error: msg})
	}

	p := Params{Sort: schema.DefaultSort, Status: StatusActive, Page: 1, Limit: opts.DefaultLimit}

	if opts.Strict {
		known := map[string]bool{ParamPage: true, ParamLimit: true, ParamSort: true, ParamOrder: true, ParamStatus: true}
		for _, f := range schema.Filters {
			known[f.Param] = true
		}
		unknown := make([]string, 0)
		for param := range q {
			if !known[param] {
				unknown = append(unknown, param)
			}
		}
		sort.Strings(unknown)
		for _, param := range unknown {
			addErr(param, "unknown parameter")
		}
	}

	if raw := strings.TrimSpace(q.Get(ParamLimit)); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			addErr(ParamLimit, "must be a positive integer")
		} else {
			p.Limit = limit
		}
	}
	if p.Limit > opts.MaxLimit {
		p.Limit = opts.MaxLimit
	}

	if raw := strings.TrimSpace(q.Get(ParamPage)); raw != "" {
		page, err := strconv.Atoi(raw)
		switch {
		case err != nil || page < 1:
			addErr(ParamPage, "must be a positive integer")
		case p.Limit > 0 && page-1 > maxOffset/p.Limit:
			addErr(ParamPage, "is out of range")
		default:
			p.Page = page
		}
	}

	if raw := strings.TrimSpace(q.Get(ParamSort)); raw != "" {
		if col, ok := sortLookup(schema.Sorts)[normaliseSort(raw)]; ok {
			p.Sort = Sort{Column: col}
		} else if opts.Strict {
			addErr(ParamSort, fmt.Sprintf("cannot sort by %q", raw))
		}
	}

	switch order := strings.ToLower(strings.TrimSpace(q.Get(ParamOrder))); order {
	case "":
	case "asc":
		p.Sort.Desc = false
	case "desc":
		p.Sort.Desc = true
	default:
		addErr(ParamOrder, "must be one of: asc, desc")
	}

	switch status := Status(strings.ToLower(strings.TrimSpace(q.Get(ParamStatus)))); status {
	case "":
	case StatusActive, StatusInactive, StatusAll:
		p.Status = status
	default:
		addErr(ParamStatus, "must be one of: active, inactive, all")
	}

	for _, f := range schema.Filters {
		raws, ok := q[f.Param]
		if !ok {
			continue
		}
		if f.Kind != OneOf && len(raws) > 1 {
			raws = raws[:1]
		}
		values := make([]interface{}, 0, len(raws))
		for _, raw := range raws {
			raw = core.CleanString(raw)
			if raw == "" {
				continue
			}
			val, err := parseValue(f.Type, raw)
			if err != nil {
				addErr(f.Param, err.Error())
				continue
			}
			values = append(values, val)
		}
		if len(values) > 0 {
			p.Criteria = append(p.Criteria, Criterion{Filter: f, Values: values})
		}
	}

	if len(fldErrs) > 0 {
		return Params{}, core.NewValidationError(errInvalidQuery, fldErrs...)
	}
	return p, nil
}

func parseValue(typ ValueType, raw string) (interface{}, error) {
	switch typ {
	case Int:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.New("must be an integer")
		}
		return v, nil
	case Float:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.New("must be a number")
		}
		return v, nil
	case Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("must be true or false")
		}
		return v, nil
	case Date:
		if _, err := time.Parse(core.DateLayout, raw); err != nil {
			return nil, errors.New("must be a date formatted as YYYY-MM-DD")
		}
		return raw, nil
	case Time:
		v, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("must be an RFC3339 timestamp")
		}
		return v.UTC(), nil
	default:
		return raw, nil
	}
}
