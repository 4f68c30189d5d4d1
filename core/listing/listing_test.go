package listing

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soka/core"
)

var testSchema = Schema{
	Resource: "valuations",
	Filters: []Filter{
		{Param: "player_id", Kind: Exact, Type: Int, Columns: []string{"player_id"}},
		{Param: "role", Kind: OneOf, Type: String, Columns: []string{"role"}},
		{Param: "search", Kind: Search, Type: String, Columns: []string{"comments"}},
		{Param: "rating_min", Kind: Min, Type: Float, Columns: []string{"overall_rating"}},
		{Param: "date_from", Kind: Min, Type: Date, Columns: []string{"evaluated_on"}},
		{Param: "created_from", Kind: Min, Type: Time, Columns: []string{"created_at"}},
		{Param: "unassigned", Kind: IsNull, Type: Bool, Columns: []string{"team_id"}},
	},
	Sorts: map[string]string{
		"id":             "id",
		"overall_rating": "overall_rating",
		"created_at":     "created_at",
	},
	DefaultSort: Sort{Column: "created_at", Desc: true},
}

var testOpts = Options{DefaultLimit: 20, MaxLimit: 100, Strict: true}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "expected *core.ValidationError, got %T", err)
	got := make(map[string]string, len(vErr.Fields))
	for _, f := range vErr.Fields {
		got[f.Field] = f.Error
	}
	return got
}

func TestParse_defaults(t *testing.T) {
	p, err := Parse(testSchema, url.Values{}, testOpts)
	require.NoError(t, err)
	assert.Equal(t, Params{Sort: Sort{Column: "created_at", Desc: true}, Status: StatusActive, Page: 1, Limit: 20}, p)
	assert.Equal(t, 0, p.Offset())
}

func TestParse_pagination(t *testing.T) {
	p, err := Parse(testSchema, url.Values{"page": {"3"}, "limit": {"10"}}, testOpts)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 20, p.Offset())

	p, err = Parse(testSchema, url.Values{"limit": {"5000"}}, testOpts)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Limit, "limit is capped")

	_, err = Parse(testSchema, url.Values{"limit": {"0"}}, testOpts)
	assert.Equal(t, map[string]string{"limit": "must be a positive integer"}, fieldErrors(t, err))

	_, err = Parse(testSchema, url.Values{"page": {"0"}, "limit": {"-1"}}, testOpts)
	assert.Equal(t, map[string]string{
		"page":  "must be a positive integer",
		"limit": "must be a positive integer",
	}, fieldErrors(t, err))

	// offsets past the store's integer range
	for _, q := range []url.Values{
		{"page": {"9223372036854775807"}, "limit": {"10"}},
		{"page": {"922337203685477580"}, "limit": {"100"}},
		{"page": {"21474838"}, "limit": {"100"}},
	} {
		_, err = Parse(testSchema, q, testOpts)
		assert.Equal(t, map[string]string{"page": "is out of range"}, fieldErrors(t, err), q.Encode())
	}

	p, err = Parse(testSchema, url.Values{"page": {"21474837"}, "limit": {"10"}}, testOpts)
	require.NoError(t, err)
	assert.Equal(t, 214748360, p.Offset())
}

func TestParse_sort(t *testing.T) {
	p, err := Parse(testSchema, url.Values{"sort": {"overall_rating"}, "order": {"DESC"}}, testOpts)
	require.NoError(t, err)
	assert.Equal(t, Sort{Column: "overall_rating", Desc: true}, p.Sort)

	p, err = Parse(testSchema, url.Values{"sort": {"overallRating"}}, testOpts)
	require.NoError(t, err)
	assert.Equal(t, Sort{Column: "overall_rating"}, p.Sort, "camelCase names are accepted; asc by default")

	p, err = Parse(testSchema, url.Values{"sort": {"OverallRating"}}, testOpts)
	require.NoError(t, err)
	assert.Equal(t, Sort{Column: "overall_rating"}, p.Sort)

	p, err = Parse(testSchema, url.Values{"sort": {"ID"}}, testOpts)
	require.NoError(t, err)
	assert.Equal(t, Sort{Column: "id"}, p.Sort)

	p, err = Parse(testSchema, url.Values{"order": {"asc"}}, testOpts)
	require.NoError(t, err)
	assert.Equal(t, Sort{Column: "created_at"}, p.Sort)

	_, err = Parse(testSchema, url.Values{"sort": {"password_hash"}, "order": {"sideways"}}, testOpts)
	assert.Equal(t, map[string]string{
		"sort":  `cannot sort by "password_hash"`,
		"order": "must be one of: asc, desc",
	}, fieldErrors(t, err))
}

func TestParse_unknownParams(t *testing.T) {
	q := url.Values{"colour": {"red"}, "sort": {"shoe_size"}}

	_, err := Parse(testSchema, q, testOpts)
	assert.Equal(t, map[string]string{
		"colour": "unknown parameter",
		"sort":   `cannot sort by "shoe_size"`,
	}, fieldErrors(t, err))

	lenient := testOpts
	lenient.Strict = false
	p, err := Parse(testSchema, q, lenient)
	require.NoError(t, err)
	assert.Empty(t, p.Criteria)
	assert.Equal(t, testSchema.DefaultSort, p.Sort)
}

func TestParse_status(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusInactive, StatusAll} {
		p, err := Parse(testSchema, url.Values{"status": {string(s)}}, testOpts)
		require.NoError(t, err)
		assert.Equal(t, s, p.Status)
	}
	_, err := Parse(testSchema, url.Values{"status": {"deleted"}}, testOpts)
	assert.Equal(t, map[string]string{"status": "must be one of: active, inactive, all"}, fieldErrors(t, err))
}

func TestParse_filters(t *testing.T) {
	created := time.Date(2021, 3, 1, 10, 0, 0, 0, time.FixedZone("WAT", 3600))
	q := url.Values{
		"player_id":    {"12"},
		"role":         {"coach", "player", " "},
		"search":       {"  left foot "},
		"rating_min":   {"7.5"},
		"date_from":    {"2021-01-31"},
		"created_from": {created.Format(time.RFC3339)},
		"unassigned":   {"true"},
	}
	p, err := Parse(testSchema, q, testOpts)
	require.NoError(t, err)
	require.Len(t, p.Criteria, 7)

	got := make(map[string][]interface{}, len(p.Criteria))
	for _, c := range p.Criteria {
		got[c.Filter.Param] = c.Values
	}
	assert.Equal(t, []interface{}{int64(12)}, got["player_id"])
	assert.Equal(t, []interface{}{"coach", "player"}, got["role"])
	assert.Equal(t, []interface{}{"left foot"}, got["search"])
	assert.Equal(t, []interface{}{7.5}, got["rating_min"])
	assert.Equal(t, []interface{}{"2021-01-31"}, got["date_from"])
	assert.Equal(t, []interface{}{created.UTC()}, got["created_from"])
	assert.Equal(t, []interface{}{true}, got["unassigned"])

	// criteria keep the schema order
	assert.Equal(t, "player_id", p.Criteria[0].Filter.Param)
	assert.Equal(t, "unassigned", p.Criteria[6].Filter.Param)
}

func TestParse_malformedFilters(t *testing.T) {
	q := url.Values{
		"player_id":    {"twelve"},
		"rating_min":   {"high"},
		"date_from":    {"31/01/2021"},
		"created_from": {"yesterday"},
		"unassigned":   {"maybe"},
	}
	_, err := Parse(testSchema, q, testOpts)
	assert.Equal(t, map[string]string{
		"player_id":    "must be an integer",
		"rating_min":   "must be a number",
		"date_from":    "must be a date formatted as YYYY-MM-DD",
		"created_from": "must be an RFC3339 timestamp",
		"unassigned":   "must be true or false",
	}, fieldErrors(t, err))
}

func TestResult_MarshalJSON(t *testing.T) {
	type row struct {
		ID int `json:"id"`
	}
	p := Params{Page: 2, Limit: 10}

	data, err := json.Marshal(NewResult("players", []row{{ID: 11}, {ID: 12}}, 25, p))
	require.NoError(t, err)
	assert.JSONEq(t, `{"players":[{"id":11},{"id":12}],"total":25,"page":2,"limit":10,"pages":3}`, string(data))

	var none []row
	data, err = json.Marshal(NewResult("players", none, 0, p))
	require.NoError(t, err)
	assert.JSONEq(t, `{"players":[],"total":0,"page":2,"limit":10,"pages":0}`, string(data))

	data, err = json.Marshal(NewResult("users", nil, 0, p))
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":[],"total":0,"page":2,"limit":10,"pages":0}`, string(data))
}
