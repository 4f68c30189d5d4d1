package listing

import (
	"encoding/json"
	"reflect"
)

// Result is the paginated response envelope:
// {"<resource>": [...], "total": n, "page": p, "limit": l, "pages": k}.
// total is always present, and the items are [] (never null) when nothing matches.
type Result struct {
	Resource string
	Items    interface{}
	Total    int
	Page     int
	Limit    int
}

func NewResult(resource string, items interface{}, total int, p Params) Result {
	return Result{Resource: resource, Items: items, Total: total, Page: p.Page, Limit: p.Limit}
}

func (r Result) Pages() int {
	if r.Limit <= 0 || r.Total == 0 {
		return 0
	}
	return (r.Total + r.Limit - 1) / r.Limit
}

func (r Result) MarshalJSON() ([]byte, error) {
	items := r.Items
	if v := reflect.ValueOf(items); !v.IsValid() || (v.Kind() == reflect.Slice && v.IsNil()) {
		items = []interface{}{}
	}
	return json.Marshal(map[string]interface{}{
		r.Resource: items,
		"total":    r.Total,
		"page":     r.Page,
		"limit":    r.Limit,
		"pages":    r.Pages(),
	})
}
