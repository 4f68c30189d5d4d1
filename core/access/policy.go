// Package access decides, per role, what a caller may do with each resource.
package access

import (
	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/user"
)

type Resource string

const (
	Users      Resource = "users"
	Teams      Resource = "teams"
	Players    Resource = "players"
	Valuations Resource = "valuations"
	Trainings  Resource = "trainings"
	Attendance Resource = "attendance"
	Fields     Resource = "fields"
	Bookings   Resource = "bookings"
	Payments   Resource = "payments"
	Reports    Resource = "reports"
)

type Action string

const (
	List   Action = "list"
	Read   Action = "read"
	Create Action = "create"
	Update Action = "update"
	Toggle Action = "toggle" // activate / deactivate
)

// Level is the outcome of a policy lookup.
type Level = core.ScopeLevel

const (
	Denied = core.ScopeDenied
	Own    = core.ScopeOwn // allowed, restricted to the caller's own records
	All    = core.ScopeAll // allowed, unrestricted
)

type (
	Rule   map[Action]Level
	Policy map[string]map[Resource]Rule
)

var (
	full     = Rule{List: All, Read: All, Create: All, Update: All, Toggle: All}
	readAll  = Rule{List: All, Read: All}
	readOwn  = Rule{List: Own, Read: Own}
	authored = Rule{List: All, Read: All, Create: All, Update: Own, Toggle: Own}
)

// DefaultPolicy is the academy's role -> resource -> action table.
var DefaultPolicy = Policy{
	user.RoleAdmin: {
		Users: full, Teams: full, Players: full, Valuations: full, Trainings: full,
		Attendance: full, Fields: full, Bookings: full, Payments: full, Reports: readAll,
	},
	user.RoleManager: {
		Users: full, Teams: full, Players: full, Valuations: readAll, Trainings: full,
		Attendance: full, Fields: full, Bookings: full, Payments: full, Reports: {Read: All},
	},
	user.RoleCoach: {
		Users:      readOwn,
		Teams:      Rule{List: All, Read: All, Update: Own},
		Players:    Rule{List: All, Read: All, Update: Own},
		Valuations: authored,
		Trainings:  authored,
		Attendance: Rule{List: All, Read: All, Update: Own},
		Fields:     readAll,
		Bookings:   authored,
	},
	user.RolePlayer: {
		Users:      Rule{Read: Own, Update: Own},
		Teams:      readAll,
		Players:    readOwn,
		Valuations: readOwn,
		Trainings:  readAll,
		Attendance: readOwn,
		Fields:     readAll,
		Bookings:   readAll,
		Payments:   readOwn,
	},
}

// Decide looks the triple up; anything missing from the table is denied.
func (p Policy) Decide(role string, res Resource, act Action) Level {
	resources, ok := p[role]
	if !ok {
		return Denied
	}
	rule, ok := resources[res]
	if !ok {
		return Denied
	}
	return rule[act]
}

// Scope returns the caller's scope for the action, or core.ErrForbidden.
func (p Policy) Scope(usr user.User, res Resource, act Action) (core.Scope, error) {
	lvl := p.Decide(usr.Role, res, act)
	if lvl == Denied {
		return core.Scope{}, core.ErrForbidden
	}
	return core.Scope{Level: lvl, UserID: usr.ID, Role: usr.Role}, nil
}
