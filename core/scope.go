package core

// ScopeLevel tells the stores how much of a resource a caller may see or touch.
type ScopeLevel int

const (
	ScopeDenied ScopeLevel = iota
	ScopeOwn               // restricted to the caller's own records
	ScopeAll
)

func (l ScopeLevel) String() string {
	switch l {
	case ScopeOwn:
		return "own"
	case ScopeAll:
		return "all"
	default:
		return "denied"
	}
}

// Scope is resolved once per request and handed down to the stores,
// which translate ScopeOwn into a predicate on the caller.
type Scope struct {
	Level  ScopeLevel
	UserID int64
	Role   string
}

// Unrestricted is the scope of internal calls (auth, admin CLI...).
var Unrestricted = Scope{Level: ScopeAll}

func (s Scope) Restricted() bool { return s.Level == ScopeOwn }
