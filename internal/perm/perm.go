package perm

import "fmt"

// Level is a user's permission level on a budget. Levels form a total order;
// every authorization check is an ordinal comparison. The numeric gaps are
// reserved bit positions inherited from the wire format, but nothing compares
// levels bitwise.
type Level int

const (
	// None is the implicit level of any user without a permission row.
	None Level = 0
	// View allows reading a budget, its categories, and its expenses.
	View Level = 1
	// Update allows creating and editing categories and expenses.
	Update Level = 2
	// Admin allows deleting entities and managing other users' permissions.
	Admin Level = 4
	// Owner is held by exactly one user per budget and is required to
	// transfer ownership.
	Owner Level = 8
)

// AtLeast reports whether l grants at least the required level.
func (l Level) AtLeast(required Level) bool {
	return l >= required
}

// Valid reports whether l is one of the named levels.
func (l Level) Valid() bool {
	switch l {
	case None, View, Update, Admin, Owner:
		return true
	}
	return false
}

func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case View:
		return "view"
	case Update:
		return "update"
	case Admin:
		return "admin"
	case Owner:
		return "owner"
	}
	return fmt.Sprintf("level(%d)", int(l))
}
