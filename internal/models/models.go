package models

import (
	"time"

	"github.com/shopspring/decimal"

	"isometric/internal/perm"
)

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	PasswordSalt []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Budget is a named spending-tracking period. PreviousID links a budget to
// the period it continues; at most one budget may name a given predecessor,
// so the chain never branches.
type Budget struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PreviousID *int64 `json:"previous_budget_id,omitempty"`
}

// Category groups expenses within a budget.
type Category struct {
	ID       int64  `json:"id"`
	BudgetID int64  `json:"budget_id"`
	Name     string `json:"name"`
}

// Expense is a single spending record under a category.
type Expense struct {
	ID          int64           `json:"id"`
	CategoryID  int64           `json:"category_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	EntryTime   time.Time       `json:"entry_time"`
}

// BudgetPermission attaches a permission level to a (budget, user) pair.
// Absence of a row means perm.None.
type BudgetPermission struct {
	ID       int64      `json:"id"`
	BudgetID int64      `json:"budget_id"`
	UserID   int64      `json:"user_id"`
	Level    perm.Level `json:"permissions"`
}
