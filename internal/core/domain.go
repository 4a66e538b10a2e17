package core

import (
	"errors"
	"strings"
	"time"
)

// Gamification constants. XP accrues per logged expense and rolls the level
// over at the threshold.
const (
	XPThreshold  = 1000
	XPPerExpense = 50
)

// Defaults applied when a profile is created lazily on first access.
const (
	DefaultLevel         = 5
	DefaultXP            = 780
	DefaultNetWorthCents = 45000_00
)

type (
	// Expense is a single entry in a user's spending log. Entries are
	// append-only and never mutated once stored.
	Expense struct {
		ID          int64 // storage row id, 0 until persisted
		Category    string
		Amount      Money
		Description string
		Date        time.Time
	}

	// CategoryLimit is one line of a user's monthly budget. Limits are kept
	// as an ordered slice so nudge output order is deterministic.
	CategoryLimit struct {
		Category string
		Limit    Money
	}

	// Profile is the full persisted financial record for one user.
	Profile struct {
		UserID          string
		Username        string
		Level           int
		XP              int
		NetWorth        Money // signed, may go negative
		GoalDescription string
		BudgetLimits    []CategoryLimit
		SpendingLog     []Expense
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyUsername = errors.New("empty username")
)

// DefaultBudgetLimits returns the budget lines seeded into lazily created
// profiles.
func DefaultBudgetLimits() []CategoryLimit {
	return []CategoryLimit{
		{Category: "food", Limit: Money{Cents: 8000_00}},
		{Category: "entertainment", Limit: Money{Cents: 3000_00}},
		{Category: "savings", Limit: Money{Cents: 5000_00}},
	}
}

// DefaultProfile builds the self-healing profile persisted when a user id is
// seen for the first time.
func DefaultProfile(userID string) Profile {
	return Profile{
		UserID:       userID,
		Username:     "explorer",
		Level:        DefaultLevel,
		XP:           DefaultXP,
		NetWorth:     Money{Cents: DefaultNetWorthCents},
		BudgetLimits: DefaultBudgetLimits(),
	}
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

// ApplyExpense mutates the profile for one logged expense: append to the
// spending log, decrement net worth by exactly the amount, and award XP.
// Returns true when the award crossed the level threshold.
func (p *Profile) ApplyExpense(e Expense) bool {
	p.SpendingLog = append(p.SpendingLog, e)
	p.NetWorth.Cents -= e.Amount.Cents
	var levelUp bool
	p.Level, p.XP, levelUp = Award(p.Level, p.XP, XPPerExpense)
	return levelUp
}

// LimitFor returns the configured limit for a category, or false when the
// category has no budget line.
func (p Profile) LimitFor(category string) (Money, bool) {
	for _, bl := range p.BudgetLimits {
		if bl.Category == category {
			return bl.Limit, true
		}
	}
	return Money{}, false
}

// LastExpenses returns up to n most recent entries, newest first.
func (p Profile) LastExpenses(n int) []Expense {
	if n <= 0 || len(p.SpendingLog) == 0 {
		return nil
	}
	if n > len(p.SpendingLog) {
		n = len(p.SpendingLog)
	}
	out := make([]Expense, 0, n)
	for i := len(p.SpendingLog) - 1; i >= len(p.SpendingLog)-n; i-- {
		out = append(out, p.SpendingLog[i])
	}
	return out
}

// Clone returns a deep copy so stores can hand out profiles without sharing
// internal slices with callers.
func (p Profile) Clone() Profile {
	cp := p
	cp.BudgetLimits = append([]CategoryLimit(nil), p.BudgetLimits...)
	cp.SpendingLog = append([]Expense(nil), p.SpendingLog...)
	return cp
}
