// Package ledger defines the ports every profile store backend implements,
// plus the store-level error taxonomy. Backends live in ledger/memory and
// internal/storage.
package ledger

import (
	"context"

	"finny/internal/core"
)

type (
	// ProfileReader loads a user's profile. Absence is self-healing: a
	// profile with documented defaults is created and persisted on first
	// access, so Profile never returns ErrNotFound in the default policy.
	ProfileReader interface {
		Profile(ctx context.Context, userID string) (core.Profile, error)
	}

	// ProfileUpdater merges partial fields into a stored profile. The merge
	// is atomic with respect to concurrent updates for the same user.
	ProfileUpdater interface {
		UpdateProfile(ctx context.Context, userID string, patch Patch) error
	}

	// ExpenseAppender appends one expense as a single atomic operation:
	// log append, net-worth decrement and XP award happen together, so two
	// concurrent appends for the same user both land.
	ExpenseAppender interface {
		AppendExpense(ctx context.Context, userID string, e core.Expense) (AppendResult, error)
	}

	// Pinger reports backend connectivity for readiness checks.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is the full ledger contract used by the service layer.
	Store interface {
		ProfileReader
		ProfileUpdater
		ExpenseAppender
		Pinger
	}
)

// Patch carries the fields UpdateProfile merges; nil pointers and nil slices
// leave the stored value untouched.
type Patch struct {
	Username        *string
	NetWorth        *core.Money
	GoalDescription *string
	BudgetLimits    []core.CategoryLimit
}

// AppendResult is the outcome of an atomic expense append.
type AppendResult struct {
	Profile  core.Profile // state after the append
	RowRef   string       // backend reference for the stored entry
	RowID    int64        // numeric row id where the backend has one, else 0
	XPGained int
	LevelUp  bool
}
