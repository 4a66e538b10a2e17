// Package memory is the in-process ledger backend: a map of profiles guarded
// by one mutex. Appends run under the lock, so concurrent expense logs for
// the same user serialize instead of overwriting each other.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finny/internal/core"
	"finny/internal/ledger"
)

type Store struct {
	mu       sync.Mutex
	profiles map[string]*core.Profile
	nextRow  int64
}

func New() *Store {
	return &Store{profiles: make(map[string]*core.Profile)}
}

// NewSeeded builds a store preloaded with profiles, mainly for tests.
func NewSeeded(profiles ...core.Profile) *Store {
	s := New()
	for _, p := range profiles {
		cp := p.Clone()
		s.profiles[p.UserID] = &cp
	}
	return s
}

// getOrCreate returns the stored profile, lazily creating defaults on first
// access. Caller must hold s.mu.
func (s *Store) getOrCreate(userID string) *core.Profile {
	if p, ok := s.profiles[userID]; ok {
		return p
	}
	p := core.DefaultProfile(userID)
	s.profiles[userID] = &p
	return &p
}

func (s *Store) Profile(_ context.Context, userID string) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(userID).Clone(), nil
}

func (s *Store) UpdateProfile(_ context.Context, userID string, patch ledger.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreate(userID)
	if patch.Username != nil {
		p.Username = *patch.Username
	}
	if patch.NetWorth != nil {
		p.NetWorth = *patch.NetWorth
	}
	if patch.GoalDescription != nil {
		p.GoalDescription = *patch.GoalDescription
	}
	if patch.BudgetLimits != nil {
		p.BudgetLimits = append([]core.CategoryLimit(nil), patch.BudgetLimits...)
	}
	return nil
}

func (s *Store) AppendExpense(_ context.Context, userID string, e core.Expense) (ledger.AppendResult, error) {
	if err := e.Validate(); err != nil {
		return ledger.AppendResult{}, err
	}
	if e.Date.IsZero() {
		e.Date = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreate(userID)
	s.nextRow++
	e.ID = s.nextRow
	xpBefore := p.XP
	levelUp := p.ApplyExpense(e)
	xpGained := p.XP - xpBefore
	if levelUp {
		xpGained = core.XPPerExpense
	}

	return ledger.AppendResult{
		Profile:  p.Clone(),
		RowRef:   fmt.Sprintf("mem:%d", e.ID),
		RowID:    e.ID,
		XPGained: xpGained,
		LevelUp:  levelUp,
	}, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}
