package memory

import (
	"context"
	"sync"
	"testing"

	"finny/internal/core"
	"finny/internal/ledger"
)

func TestProfileSelfHealing(t *testing.T) {
	s := New()
	p, err := s.Profile(context.Background(), "fresh-user")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Level != 5 || p.XP != 780 || p.NetWorth.Cents != 45000_00 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if len(p.BudgetLimits) != 3 {
		t.Fatalf("limit count = %d, want 3", len(p.BudgetLimits))
	}
}

func TestUpdateProfileMergesPatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	name := "asha"
	goal := "emergency fund"
	nw := core.Money{Cents: 120000_00}
	err := s.UpdateProfile(ctx, "u1", ledger.Patch{
		Username:        &name,
		NetWorth:        &nw,
		GoalDescription: &goal,
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	p, _ := s.Profile(ctx, "u1")
	if p.Username != "asha" || p.NetWorth.Cents != 120000_00 || p.GoalDescription != "emergency fund" {
		t.Fatalf("patch not applied: %+v", p)
	}
	// Untouched fields keep defaults.
	if p.Level != 5 || len(p.BudgetLimits) != 3 {
		t.Fatalf("unexpected side effects: %+v", p)
	}
}

func TestAppendExpenseRejectsInvalid(t *testing.T) {
	s := New()
	_, err := s.AppendExpense(context.Background(), "u1", core.Expense{Category: "", Amount: core.Money{Cents: 100}})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	// Rejected input must not mutate state.
	p, _ := s.Profile(context.Background(), "u1")
	if len(p.SpendingLog) != 0 {
		t.Fatalf("spending log mutated on invalid input")
	}
}

// Two concurrent appends for the same user must both land.
func TestAppendExpenseConcurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AppendExpense(ctx, "u1", core.Expense{Category: "food", Amount: core.Money{Cents: 100}})
			if err != nil {
				t.Errorf("AppendExpense: %v", err)
			}
		}()
	}
	wg.Wait()

	p, _ := s.Profile(ctx, "u1")
	if len(p.SpendingLog) != n {
		t.Fatalf("spending log length = %d, want %d (lost updates)", len(p.SpendingLog), n)
	}
	if got := 45000_00 - p.NetWorth.Cents; got != n*100 {
		t.Fatalf("net worth delta = %d, want %d", got, n*100)
	}
}

// End-to-end scenario from the defaults: a 4500 food expense warns, three
// more 2000 expenses push the category into danger.
func TestDefaultUserScenario(t *testing.T) {
	s := New()
	ctx := context.Background()

	res, err := s.AppendExpense(ctx, "u1", core.Expense{Category: "food", Amount: core.Money{Cents: 4500_00}})
	if err != nil {
		t.Fatalf("AppendExpense: %v", err)
	}
	if res.Profile.NetWorth.Cents != 40500_00 {
		t.Fatalf("net worth = %d, want %d", res.Profile.NetWorth.Cents, 40500_00)
	}
	if res.Profile.XP != 830 || res.LevelUp {
		t.Fatalf("xp = %d levelUp = %v, want 830 false", res.Profile.XP, res.LevelUp)
	}
	totals := core.Aggregate(res.Profile.SpendingLog)
	if totals["food"].Cents != 4500_00 {
		t.Fatalf("food total = %d", totals["food"].Cents)
	}
	nudges := core.EvaluateNudges(totals, res.Profile.BudgetLimits)
	if len(nudges) != 1 || nudges[0].Severity != core.SeverityWarning || nudges[0].Category != "food" {
		t.Fatalf("expected food warning, got %v", nudges)
	}

	for i := 0; i < 3; i++ {
		if res, err = s.AppendExpense(ctx, "u1", core.Expense{Category: "food", Amount: core.Money{Cents: 2000_00}}); err != nil {
			t.Fatalf("AppendExpense: %v", err)
		}
	}
	totals = core.Aggregate(res.Profile.SpendingLog)
	if totals["food"].Cents != 10500_00 {
		t.Fatalf("food total = %d, want %d", totals["food"].Cents, 10500_00)
	}
	nudges = core.EvaluateNudges(totals, res.Profile.BudgetLimits)
	if len(nudges) != 1 || nudges[0].Severity != core.SeverityDanger {
		t.Fatalf("expected food danger, got %v", nudges)
	}
}

func TestXPRolloverThroughStore(t *testing.T) {
	s := New()
	ctx := context.Background()
	// Default profile starts at xp 780; five appends cross 1000.
	var res ledger.AppendResult
	var err error
	for i := 0; i < 5; i++ {
		res, err = s.AppendExpense(ctx, "u1", core.Expense{Category: "food", Amount: core.Money{Cents: 100}})
		if err != nil {
			t.Fatalf("AppendExpense: %v", err)
		}
	}
	if !res.LevelUp {
		t.Fatalf("expected level up on fifth append")
	}
	if res.Profile.Level != 6 || res.Profile.XP != 0 {
		t.Fatalf("level/xp = %d/%d, want 6/0", res.Profile.Level, res.Profile.XP)
	}
}
