package core

// Aggregate sums logged amounts per category. Categories absent from the log
// are omitted; callers treat missing keys as zero. O(n) in log length, no
// side effects.
func Aggregate(log []Expense) map[string]Money {
	totals := make(map[string]Money, 8)
	for _, e := range log {
		t := totals[e.Category]
		t.Cents += e.Amount.Cents
		totals[e.Category] = t
	}
	return totals
}

// CategoryAmount is an aggregated amount keyed by category, ordered for
// deterministic presentation.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// AggregateOrdered returns per-category totals in budget-limit order,
// followed by unbudgeted categories in first-seen log order. Useful for
// dashboards where row order must be stable across refreshes.
func AggregateOrdered(log []Expense, limits []CategoryLimit) []CategoryAmount {
	totals := Aggregate(log)
	seen := make(map[string]bool, len(totals))
	out := make([]CategoryAmount, 0, len(totals))
	for _, bl := range limits {
		if t, ok := totals[bl.Category]; ok {
			out = append(out, CategoryAmount{Name: bl.Category, Amount: t})
			seen[bl.Category] = true
		}
	}
	for _, e := range log {
		if seen[e.Category] {
			continue
		}
		seen[e.Category] = true
		out = append(out, CategoryAmount{Name: e.Category, Amount: totals[e.Category]})
	}
	return out
}
