package core

import "fmt"

// Severity grades how far spending has run into a budget line.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Nudge thresholds: spending above 50% of a limit warns, above 80% is
// flagged as danger.
const (
	warningRatio = 0.50
	dangerRatio  = 0.80
)

// Nudge is an advisory message for one over-spent budget category.
type Nudge struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// EvaluateNudges compares per-category totals against budget limits and
// returns at most one nudge per budgeted category, in budget-limit order.
// Categories with a zero limit are skipped. Pure function, no I/O.
func EvaluateNudges(totals map[string]Money, limits []CategoryLimit) []Nudge {
	var nudges []Nudge
	for _, bl := range limits {
		if bl.Limit.Cents <= 0 {
			continue
		}
		spent := totals[bl.Category]
		ratio := float64(spent.Cents) / float64(bl.Limit.Cents)
		switch {
		case ratio > dangerRatio:
			nudges = append(nudges, Nudge{
				Category: bl.Category,
				Severity: SeverityDanger,
				Message: fmt.Sprintf("You've spent %s of your %s %s budget. Time to pump the brakes!",
					spent.Format(), bl.Limit.Format(), bl.Category),
			})
		case ratio > warningRatio:
			nudges = append(nudges, Nudge{
				Category: bl.Category,
				Severity: SeverityWarning,
				Message: fmt.Sprintf("Heads up: %s of your %s %s budget is gone. Keep an eye on it.",
					spent.Format(), bl.Limit.Format(), bl.Category),
			})
		}
	}
	return nudges
}
