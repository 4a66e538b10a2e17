// Package services orchestrates ledger operations: expense logging with XP
// progression, onboarding, and snapshot assembly for the dashboard.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"finny/internal/amqp"
	"finny/internal/core"
	"finny/internal/ledger"
	"finny/internal/log"
)

// EventPublisher is satisfied by the AMQP client; nil disables the stream.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

type LedgerService struct {
	store  ledger.Store
	events EventPublisher
	logger *log.Logger
}

func NewLedgerService(store ledger.Store, events EventPublisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger)
	}
	return &LedgerService{
		store:  store,
		events: events,
		logger: logger,
	}
}

type (
	LogExpenseInput struct {
		Category    string
		Amount      core.Money
		Description string
	}

	LogExpenseResult struct {
		NetWorth core.Money
		XPGained int
		Level    int
		XP       int
		LevelUp  bool
		Nudges   []core.Nudge
	}

	OnboardInput struct {
		Name            string
		MonthlyIncome   core.Money
		SavingGoal      core.Money
		GoalDescription string
	}

	// BudgetLine is one row of the dashboard budget table.
	BudgetLine struct {
		Category    string
		Limit       core.Money
		Spent       core.Money
		ProgressPct float64
	}

	Snapshot struct {
		UserID          string
		Username        string
		Level           int
		XP              int
		XPThreshold     int
		NetWorth        core.Money
		GoalDescription string
		Budget          []BudgetLine
		Recent          []core.Expense
		Nudges          []core.Nudge
	}
)

// recentExpenseCount bounds the "most recent" list in snapshots.
const recentExpenseCount = 10

func (in LogExpenseInput) Validate() error {
	if strings.TrimSpace(in.Category) == "" {
		return core.ErrEmptyCategory
	}
	return in.Amount.Validate()
}

// LogExpense validates, appends atomically through the store, then publishes
// the ledger events. Publish failures are logged and swallowed: the expense
// is already durable and the request must not fail because the broker is
// down.
func (s *LedgerService) LogExpense(ctx context.Context, userID string, in LogExpenseInput) (LogExpenseResult, error) {
	if err := in.Validate(); err != nil {
		return LogExpenseResult{}, err
	}

	res, err := s.store.AppendExpense(ctx, userID, core.Expense{
		Category:    strings.TrimSpace(in.Category),
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
	})
	if err != nil {
		return LogExpenseResult{}, fmt.Errorf("append expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense logged",
		log.FieldUserID, userID,
		log.FieldCategory, in.Category,
		log.FieldAmountCents, in.Amount.Cents,
		log.FieldXP, res.Profile.XP,
		log.FieldLevel, res.Profile.Level,
		log.FieldOperation, log.OpAppend)

	s.publish(ctx, amqp.NewExpenseLoggedMessage(userID, res.RowID))
	if res.LevelUp {
		s.publish(ctx, amqp.NewLevelUpMessage(userID, res.Profile.Level))
	}

	totals := core.Aggregate(res.Profile.SpendingLog)
	return LogExpenseResult{
		NetWorth: res.Profile.NetWorth,
		XPGained: res.XPGained,
		Level:    res.Profile.Level,
		XP:       res.Profile.XP,
		LevelUp:  res.LevelUp,
		Nudges:   core.EvaluateNudges(totals, res.Profile.BudgetLimits),
	}, nil
}

// Onboard creates a fresh profile: net worth seeded from monthly income and
// the savings budget line replaced by the stated goal.
func (s *LedgerService) Onboard(ctx context.Context, in OnboardInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", core.ErrEmptyUsername
	}
	if err := in.MonthlyIncome.Validate(); err != nil {
		return "", fmt.Errorf("monthly income: %w", err)
	}
	if err := in.SavingGoal.Validate(); err != nil {
		return "", fmt.Errorf("saving goal: %w", err)
	}

	userID := uuid.New().String()
	limits := core.DefaultBudgetLimits()
	for i := range limits {
		if limits[i].Category == "savings" {
			limits[i].Limit = in.SavingGoal
		}
	}
	goal := strings.TrimSpace(in.GoalDescription)

	err := s.store.UpdateProfile(ctx, userID, ledger.Patch{
		Username:        &name,
		NetWorth:        &in.MonthlyIncome,
		GoalDescription: &goal,
		BudgetLimits:    limits,
	})
	if err != nil {
		return "", fmt.Errorf("persist onboarding profile: %w", err)
	}

	s.logger.InfoContext(ctx, "User onboarded",
		log.FieldUserID, userID,
		log.FieldOperation, log.OpCreate)

	return userID, nil
}

// Snapshot assembles the dashboard view: profile, per-category budget
// progress, recent entries and nudges.
func (s *LedgerService) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	p, err := s.store.Profile(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load profile: %w", err)
	}

	totals := core.Aggregate(p.SpendingLog)
	budget := make([]BudgetLine, 0, len(p.BudgetLimits))
	for _, bl := range p.BudgetLimits {
		line := BudgetLine{
			Category: bl.Category,
			Limit:    bl.Limit,
			Spent:    totals[bl.Category],
		}
		if bl.Limit.Cents > 0 {
			line.ProgressPct = float64(line.Spent.Cents) / float64(bl.Limit.Cents) * 100
		}
		budget = append(budget, line)
	}

	return Snapshot{
		UserID:          p.UserID,
		Username:        p.Username,
		Level:           p.Level,
		XP:              p.XP,
		XPThreshold:     core.XPThreshold,
		NetWorth:        p.NetWorth,
		GoalDescription: p.GoalDescription,
		Budget:          budget,
		Recent:          p.LastExpenses(recentExpenseCount),
		Nudges:          core.EvaluateNudges(totals, p.BudgetLimits),
	}, nil
}

// Ping reports store connectivity for readiness checks.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) publish(ctx context.Context, msg *amqp.LedgerEventMessage) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLedgerEvent(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldError, err,
			log.FieldEventKind, msg.Kind,
			log.FieldUserID, msg.UserID)
	}
}
