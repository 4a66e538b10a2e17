package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finny/internal/core"
	"finny/internal/ledger"
	"finny/internal/log"
	"finny/internal/services"
)

type (
	expenseEntry struct {
		Category    string  `json:"category"`
		Amount      float64 `json:"amount"`
		Description string  `json:"description,omitempty"`
		Date        string  `json:"date"`
	}

	budgetLine struct {
		Category    string  `json:"category"`
		Limit       float64 `json:"limit"`
		Spent       float64 `json:"spent"`
		ProgressPct float64 `json:"progress_pct"`
	}

	userDataResponse struct {
		UserID          string         `json:"user_id"`
		Username        string         `json:"username"`
		Level           int            `json:"level"`
		XP              int            `json:"xp"`
		XPThreshold     int            `json:"xp_threshold"`
		NetWorth        float64        `json:"net_worth"`
		GoalDescription string         `json:"goal_description,omitempty"`
		Budget          []budgetLine   `json:"budget"`
		Recent          []expenseEntry `json:"recent_expenses"`
		Nudges          []core.Nudge   `json:"nudges"`
	}

	logExpenseRequest struct {
		Category    string      `json:"category"`
		Amount      json.Number `json:"amount"`
		Description string      `json:"description"`
	}

	logExpenseResponse struct {
		NetWorth float64      `json:"net_worth"`
		XPGained int          `json:"xp_gained"`
		Level    int          `json:"level"`
		XP       int          `json:"xp"`
		LevelUp  bool         `json:"level_up"`
		Nudges   []core.Nudge `json:"nudges"`
	}

	onboardRequest struct {
		Name            string      `json:"name"`
		MonthlyIncome   json.Number `json:"monthly_income"`
		SavingGoal      json.Number `json:"saving_goal"`
		GoalDescription string      `json:"goal_description"`
	}

	onboardResponse struct {
		UserID string `json:"user_id"`
	}

	chatRequest struct {
		Message string `json:"message"`
	}

	chatResponse struct {
		Response string `json:"response"`
	}
)

// handleUserData serves the dashboard snapshot. Unknown user ids come back
// with defaults, the store self-heals missing profiles.
func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}

	snap, err := s.ledger.Snapshot(r.Context(), s.userID(r))
	if err != nil {
		s.storeError(w, r, "Snapshot failed", err)
		return
	}

	resp := userDataResponse{
		UserID:          snap.UserID,
		Username:        snap.Username,
		Level:           snap.Level,
		XP:              snap.XP,
		XPThreshold:     snap.XPThreshold,
		NetWorth:        snap.NetWorth.Units(),
		GoalDescription: snap.GoalDescription,
		Budget:          make([]budgetLine, 0, len(snap.Budget)),
		Recent:          make([]expenseEntry, 0, len(snap.Recent)),
		Nudges:          snap.Nudges,
	}
	for _, bl := range snap.Budget {
		resp.Budget = append(resp.Budget, budgetLine{
			Category:    bl.Category,
			Limit:       bl.Limit.Units(),
			Spent:       bl.Spent.Units(),
			ProgressPct: bl.ProgressPct,
		})
	}
	for _, e := range snap.Recent {
		resp.Recent = append(resp.Recent, expenseEntry{
			Category:    e.Category,
			Amount:      e.Amount.Units(),
			Description: e.Description,
			Date:        e.Date.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogExpense(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req logExpenseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeFieldError(w, "amount", "amount must be a positive number")
		return
	}

	res, err := s.ledger.LogExpense(r.Context(), s.userID(r), services.LogExpenseInput{
		Category:    req.Category,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		if field, ok := validationField(err); ok {
			writeFieldError(w, field, err.Error())
			return
		}
		s.storeError(w, r, "Expense append failed", err)
		return
	}

	s.metrics.expensesLogged.Add(1)
	writeJSON(w, http.StatusOK, logExpenseResponse{
		NetWorth: res.NetWorth.Units(),
		XPGained: res.XPGained,
		Level:    res.Level,
		XP:       res.XP,
		LevelUp:  res.LevelUp,
		Nudges:   res.Nudges,
	})
}

func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req onboardRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	income, err := parseAmount(req.MonthlyIncome)
	if err != nil {
		writeFieldError(w, "monthly_income", "monthly income must be a positive number")
		return
	}
	goal, err := parseAmount(req.SavingGoal)
	if err != nil {
		writeFieldError(w, "saving_goal", "saving goal must be a positive number")
		return
	}

	userID, err := s.ledger.Onboard(r.Context(), services.OnboardInput{
		Name:            req.Name,
		MonthlyIncome:   income,
		SavingGoal:      goal,
		GoalDescription: req.GoalDescription,
	})
	if err != nil {
		if field, ok := validationField(err); ok {
			writeFieldError(w, field, err.Error())
			return
		}
		s.storeError(w, r, "Onboarding failed", err)
		return
	}

	s.metrics.usersOnboarded.Add(1)
	writeJSON(w, http.StatusCreated, onboardResponse{UserID: userID})
}

// handleChat grounds the coach with the caller's snapshot when available and
// always answers 200: upstream failures degrade to canned replies inside
// the coach.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeFieldError(w, "message", "message cannot be empty")
		return
	}

	var snapshot string
	if snap, err := s.ledger.Snapshot(r.Context(), s.userID(r)); err == nil {
		snapshot = formatSnapshot(snap)
	} else {
		s.logger.WarnContext(r.Context(), "Chat proceeding without snapshot",
			log.FieldError, err,
			log.FieldOperation, log.OpChat)
	}

	s.metrics.chatRequests.Add(1)
	writeJSON(w, http.StatusOK, chatResponse{
		Response: s.coach.Chat(r.Context(), req.Message, snapshot),
	})
}

// formatSnapshot renders a compact plain-text finance summary used to ground
// coach replies.
func formatSnapshot(snap services.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Level %d, %d/%d XP. Net worth %s.\n", snap.Level, snap.XP, snap.XPThreshold, snap.NetWorth.Format())
	for _, bl := range snap.Budget {
		fmt.Fprintf(&b, "- %s: spent %s of %s limit\n", bl.Category, bl.Spent.Format(), bl.Limit.Format())
	}
	return b.String()
}

// storeError maps store failures to a generic 503, never leaking connection
// details to the client.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.ErrorContext(r.Context(), msg,
		log.FieldError, err,
		log.FieldPath, r.URL.Path)
	if errors.Is(err, ledger.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
