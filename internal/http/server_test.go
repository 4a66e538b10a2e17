package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finny/internal/coach"
	"finny/internal/ledger/memory"
	"finny/internal/services"
)

type stubResponder struct {
	reply string
}

func (s stubResponder) Respond(context.Context, string, string) (string, error) {
	return s.reply, nil
}

func newTestServer(upstream coach.Responder) *Server {
	svc := services.NewLedgerService(memory.New(), nil, nil)
	return NewServer(":0", svc, coach.New(upstream, nil), "demo_user", nil)
}

func doJSON(t *testing.T, s *Server, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestUserDataDefaults(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodGet, "/api/user/data", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp userDataResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID != "demo_user" {
		t.Fatalf("user id = %q, want default", resp.UserID)
	}
	if resp.Level != 5 || resp.XP != 780 || resp.NetWorth != 45000 {
		t.Fatalf("defaults not applied: %+v", resp)
	}
	if len(resp.Budget) != 3 || resp.Budget[0].Category != "food" || resp.Budget[0].Limit != 8000 {
		t.Fatalf("budget lines: %+v", resp.Budget)
	}
}

func TestLogExpense(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/api/log/expense",
		`{"category":"food","amount":4500,"description":"groceries"}`, "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp logExpenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.NetWorth != 40500 {
		t.Fatalf("net worth = %v, want 40500", resp.NetWorth)
	}
	if resp.XPGained != 50 || resp.LevelUp {
		t.Fatalf("progression: %+v", resp)
	}
	if len(resp.Nudges) != 1 || resp.Nudges[0].Severity != "warning" {
		t.Fatalf("nudges: %+v", resp.Nudges)
	}

	// Snapshot reflects the append for the same header identity.
	data := doJSON(t, s, http.MethodGet, "/api/user/data", "", "u1")
	var snap userDataResponse
	if err := json.Unmarshal(data.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Recent) != 1 || snap.Recent[0].Amount != 4500 {
		t.Fatalf("recent entries: %+v", snap.Recent)
	}
	if snap.Budget[0].ProgressPct != 56.25 {
		t.Fatalf("food progress = %v, want 56.25", snap.Budget[0].ProgressPct)
	}
}

func TestLogExpenseLegacyAlias(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/log_expense", `{"category":"food","amount":"12.50"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestLogExpenseValidation(t *testing.T) {
	s := newTestServer(nil)

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"zero amount", `{"category":"food","amount":0}`, "amount"},
		{"negative amount", `{"category":"food","amount":-5}`, "amount"},
		{"missing amount", `{"category":"food"}`, "amount"},
		{"empty category", `{"category":"","amount":10}`, "category"},
	}
	for _, tc := range cases {
		rec := doJSON(t, s, http.MethodPost, "/api/log/expense", tc.body, "")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status = %d, want 422", tc.name, rec.Code)
		}
		var body errorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if body.Field != tc.field {
			t.Fatalf("%s: field = %q, want %q", tc.name, body.Field, tc.field)
		}
	}
}

func TestLogExpenseMalformedBody(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/api/log/expense", `{"category":`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOnboard(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/onboard",
		`{"name":"Asha","monthly_income":60000,"saving_goal":12000,"goal_description":"laptop fund"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp onboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID == "" {
		t.Fatalf("empty user id")
	}

	data := doJSON(t, s, http.MethodGet, "/api/user/data", "", resp.UserID)
	var snap userDataResponse
	if err := json.Unmarshal(data.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Username != "Asha" || snap.NetWorth != 60000 {
		t.Fatalf("onboarded profile: %+v", snap)
	}
}

func TestOnboardValidation(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/onboard",
		`{"name":"","monthly_income":1,"saving_goal":1}`, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestChatWithUpstream(t *testing.T) {
	s := newTestServer(stubResponder{reply: "Start with a budget."})

	rec := doJSON(t, s, http.MethodPost, "/chat", `{"message":"where do I start?"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != "Start with a budget." {
		t.Fatalf("response = %q", resp.Response)
	}
}

func TestChatCannedFallback(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/chat", `{"message":"help me budget"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("canned mode must still answer 200, got %d", rec.Code)
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Response, "50/30/20") {
		t.Fatalf("expected canned budget reply, got %q", resp.Response)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/chat", `{"message":"  "}`, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodGet, "/chat", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if rec.Header().Get("Allow") != "POST" {
		t.Fatalf("Allow header = %q", rec.Header().Get("Allow"))
	}
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(nil)

	if rec := doJSON(t, s, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health: %d %q", rec.Code, rec.Body.String())
	}

	ready := doJSON(t, s, http.MethodGet, "/readyz", "", "")
	if ready.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", ready.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(ready.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode readyz: %v", err)
	}
	if body["ready"] != true || body["coach"] != false {
		t.Fatalf("readyz body: %v", body)
	}

	// A logged expense shows up in the counters.
	doJSON(t, s, http.MethodPost, "/api/log/expense", `{"category":"food","amount":10}`, "")
	metrics := doJSON(t, s, http.MethodGet, "/metrics", "", "")
	if !strings.Contains(metrics.Body.String(), "finny_expenses_logged_total 1") {
		t.Fatalf("metrics missing counter: %s", metrics.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodGet, "/api/user/data", "", "")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers: %v", rec.Header())
	}
}
