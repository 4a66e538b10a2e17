package coach

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubResponder struct {
	reply string
	err   error
}

func (s stubResponder) Respond(context.Context, string, string) (string, error) {
	return s.reply, s.err
}

func TestChatUpstreamReply(t *testing.T) {
	c := New(stubResponder{reply: "Start a SIP."}, nil)
	if got := c.Chat(context.Background(), "how do I invest?", ""); got != "Start a SIP." {
		t.Fatalf("Chat = %q", got)
	}
	if !c.Ready() {
		t.Fatalf("expected ready with upstream")
	}
}

func TestChatFallsBackOnError(t *testing.T) {
	c := New(stubResponder{err: errors.New("upstream down")}, nil)
	got := c.Chat(context.Background(), "help me budget", "")
	if !strings.Contains(got, "50/30/20") {
		t.Fatalf("expected budget canned reply, got %q", got)
	}
}

func TestChatCannedOnlyMode(t *testing.T) {
	c := New(nil, nil)
	if c.Ready() {
		t.Fatalf("canned-only coach must not report ready")
	}
	got := c.Chat(context.Background(), "tell me something", "")
	if !strings.Contains(got, "educational purposes") {
		t.Fatalf("canned reply missing disclaimer: %q", got)
	}
}

func TestCannedReplyKeywords(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"How should I budget my salary?", "50/30/20"},
		{"I want to save more", "every month"},
		{"what is CIBIL", "spending snapshot"},
	}
	for _, tc := range cases {
		if got := cannedReply(tc.message); !strings.Contains(got, tc.want) {
			t.Fatalf("cannedReply(%q) = %q, missing %q", tc.message, got, tc.want)
		}
	}
}
