package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finny/internal/log"
)

// ErrEmptyReply marks an upstream response with no usable text.
var ErrEmptyReply = errors.New("empty reply from coach upstream")

// cannedReply picks a static reply by keyword, mirroring the behavior users
// saw before the real upstream existed.
func cannedReply(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "budget"):
		return "Budgeting is key! Try the 50/30/20 rule: 50% Needs, 30% Wants, 20% Savings. This is for educational purposes only."
	case strings.Contains(lower, "save"), strings.Contains(lower, "saving"):
		return "Small, regular amounts beat occasional big ones. Park something every month before you spend. This is for educational purposes only."
	default:
		return fmt.Sprintf("That's interesting! You said: %q. As your coach, I recommend checking your spending snapshot. This is for educational purposes only.", message)
	}
}

// Coach wraps an optional upstream Responder with the canned fallback, so
// Chat always returns a reply. One failure policy for every deployment:
// degrade gracefully, never surface the upstream error to the user.
type Coach struct {
	upstream Responder // nil means canned-only mode
	logger   *log.Logger
}

func New(upstream Responder, logger *log.Logger) *Coach {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentCoach)
	}
	return &Coach{upstream: upstream, logger: logger}
}

// Chat returns the upstream reply, or a canned one when the upstream is
// missing or fails.
func (c *Coach) Chat(ctx context.Context, message, snapshot string) string {
	if c.upstream == nil {
		return cannedReply(message)
	}
	reply, err := c.upstream.Respond(ctx, message, snapshot)
	if err != nil {
		c.logger.ErrorContext(ctx, "Coach upstream failed, using canned reply",
			log.FieldError, err,
			log.FieldOperation, log.OpChat)
		return cannedReply(message)
	}
	return reply
}

// Ready reports whether a real upstream is configured.
func (c *Coach) Ready() bool {
	return c.upstream != nil
}
