// Package coach forwards user chat messages to the Gemini
// generative-language API with the FINNY coach persona. The upstream is an
// external collaborator: when it is unconfigured, errors out or returns an
// empty reply, the caller gets a canned response instead of a failure.
package coach

import (
	"context"
	"strings"
	"time"

	generativelanguage "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"

	"finny/internal/log"
)

// systemInstruction is the fixed persona prompt sent with every request.
const systemInstruction = `You are FINNY, a professional, patient and knowledgeable Financial Literacy Coach for young adults in India (16-28 years).

# CORE MISSION AND TONE
1. Always use ₹ currency and Indian financial terms (CIBIL, SIPs, PPF, NPS).
2. Stay friendly, simple, and educational.

# SAFETY RULES
- Do NOT give personalized investing or tax advice.
- Do NOT recommend specific stocks, funds, brokers, or credit products.
- ALWAYS include a disclaimer: "This is for educational purposes only."

# RESPONSE FORMAT
Use clean Markdown (Headings, Bullet Points, Tables).`

const temperature = 0.3

// Responder produces a coach reply for a user message. The snapshot argument
// is an optional plain-text summary of the user's finances used to ground
// the reply; implementations may ignore it.
type Responder interface {
	Respond(ctx context.Context, message, snapshot string) (string, error)
}

// Gateway is the real Gemini upstream.
type Gateway struct {
	svc     *generativelanguage.Service
	model   string
	timeout time.Duration
	logger  *log.Logger
}

func NewGateway(ctx context.Context, apiKey, model string, timeout time.Duration, logger *log.Logger) (*Gateway, error) {
	svc, err := generativelanguage.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentCoach)
	}
	return &Gateway{
		svc:     svc,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (g *Gateway) Respond(ctx context.Context, message, snapshot string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := message
	if snapshot != "" {
		prompt = "My current finances:\n" + snapshot + "\n\n" + message
	}

	req := &generativelanguage.GenerateContentRequest{
		SystemInstruction: &generativelanguage.Content{
			Parts: []*generativelanguage.Part{{Text: systemInstruction}},
		},
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
		GenerationConfig: &generativelanguage.GenerationConfig{
			Temperature: temperature,
		},
	}

	resp, err := g.svc.Models.GenerateContent("models/"+g.model, req).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	reply := firstText(resp)
	if reply == "" {
		g.logger.WarnContext(ctx, "Empty reply from Gemini", "model", g.model)
		return "", ErrEmptyReply
	}
	return reply, nil
}

func firstText(resp *generativelanguage.GenerateContentResponse) string {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text
			}
		}
	}
	return ""
}
