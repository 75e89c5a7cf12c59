package memory

import (
	"slices"
	"strings"
	"time"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

const (
	summaryPrefix = "Summary of earlier conversation: "
	partSeparator = "\n\n"
)

// ConversationContext is the per-session state owned by the Manager.
// RunningSummary is a lossy replacement for turns that were folded away;
// those turns cannot be recovered from it.
type ConversationContext struct {
	SessionID      string           `json:"session_id"`
	Turns          []contractx.Turn `json:"turns"`
	RunningSummary string           `json:"running_summary,omitempty"`
	TokenEstimate  int              `json:"token_estimate"`
	Compressions   int              `json:"compressions,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func NewConversationContext(sessionID string, now time.Time) *ConversationContext {
	return &ConversationContext{
		SessionID: sessionID,
		Turns:     []contractx.Turn{},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (c *ConversationContext) Clone() *ConversationContext {
	if c == nil {
		return nil
	}
	out := *c
	out.Turns = make([]contractx.Turn, len(c.Turns))
	for i, t := range c.Turns {
		t.Tools = slices.Clone(t.Tools)
		out.Turns[i] = t
	}
	return &out
}

// Recompute refreshes TokenEstimate from the full rendering of the context.
func (c *ConversationContext) Recompute() {
	parts := make([]string, 0, len(c.Turns)+1)
	if c.RunningSummary != "" {
		parts = append(parts, RenderSummary(c.RunningSummary))
	}
	for _, t := range c.Turns {
		parts = append(parts, RenderTurn(t))
	}
	c.TokenEstimate = EstimateTokens(strings.Join(parts, partSeparator))
}

// StartsWith reports whether the context's oldest turns are exactly prefix.
func (c *ConversationContext) StartsWith(prefix []contractx.Turn) bool {
	if len(prefix) > len(c.Turns) {
		return false
	}
	for i, t := range prefix {
		if c.Turns[i].ID != t.ID {
			return false
		}
	}
	return true
}

func RenderTurn(t contractx.Turn) string {
	return "User: " + strings.TrimSpace(t.Query) + "\nAssistant: " + strings.TrimSpace(t.Reply)
}

func RenderSummary(summary string) string {
	return summaryPrefix + strings.TrimSpace(summary)
}
