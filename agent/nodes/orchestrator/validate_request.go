package orchestratornode

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

var (
	ErrInvalidMessage = fmt.Errorf("%w: message is empty", contractx.ErrValidation)
	ErrInvalidSession = fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
)

type GraphInput struct {
	SessionID string
	Text      string
	Emit      contractx.Emitter
}

type GraphOutput struct {
	Plan     contractx.ExecutionPlan
	Result   contractx.ExecutionResult
	Response contractx.Response
	Turn     contractx.Turn
}

type GraphState struct {
	SessionID string
	Text      string
	Now       time.Time
	Emit      contractx.Emitter

	Context  contractx.ContextView
	Plan     contractx.ExecutionPlan
	Result   contractx.ExecutionResult
	Response contractx.Response
	Turn     contractx.Turn
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Now:       nowFn().UTC(),
		Emit:      in.Emit,
	}, nil
}
