package contract

import (
	"context"
	"time"
)

type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (ExecutionPlan, error)
}

type Executor interface {
	Execute(ctx context.Context, plan ExecutionPlan, emit Emitter) ExecutionResult
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (Response, error)
}

// Memory is the part of the memory manager the orchestrator depends on.
type Memory interface {
	GetOptimizedContext(ctx context.Context, sessionID string, maxTokens int) (ContextView, error)
	AppendTurn(ctx context.Context, sessionID string, turn Turn) error
}

// TurnHook lets the persistence layer store a completed turn independently of
// in-process context compression.
type TurnHook interface {
	OnTurnComplete(ctx context.Context, sessionID string, turn Turn) error
}

type PlanRequest struct {
	Query   string    `json:"query"`
	Context string    `json:"context"`
	Now     time.Time `json:"now"`
}

type SynthesisRequest struct {
	Query   string          `json:"query"`
	Context string          `json:"context"`
	Plan    ExecutionPlan   `json:"plan"`
	Result  ExecutionResult `json:"result"`
}
