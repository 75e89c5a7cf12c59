package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

func Plan(
	ctx context.Context,
	in *GraphState,
	planner contractx.Planner,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	plan, err := planner.Plan(ctx, contractx.PlanRequest{
		Query:   in.Text,
		Context: in.Context.Text,
		Now:     in.Now,
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("component", "orchestrator").
		Str("session_id", in.SessionID).
		Str("plan_id", plan.ID).
		Int("steps", len(plan.Steps)).
		Msg("plan ready")
	in.Plan = plan
	return in, nil
}
