package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

func Execute(
	ctx context.Context,
	in *GraphState,
	executor contractx.Executor,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	in.Result = executor.Execute(ctx, in.Plan, in.Emit)

	succeeded, failed, skipped := in.Result.Counts()
	log.Info().
		Str("component", "orchestrator").
		Str("session_id", in.SessionID).
		Str("plan_id", in.Plan.ID).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Int("skipped", skipped).
		Bool("cancelled", in.Result.Cancelled).
		Dur("duration", in.Result.TotalDuration).
		Msg("plan finished")
	log.Debug().Str("component", "orchestrator").Msg(in.Result.Summary())
	return in, nil
}
