package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

// AppendTurn records a completed turn in memory and hands it to every hook.
// The reply already exists at this point, so storage and hook failures are
// logged and never fail the run. Failed responses are not recorded.
func AppendTurn(
	ctx context.Context,
	in *GraphState,
	memory contractx.Memory,
	hooks []contractx.TurnHook,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Response.Failed {
		return in, nil
	}

	ctx = context.WithoutCancel(ctx)
	in.Turn = contractx.Turn{
		ID:    uuid.NewString(),
		Query: in.Text,
		Reply: in.Response.Text,
		Tools: in.Response.ContributingTools,
		At:    in.Now,
	}

	logger := log.With().
		Str("component", "orchestrator").
		Str("session_id", in.SessionID).
		Str("turn_id", in.Turn.ID).
		Logger()

	if err := memory.AppendTurn(ctx, in.SessionID, in.Turn); err != nil {
		if errors.Is(err, contractx.ErrSummarization) {
			logger.Warn().Err(err).Msg("context compression failed, turn kept")
		} else {
			logger.Error().Err(err).Msg("append turn failed")
		}
	}

	for _, hook := range hooks {
		if err := hook.OnTurnComplete(ctx, in.SessionID, in.Turn); err != nil {
			logger.Warn().Err(err).Str("hook", fmt.Sprintf("%T", hook)).Msg("turn hook failed")
		}
	}
	return in, nil
}
