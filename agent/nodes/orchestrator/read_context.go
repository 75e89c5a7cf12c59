package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

func ReadContext(
	ctx context.Context,
	in *GraphState,
	memory contractx.Memory,
	maxTokens int,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	view, err := memory.GetOptimizedContext(ctx, in.SessionID, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("read context: %w", err)
	}
	in.Context = view
	return in, nil
}
