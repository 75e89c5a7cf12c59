package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

type RecentTurns interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]contractx.Turn, error)
}

// Restore replays the newest logged turns of a session into memory, oldest
// first. A session that memory already knows is left untouched. It returns
// the number of turns replayed.
func Restore(ctx context.Context, src RecentTurns, mem contractx.Memory, sessionID string, limit int) (int, error) {
	view, err := mem.GetOptimizedContext(ctx, sessionID, 0)
	if err != nil {
		return 0, fmt.Errorf("read memory: %w", err)
	}
	if len(view.Turns) > 0 || view.Summary != "" {
		return 0, nil
	}

	turns, err := src.Recent(ctx, sessionID, limit)
	if err != nil {
		return 0, err
	}
	for i, turn := range turns {
		err := mem.AppendTurn(ctx, sessionID, turn)
		switch {
		case errors.Is(err, contractx.ErrSummarization):
			log.Warn().Err(err).Str("component", "history").Str("session_id", sessionID).Msg("compression failed during restore")
		case err != nil:
			return i, fmt.Errorf("replay turn %s: %w", turn.ID, err)
		}
	}

	if len(turns) > 0 {
		log.Info().Str("component", "history").Str("session_id", sessionID).Int("turns", len(turns)).Msg("session restored from turn log")
	}
	return len(turns), nil
}
