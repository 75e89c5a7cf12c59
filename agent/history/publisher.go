package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	qstashx "github.com/tanpawarit/assistant-orchestrator/pkg/qstash"
)

// TurnEvent is the payload published for every completed turn.
type TurnEvent struct {
	SessionID string         `json:"session_id"`
	Turn      contractx.Turn `json:"turn"`
}

type Publisher interface {
	Publish(ctx context.Context, msg qstashx.Message) (string, error)
}

// QStashPublisher fans completed turns out to a QStash destination. The turn
// id doubles as the deduplication id.
type QStashPublisher struct {
	client      Publisher
	destination string
}

var _ contractx.TurnHook = (*QStashPublisher)(nil)

func NewQStashPublisher(client Publisher, destination string) (*QStashPublisher, error) {
	if client == nil {
		return nil, errors.New("qstash client is required")
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, errors.New("qstash destination is required")
	}
	return &QStashPublisher{client: client, destination: destination}, nil
}

func (p *QStashPublisher) OnTurnComplete(ctx context.Context, sessionID string, turn contractx.Turn) error {
	body, err := json.Marshal(TurnEvent{SessionID: sessionID, Turn: turn})
	if err != nil {
		return fmt.Errorf("marshal turn event: %w", err)
	}

	id, err := p.client.Publish(ctx, qstashx.Message{
		Destination: p.destination,
		Body:        body,
		Deduplicate: turn.ID,
		Headers:     map[string]string{"X-Session-Id": sessionID},
	})
	if err != nil {
		return fmt.Errorf("publish turn %s: %w", turn.ID, err)
	}

	log.Debug().Str("component", "history").Str("session_id", sessionID).Str("message_id", id).Msg("turn published")
	return nil
}
