package llmtest

import (
	"context"
	"errors"
	"sync"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ScriptedModel is a BaseChatModel that replays canned replies in order and
// records every prompt it receives. Intended for tests and offline runs.
type ScriptedModel struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	calls    [][]*schema.Message
	Fallback func(input []*schema.Message) (string, error)
	// Delay holds every reply back; the call fails early if ctx ends first.
	Delay    time.Duration
}

var _ einomodel.BaseChatModel = (*ScriptedModel)(nil)

func NewScriptedModel(replies ...string) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

// FailNext makes the next call return err instead of a reply.
func (m *ScriptedModel) FailNext(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
	return m
}

func (m *ScriptedModel) Generate(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, input)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.mu.Unlock()
		return nil, err
	}
	if len(m.replies) > 0 {
		reply := m.replies[0]
		m.replies = m.replies[1:]
		m.mu.Unlock()
		return schema.AssistantMessage(reply, nil), nil
	}
	fallback := m.Fallback
	m.mu.Unlock()

	if fallback == nil {
		return nil, errors.New("scripted model: no reply left")
	}
	reply, err := fallback(input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(reply, nil), nil
}

func (m *ScriptedModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("scripted model: stream not supported")
}

func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastInput returns the user message content of the most recent call.
func (m *ScriptedModel) LastInput() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	msgs := m.calls[len(m.calls)-1]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == schema.User {
			return msgs[i].Content
		}
	}
	return ""
}
