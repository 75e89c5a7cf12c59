package orchestrator

import (
	"fmt"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

type Config struct {
	// ContextTokens is the budget passed to the memory manager for each run.
	ContextTokens      int  `envconfig:"CONTEXT_TOKENS" split_words:"true" default:"1500"`
	EventBuffer        int  `envconfig:"EVENT_BUFFER" split_words:"true" default:"64"`
	SynthesizeOnCancel bool `envconfig:"SYNTHESIZE_ON_CANCEL" split_words:"true" default:"false"`
}

var DefaultConfig = Config{
	ContextTokens: 1500,
	EventBuffer:   64,
}

func (c Config) Validate() error {
	if c.ContextTokens <= 0 {
		return fmt.Errorf("%w: orchestrator context tokens must be > 0", contractx.ErrValidation)
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("%w: orchestrator event buffer must be >= 0", contractx.ErrValidation)
	}
	return nil
}
