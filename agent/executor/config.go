package executor

import (
	"fmt"
	"time"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

type Config struct {
	ToolTimeout time.Duration `envconfig:"TOOL_TIMEOUT" split_words:"true" default:"20s"`
	FailFast    bool          `envconfig:"FAIL_FAST" split_words:"true" default:"false"`
}

var DefaultConfig = Config{
	ToolTimeout: 20 * time.Second,
}

func (c Config) Validate() error {
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("%w: executor tool timeout must be > 0", contractx.ErrValidation)
	}
	return nil
}
