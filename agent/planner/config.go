package planner

import (
	"fmt"
	"time"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

type Config struct {
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	MaxSteps int           `envconfig:"MAX_STEPS" split_words:"true" default:"8"`
}

var DefaultConfig = Config{
	Timeout:  30 * time.Second,
	MaxSteps: 8,
}

func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: planner timeout must be > 0", contractx.ErrValidation)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("%w: planner max steps must be > 0", contractx.ErrValidation)
	}
	return nil
}
