package memory

import (
	"fmt"
	"time"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

type Config struct {
	CeilingTokens  int           `envconfig:"CEILING_TOKENS" split_words:"true" default:"2000"`
	RetainRatio    float64       `envconfig:"RETAIN_RATIO" split_words:"true" default:"0.5"`
	MinRecentTurns int           `envconfig:"MIN_RECENT_TURNS" split_words:"true" default:"1"`
	SummaryTokens  int           `envconfig:"SUMMARY_TOKENS" split_words:"true" default:"400"`
	SummaryTimeout time.Duration `envconfig:"SUMMARY_TIMEOUT" split_words:"true" default:"30s"`
}

var DefaultConfig = Config{
	CeilingTokens:  2000,
	RetainRatio:    0.5,
	MinRecentTurns: 1,
	SummaryTokens:  400,
	SummaryTimeout: 30 * time.Second,
}

func (c Config) Validate() error {
	if c.CeilingTokens <= 0 {
		return fmt.Errorf("%w: memory ceiling tokens must be > 0", contractx.ErrValidation)
	}
	if c.RetainRatio <= 0 || c.RetainRatio >= 1 {
		return fmt.Errorf("%w: memory retain ratio must be in (0, 1)", contractx.ErrValidation)
	}
	if c.MinRecentTurns < 0 {
		return fmt.Errorf("%w: memory min recent turns must be >= 0", contractx.ErrValidation)
	}
	if c.SummaryTokens <= 0 || c.SummaryTokens >= c.CeilingTokens {
		return fmt.Errorf("%w: memory summary tokens must be in (0, ceiling)", contractx.ErrValidation)
	}
	if c.SummaryTimeout <= 0 {
		return fmt.Errorf("%w: memory summary timeout must be > 0", contractx.ErrValidation)
	}
	return nil
}
