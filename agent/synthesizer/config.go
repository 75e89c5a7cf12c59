package synthesizer

import (
	"fmt"
	"time"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

// Config of the synthesizer. MaxFactBytes caps the JSON facts block handed
// to the model.
type Config struct {
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	MaxFactBytes int           `envconfig:"MAX_FACT_BYTES" split_words:"true" default:"8000"`
}

var DefaultConfig = Config{
	Timeout:      30 * time.Second,
	MaxFactBytes: 8000,
}

func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: synthesizer timeout must be > 0", contractx.ErrValidation)
	}
	if c.MaxFactBytes <= 0 {
		return fmt.Errorf("%w: synthesizer max fact bytes must be > 0", contractx.ErrValidation)
	}
	return nil
}
