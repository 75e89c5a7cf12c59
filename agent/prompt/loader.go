package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

var (
	//go:embed template/planner.txt
	plannerRaw string

	//go:embed template/synthesizer.txt
	synthesizerRaw string

	//go:embed template/summarizer.txt
	summarizerRaw string
)

// PromptSet holds the system prompts of each pipeline stage.
type PromptSet struct {
	Planner     string
	Synthesizer string
	Summarizer  string
}

// LoadPromptSet returns the embedded prompts, trimmed.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Planner:     strings.TrimSpace(plannerRaw),
		Synthesizer: strings.TrimSpace(synthesizerRaw),
		Summarizer:  strings.TrimSpace(summarizerRaw),
	}
}

func (p PromptSet) Validate() error {
	for name, body := range map[string]string{
		"planner":     p.Planner,
		"synthesizer": p.Synthesizer,
		"summarizer":  p.Summarizer,
	} {
		if strings.TrimSpace(body) == "" {
			return fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
	}
	return nil
}
