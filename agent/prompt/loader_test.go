package prompt

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

func TestLoadPromptSetIsComplete(t *testing.T) {
	t.Parallel()

	if err := LoadPromptSet().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateReportsMissingPrompt(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	set.Synthesizer = "  "

	err := set.Validate()
	if !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("Validate() error = %v, want ErrPromptMissing", err)
	}
}
