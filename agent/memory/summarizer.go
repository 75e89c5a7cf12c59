package memory

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	llmx "github.com/tanpawarit/assistant-orchestrator/agent/llm"
)

// Summarizer folds older turns into a running summary.
type Summarizer interface {
	Summarize(ctx context.Context, previousSummary string, turns []contractx.Turn, maxTokens int) (string, error)
}

type LLMSummarizer struct {
	gen          *llmx.TextGenerator
	systemPrompt string
}

func NewLLMSummarizer(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*LLMSummarizer, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: summarizer", contractx.ErrPromptMissing)
	}
	gen, err := llmx.NewTextGenerator(ctx, chatModel, "memory.summarizer_graph")
	if err != nil {
		return nil, err
	}
	return &LLMSummarizer{gen: gen, systemPrompt: systemPrompt}, nil
}

func (s *LLMSummarizer) Summarize(ctx context.Context, previousSummary string, turns []contractx.Turn, maxTokens int) (string, error) {
	var b strings.Builder
	if prev := strings.TrimSpace(previousSummary); prev != "" {
		fmt.Fprintf(&b, "Previous summary:\n%s\n\n", prev)
	} else {
		b.WriteString("Previous summary: none\n\n")
	}
	b.WriteString("New turns:\n")
	for _, t := range turns {
		b.WriteString(RenderTurn(t))
		b.WriteString("\n\n")
	}
	// about three quarters of a word per token
	fmt.Fprintf(&b, "Write the updated summary in at most %d words.", max(maxTokens*3/4, 1))

	text, err := s.gen.Generate(ctx, s.systemPrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrSummarization, err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty summary", contractx.ErrSummarization)
	}
	return text, nil
}
