package llm

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

// Template variables of a text graph. The system prompt is passed as a
// variable so braces inside it are not treated as placeholders.
const (
	VarSystem = "system"
	VarInput  = "input"
)

// TextGenerator is a compiled prompt -> model graph returning the reply text.
type TextGenerator struct {
	name   string
	runner compose.Runnable[map[string]any, *schema.Message]
}

func NewTextGenerator(ctx context.Context, chatModel einomodel.BaseChatModel, graphName string) (*TextGenerator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required for %s", contractx.ErrValidation, graphName)
	}

	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{"+VarSystem+"}"),
		schema.UserMessage("{"+VarInput+"}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add %s prompt node: %w", graphName, err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add %s model node: %w", graphName, err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add %s edge start->prompt: %w", graphName, err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add %s edge prompt->model: %w", graphName, err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add %s edge model->end: %w", graphName, err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", graphName, err)
	}
	return &TextGenerator{name: graphName, runner: runner}, nil
}

// Generate returns the trimmed reply content. An empty reply is not an error
// here; callers decide what empty means for them.
func (g *TextGenerator) Generate(ctx context.Context, system, input string) (string, error) {
	msg, err := g.runner.Invoke(ctx, map[string]any{
		VarSystem: system,
		VarInput:  input,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", contractx.ErrModelInvoke, g.name, err)
	}
	if msg == nil {
		return "", nil
	}
	return strings.TrimSpace(msg.Content), nil
}
