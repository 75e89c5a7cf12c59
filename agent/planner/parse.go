package planner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

type planOutput struct {
	Steps []planStepOutput `json:"steps"`
}

type planStepOutput struct {
	Tool        string                        `json:"tool"`
	Args        map[string]contractx.Argument `json:"args"`
	Description string                        `json:"description"`
}

var (
	errNoJSON   = errors.New("no JSON object found in reply")
	fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

	planParser = schema.NewMessageJSONParser[planOutput](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})
)

// extractJSON pulls the plan JSON out of a model reply that may wrap it in
// a markdown fence or surrounding prose. A bare array is taken as the step
// list.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')
	switch {
	case arrStart >= 0 && (objStart < 0 || arrStart < objStart):
		end := strings.LastIndexByte(text, ']')
		if end < arrStart {
			return "", errNoJSON
		}
		return `{"steps":` + text[arrStart:end+1] + `}`, nil
	case objStart >= 0:
		end := strings.LastIndexByte(text, '}')
		if end < objStart {
			return "", errNoJSON
		}
		return text[objStart : end+1], nil
	default:
		return "", errNoJSON
	}
}

// parsePlan turns a model reply into steps numbered in reply order.
func parsePlan(ctx context.Context, text string) ([]contractx.Step, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	out, err := decodePlan(ctx, raw)
	if err != nil {
		fixed := normalizeJSON(raw)
		if fixed == raw {
			return nil, err
		}
		var fixErr error
		if out, fixErr = decodePlan(ctx, fixed); fixErr != nil {
			return nil, err
		}
		log.Debug().Str("component", "planner").Err(err).Msg("plan reply normalized")
	}

	steps := make([]contractx.Step, 0, len(out.Steps))
	for i, s := range out.Steps {
		tool := strings.TrimSpace(s.Tool)
		if tool == "" {
			return nil, fmt.Errorf("step %d has no tool", i)
		}
		args := s.Args
		if args == nil {
			args = map[string]contractx.Argument{}
		}
		steps = append(steps, contractx.Step{
			Index:       i,
			Tool:        tool,
			Args:        args,
			Description: strings.TrimSpace(s.Description),
			Status:      contractx.StepPending,
		})
	}
	return steps, nil
}

func decodePlan(ctx context.Context, raw string) (planOutput, error) {
	if !strings.Contains(raw, `"steps"`) {
		return planOutput{}, fmt.Errorf("reply has no \"steps\" field")
	}
	out, err := planParser.Parse(ctx, &schema.Message{Role: schema.Assistant, Content: raw})
	if err != nil {
		return planOutput{}, fmt.Errorf("decode plan: %w", err)
	}
	return out, nil
}
