package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	llmx "github.com/tanpawarit/assistant-orchestrator/agent/llm"
)

// ToolCatalog is what the planner reads from the tool registry.
type ToolCatalog interface {
	ToolLookup
	Catalog() string
}

type Planner struct {
	gen          *llmx.TextGenerator
	tools        ToolCatalog
	systemPrompt string
	cfg          Config
	now          func() time.Time
}

var _ contractx.Planner = (*Planner)(nil)

func New(ctx context.Context, chatModel einomodel.BaseChatModel, tools ToolCatalog, systemPrompt string, cfg Config) (*Planner, error) {
	if tools == nil {
		return nil, errors.New("tool catalog is required")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: planner", contractx.ErrPromptMissing)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gen, err := llmx.NewTextGenerator(ctx, chatModel, "planner.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile planner graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Planner{
		gen:          gen,
		tools:        tools,
		systemPrompt: systemPrompt,
		cfg:          cfg,
		now:          time.Now,
	}, nil
}

// Plan asks the model for a decomposition of the query, repairs one
// malformed reply, and validates the result against the registry.
func (p *Planner) Plan(ctx context.Context, req contractx.PlanRequest) (contractx.ExecutionPlan, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return contractx.ExecutionPlan{}, fmt.Errorf("%w: query is required", contractx.ErrValidation)
	}
	now := req.Now
	if now.IsZero() {
		now = p.now()
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	input := p.buildInput(query, req.Context, now)
	reply, err := p.gen.Generate(ctx, p.systemPrompt, input)
	if err != nil {
		return contractx.ExecutionPlan{}, fmt.Errorf("%w: %v", contractx.ErrPlanGeneration, err)
	}

	steps, parseErr := parsePlan(ctx, reply)
	if parseErr != nil {
		log.Warn().Err(parseErr).Str("component", "planner").Msg("plan reply malformed, repairing")

		reply, err = p.gen.Generate(ctx, p.systemPrompt, repairInput(input, reply, parseErr))
		if err != nil {
			return contractx.ExecutionPlan{}, fmt.Errorf("%w: repair: %v", contractx.ErrPlanGeneration, err)
		}
		steps, parseErr = parsePlan(ctx, reply)
		if parseErr != nil {
			return contractx.ExecutionPlan{}, fmt.Errorf("%w: reply still malformed after repair: %v", contractx.ErrPlanGeneration, parseErr)
		}
	}

	plan := contractx.ExecutionPlan{
		ID:        uuid.NewString(),
		Query:     query,
		Steps:     steps,
		CreatedAt: now.UTC(),
	}
	if len(plan.Steps) > p.cfg.MaxSteps {
		return contractx.ExecutionPlan{}, fmt.Errorf("%w: plan has %d steps, limit is %d",
			contractx.ErrPlanValidation, len(plan.Steps), p.cfg.MaxSteps)
	}
	if err := Validate(plan, p.tools); err != nil {
		return contractx.ExecutionPlan{}, err
	}

	log.Debug().
		Str("component", "planner").
		Str("plan_id", plan.ID).
		Int("steps", len(plan.Steps)).
		Msg("plan created")
	return plan, nil
}

func (p *Planner) buildInput(query, conversation string, now time.Time) string {
	var b strings.Builder
	b.WriteString("Available tools:\n")
	if catalog := strings.TrimSpace(p.tools.Catalog()); catalog != "" {
		b.WriteString(catalog)
	} else {
		b.WriteString("none")
	}
	b.WriteString("\n\nConversation so far:\n")
	if c := strings.TrimSpace(conversation); c != "" {
		b.WriteString(c)
	} else {
		b.WriteString("(new conversation)")
	}
	fmt.Fprintf(&b, "\n\nCurrent time: %s", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "\n\nUser request: %s\n\nReply with the JSON plan.", query)
	return b.String()
}

func repairInput(input, reply string, parseErr error) string {
	return fmt.Sprintf("%s\n\nYour previous reply could not be used: %v\nPrevious reply:\n%s\n\n"+
		"Reply again with only the JSON object described in the instructions.", input, parseErr, reply)
}
