package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	llmx "github.com/tanpawarit/assistant-orchestrator/agent/llm"
)

type Synthesizer struct {
	gen          *llmx.TextGenerator
	systemPrompt string
	cfg          Config
}

var _ contractx.Synthesizer = (*Synthesizer)(nil)

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, cfg Config) (*Synthesizer, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: synthesizer", contractx.ErrPromptMissing)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gen, err := llmx.NewTextGenerator(ctx, chatModel, "synthesizer.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile synthesizer graph: %v", contractx.ErrModelInvoke, err)
	}
	return &Synthesizer{gen: gen, systemPrompt: systemPrompt, cfg: cfg}, nil
}

type stepFacts struct {
	Step        int    `json:"step"`
	Tool        string `json:"tool"`
	Description string `json:"description,omitempty"`
	Facts       any    `json:"facts"`
}

type unfinishedStep struct {
	Step        int                  `json:"step"`
	Tool        string               `json:"tool"`
	Description string               `json:"description,omitempty"`
	Status      contractx.StepStatus `json:"status"`
	Reason      string               `json:"reason,omitempty"`
}

// Synthesize turns an execution result into the reply. With no steps it
// answers from context; with no succeeded step it apologises without calling
// the model; otherwise the model answers from the succeeded steps' facts.
func (s *Synthesizer) Synthesize(ctx context.Context, req contractx.SynthesisRequest) (contractx.Response, error) {
	steps := req.Result.Steps
	if len(steps) == 0 {
		return s.direct(ctx, req)
	}

	var facts []stepFacts
	var unfinished []unfinishedStep
	for _, sr := range steps {
		if sr.Status == contractx.StepSucceeded {
			facts = append(facts, stepFacts{Step: sr.Index, Tool: sr.Tool, Description: sr.Description, Facts: sr.Output})
			continue
		}
		unfinished = append(unfinished, unfinishedStep{
			Step:        sr.Index,
			Tool:        sr.Tool,
			Description: sr.Description,
			Status:      sr.Status,
			Reason:      sr.Error,
		})
	}

	if len(facts) == 0 {
		return apology(req.Query, unfinished), nil
	}

	text, err := s.generate(ctx, s.factsInput(req, facts, unfinished))
	if err != nil {
		return contractx.Response{}, err
	}
	if missing := unmentioned(text, unfinished); len(missing) > 0 {
		text += "\n\n" + unfinishedNote(missing)
	}

	tools, citations := attribute(text, steps)
	confidence := float64(len(facts)) / float64(len(steps))
	if len(tools) == 0 {
		confidence /= 2
	}
	return contractx.Response{
		Text:              text,
		ContributingTools: nonNil(tools),
		Confidence:        confidence,
		Citations:         citations,
	}, nil
}

func (s *Synthesizer) direct(ctx context.Context, req contractx.SynthesisRequest) (contractx.Response, error) {
	var b strings.Builder
	writeContext(&b, req.Context)
	b.WriteString("No tools were needed for this request.\n\n")
	fmt.Fprintf(&b, "User request: %s", strings.TrimSpace(req.Query))

	text, err := s.generate(ctx, b.String())
	if err != nil {
		return contractx.Response{}, err
	}
	return contractx.Response{
		Text:              text,
		ContributingTools: []string{},
		Confidence:        1,
	}, nil
}

func (s *Synthesizer) factsInput(req contractx.SynthesisRequest, facts []stepFacts, unfinished []unfinishedStep) string {
	var b strings.Builder
	writeContext(&b, req.Context)

	b.WriteString("Tool facts (JSON):\n")
	b.WriteString(s.encode(facts))
	if len(unfinished) > 0 {
		b.WriteString("\n\nSub-tasks that could not be completed (JSON):\n")
		b.WriteString(s.encode(unfinished))
	}
	fmt.Fprintf(&b, "\n\nUser request: %s", strings.TrimSpace(req.Query))
	return b.String()
}

func (s *Synthesizer) encode(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if len(raw) > s.cfg.MaxFactBytes {
		cut := s.cfg.MaxFactBytes
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		return string(raw[:cut]) + " ...(truncated)"
	}
	return string(raw)
}

func (s *Synthesizer) generate(ctx context.Context, input string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	text, err := s.gen.Generate(ctx, s.systemPrompt, input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrSynthesis, err)
	}
	text = cleanReply(text)
	if text == "" {
		return "", fmt.Errorf("%w: model returned empty text", contractx.ErrSynthesis)
	}
	return text, nil
}

func writeContext(b *strings.Builder, conversation string) {
	if c := strings.TrimSpace(conversation); c != "" {
		fmt.Fprintf(b, "Conversation so far:\n%s\n\n", c)
	}
}

var replyPrefix = regexp.MustCompile(`(?i)^(response|answer|reply)\s*:\s*`)

// cleanReply strips labels and wrapping quotes some models put around the
// answer.
func cleanReply(text string) string {
	text = strings.TrimSpace(text)
	text = replyPrefix.ReplaceAllString(text, "")
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' && !strings.Contains(text[1:len(text)-1], `"`) {
		text = text[1 : len(text)-1]
	}
	return strings.TrimSpace(text)
}

func stepLabel(u unfinishedStep) string {
	if u.Description != "" {
		return fmt.Sprintf("%s (%s)", u.Description, u.Tool)
	}
	return u.Tool
}

// unmentioned returns the unfinished steps whose tool or description the
// text never names.
func unmentioned(text string, unfinished []unfinishedStep) []unfinishedStep {
	lower := strings.ToLower(text)
	var out []unfinishedStep
	for _, u := range unfinished {
		if strings.Contains(lower, strings.ToLower(u.Tool)) {
			continue
		}
		if u.Description != "" && strings.Contains(lower, strings.ToLower(u.Description)) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func unfinishedNote(missing []unfinishedStep) string {
	var b strings.Builder
	b.WriteString("Note: some parts of your request could not be completed:")
	for _, u := range missing {
		fmt.Fprintf(&b, "\n- %s: %s", stepLabel(u), u.Status)
		if u.Reason != "" {
			fmt.Fprintf(&b, " (%s)", u.Reason)
		}
	}
	return b.String()
}

func apology(query string, unfinished []unfinishedStep) contractx.Response {
	var b strings.Builder
	b.WriteString("I'm sorry, I couldn't complete your request")
	if q := strings.TrimSpace(query); q != "" {
		fmt.Fprintf(&b, " %q", q)
	}
	b.WriteString(". None of the steps needed to answer it succeeded:")
	for _, u := range unfinished {
		fmt.Fprintf(&b, "\n- %s: %s", stepLabel(u), u.Status)
		if u.Reason != "" {
			fmt.Fprintf(&b, " (%s)", u.Reason)
		}
	}
	b.WriteString("\nPlease try again in a moment or rephrase the request.")

	log.Info().Str("component", "synthesizer").Int("unfinished", len(unfinished)).Msg("no step succeeded, returning apology")
	return contractx.Response{
		Text:              b.String(),
		ContributingTools: []string{},
		Confidence:        0,
	}
}

func nonNil(tools []string) []string {
	if tools == nil {
		return []string{}
	}
	return tools
}
