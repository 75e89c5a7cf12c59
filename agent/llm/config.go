package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	openrouterx "github.com/tanpawarit/assistant-orchestrator/pkg/openrouter"
)

// Role names the pipeline stage a chat model serves.
type Role string

const (
	RolePlanner     Role = "planner"
	RoleSynthesizer Role = "synthesizer"
	RoleSummarizer  Role = "summarizer"
)

var Roles = []Role{RolePlanner, RoleSynthesizer, RoleSummarizer}

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
	Preflight          bool          `envconfig:"PREFLIGHT" split_words:"true" default:"false"`

	PlannerModel           string  `envconfig:"PLANNER_MODEL" split_words:"true"`
	SynthesizerModel       string  `envconfig:"SYNTHESIZER_MODEL" split_words:"true"`
	SummarizerModel        string  `envconfig:"SUMMARIZER_MODEL" split_words:"true"`
	PlannerTemperature     float32 `envconfig:"PLANNER_TEMPERATURE" split_words:"true" default:"0"`
	SynthesizerTemperature float32 `envconfig:"SYNTHESIZER_TEMPERATURE" split_words:"true" default:"-1"`
	SummarizerTemperature  float32 `envconfig:"SUMMARIZER_TEMPERATURE" split_words:"true" default:"0.2"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	if c.MaxCompletionToken <= 0 {
		return fmt.Errorf("%w: max completion token must be > 0", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model settings of a role. Empty model overrides
// and negative temperatures fall back to the defaults.
func (c Config) OpenRouterFor(role Role) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	var overrideModel string
	overrideTemp := float32(-1)
	switch role {
	case RolePlanner:
		overrideModel, overrideTemp = c.PlannerModel, c.PlannerTemperature
	case RoleSynthesizer:
		overrideModel, overrideTemp = c.SynthesizerModel, c.SynthesizerTemperature
	case RoleSummarizer:
		overrideModel, overrideTemp = c.SummarizerModel, c.SummarizerTemperature
	}
	if v := strings.TrimSpace(overrideModel); v != "" {
		modelName = v
	}
	if overrideTemp >= 0 {
		temp = overrideTemp
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

// ModelIDs returns the distinct model ids used across all roles.
func (c Config) ModelIDs() []string {
	seen := map[string]bool{}
	var ids []string
	for _, role := range Roles {
		id := c.OpenRouterFor(role).Model
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// Models holds one chat model per role.
type Models struct {
	byRole map[Role]einomodel.BaseChatModel
}

func NewModels(ctx context.Context, cfg Config) (*Models, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Models{byRole: make(map[Role]einomodel.BaseChatModel, len(Roles))}
	for _, role := range Roles {
		orCfg := cfg.OpenRouterFor(role)
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: build %s model: %v", contractx.ErrModelInvoke, role, err)
		}
		m.byRole[role] = chatModel
	}
	return m, nil
}

// NewStaticModels serves the same chat model for every role.
func NewStaticModels(chatModel einomodel.BaseChatModel) *Models {
	m := &Models{byRole: make(map[Role]einomodel.BaseChatModel, len(Roles))}
	for _, role := range Roles {
		m.byRole[role] = chatModel
	}
	return m
}

func (m *Models) For(role Role) einomodel.BaseChatModel {
	if m == nil {
		return nil
	}
	return m.byRole[role]
}
