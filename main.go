package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/assistant-orchestrator/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	"github.com/tanpawarit/assistant-orchestrator/agent/executor"
	"github.com/tanpawarit/assistant-orchestrator/agent/history"
	llmx "github.com/tanpawarit/assistant-orchestrator/agent/llm"
	"github.com/tanpawarit/assistant-orchestrator/agent/memory"
	"github.com/tanpawarit/assistant-orchestrator/agent/planner"
	promptx "github.com/tanpawarit/assistant-orchestrator/agent/prompt"
	"github.com/tanpawarit/assistant-orchestrator/agent/synthesizer"
	toolx "github.com/tanpawarit/assistant-orchestrator/agent/tool"
	configx "github.com/tanpawarit/assistant-orchestrator/pkg/config"
	_ "github.com/tanpawarit/assistant-orchestrator/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/assistant-orchestrator/pkg/openrouter"
	qstashx "github.com/tanpawarit/assistant-orchestrator/pkg/qstash"
)

type AppConfig struct {
	SessionID string `envconfig:"SESSION_ID" default:"local"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")

	if llmCfg.Preflight {
		client := openrouterx.NewClient(llmCfg.OpenRouterFor(llmx.RolePlanner))
		if err := openrouterx.Preflight(ctx, client, llmCfg.ModelIDs()); err != nil {
			log.Fatal().Err(err).Msg("model preflight failed")
		}
	}

	models, err := llmx.NewModels(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build chat models")
	}

	prompts := promptx.LoadPromptSet()
	if err := prompts.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid prompt set")
	}

	tools := toolx.NewRegistry()
	tools.MustRegister(toolx.MathDescriptor())

	mem, err := newMemory(ctx, models, prompts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize memory")
	}

	pl, err := planner.New(ctx, models.For(llmx.RolePlanner), tools, prompts.Planner, *configx.MustNew[planner.Config]("PLANNER"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize planner")
	}
	ex, err := executor.New(tools, *configx.MustNew[executor.Config]("EXECUTOR"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize executor")
	}
	sy, err := synthesizer.New(ctx, models.For(llmx.RoleSynthesizer), prompts.Synthesizer, *configx.MustNew[synthesizer.Config]("SYNTHESIZER"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize synthesizer")
	}

	hooks, closeHooks := newHooks(ctx, mem, appCfg.SessionID)
	defer closeHooks()

	orch, err := orchestrator.New(orchestrator.Deps{
		Memory:      mem,
		Planner:     pl,
		Executor:    ex,
		Synthesizer: sy,
		Hooks:       hooks,
	}, *configx.MustNew[orchestrator.Config]("ORCHESTRATOR"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize orchestrator")
	}

	log.Info().Strs("tools", tools.Names()).Str("session_id", appCfg.SessionID).Msg("assistant ready")
	chat(ctx, orch, appCfg.SessionID)
}

func newMemory(ctx context.Context, models *llmx.Models, prompts promptx.PromptSet) (*memory.Manager, error) {
	var store memory.Store = memory.NewInMemoryStore()
	redisCfg := configx.MustNew[memory.UpstashRedisConfig]("UPSTASH_REDIS")
	if redisCfg.Enabled() {
		redisStore, err := memory.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			return nil, err
		}
		store = redisStore
	}

	summarizer, err := memory.NewLLMSummarizer(ctx, models.For(llmx.RoleSummarizer), prompts.Summarizer)
	if err != nil {
		return nil, err
	}
	return memory.NewManager(store, summarizer, *configx.MustNew[memory.Config]("MEMORY"))
}

func newHooks(ctx context.Context, mem contractx.Memory, sessionID string) ([]contractx.TurnHook, func()) {
	var hooks []contractx.TurnHook
	closers := []func(){}

	pgCfg := configx.MustNew[history.PostgresConfig]("HISTORY_PG")
	if pgCfg.Enabled() {
		db, err := history.OpenPostgres(*pgCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open history database")
		}
		turnLog, err := history.NewTurnLog(db, pgCfg.WriteTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize turn log")
		}
		if err := turnLog.Init(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare turn log table")
		}
		if _, err := history.Restore(ctx, turnLog, mem, sessionID, pgCfg.RestoreTurns); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to restore session from turn log")
		}
		hooks = append(hooks, turnLog)
		closers = append(closers, func() { _ = turnLog.Close() })
	}

	qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
	if qstashCfg.Enabled() {
		publisher, err := history.NewQStashPublisher(qstashx.MustNew(*qstashCfg), qstashCfg.Destination)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize turn publisher")
		}
		hooks = append(hooks, publisher)
	}

	return hooks, func() {
		for _, c := range closers {
			c()
		}
	}
}

func chat(ctx context.Context, orch *orchestrator.Orchestrator, sessionID string) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			fmt.Print("> ")
			continue
		}

		stream, err := orch.Run(ctx, sessionID, query)
		if err != nil {
			fmt.Printf("error: %v\n> ", err)
			continue
		}
		for ev := range stream.Events() {
			printEvent(ev)
		}
		if ctx.Err() != nil {
			return
		}
		fmt.Print("> ")
	}
}

func printEvent(ev contractx.ProgressEvent) {
	switch ev.Kind {
	case contractx.EventPlanStarted:
		if ev.TotalSteps > 0 {
			fmt.Printf("  planning done: %d step(s)\n", ev.TotalSteps)
		}
	case contractx.EventStepStarted:
		if ev.Status == contractx.StepRunning {
			fmt.Printf("  [%d/%d] %s running\n", ev.StepIndex+1, ev.TotalSteps, ev.Tool)
		}
	case contractx.EventStepFinished:
		line := fmt.Sprintf("  [%d/%d] %s %s", ev.StepIndex+1, ev.TotalSteps, ev.Tool, ev.Status)
		if ev.Error != "" {
			line += ": " + ev.Error
		}
		fmt.Println(line)
	case contractx.EventFinal:
		if ev.Response == nil {
			return
		}
		fmt.Println(ev.Response.Text)
		if len(ev.Response.ContributingTools) > 0 {
			fmt.Printf("  (tools: %s, confidence %.2f)\n", strings.Join(ev.Response.ContributingTools, ", "), ev.Response.Confidence)
		}
	}
}
