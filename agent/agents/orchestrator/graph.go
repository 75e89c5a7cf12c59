package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/tanpawarit/assistant-orchestrator/agent/nodes/orchestrator"
)

func (o *Orchestrator) compileRunGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(nodex.Stage("validate_request", func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		})),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("read_context",
		compose.InvokableLambda(nodex.Stage("read_context", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ReadContext(ctx, in, o.memory, o.cfg.ContextTokens)
		})),
	); err != nil {
		return nil, fmt.Errorf("add node read_context: %w", err)
	}

	if err := graph.AddLambdaNode("plan",
		compose.InvokableLambda(nodex.Stage("plan", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Plan(ctx, in, o.planner)
		})),
	); err != nil {
		return nil, fmt.Errorf("add node plan: %w", err)
	}

	if err := graph.AddLambdaNode("execute",
		compose.InvokableLambda(nodex.Stage("execute", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Execute(ctx, in, o.executor)
		})),
	); err != nil {
		return nil, fmt.Errorf("add node execute: %w", err)
	}

	if err := graph.AddLambdaNode("synthesize",
		compose.InvokableLambda(nodex.Stage("synthesize", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Synthesize(ctx, in, o.synthesizer, o.cfg.SynthesizeOnCancel)
		})),
	); err != nil {
		return nil, fmt.Errorf("add node synthesize: %w", err)
	}

	if err := graph.AddLambdaNode("append_turn",
		compose.InvokableLambda(nodex.Stage("append_turn", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AppendTurn(ctx, in, o.memory, o.hooks)
		})),
	); err != nil {
		return nil, fmt.Errorf("add node append_turn: %w", err)
	}

	if err := graph.AddLambdaNode("finalize",
		compose.InvokableLambda(nodex.Stage("finalize", func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.Finalize(in)
		})),
	); err != nil {
		return nil, fmt.Errorf("add node finalize: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "read_context"},
		{"read_context", "plan"},
		{"plan", "execute"},
		{"execute", "synthesize"},
		{"synthesize", "append_turn"},
		{"append_turn", "finalize"},
		{"finalize", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.run"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
