package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	toolx "github.com/tanpawarit/assistant-orchestrator/agent/tool"
)

// ToolLookup is the part of the tool registry the executor dispatches through.
type ToolLookup interface {
	Lookup(name string) (toolx.Descriptor, error)
}

// Executor runs plan steps strictly in order. Step failures are recorded and
// do not stop the plan unless FailFast is set.
type Executor struct {
	tools ToolLookup
	cfg   Config
	now   func() time.Time
}

var _ contractx.Executor = (*Executor)(nil)

func New(tools ToolLookup, cfg Config) (*Executor, error) {
	if tools == nil {
		return nil, errors.New("tool lookup is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Executor{tools: tools, cfg: cfg, now: time.Now}, nil
}

// Execute emits plan_started, then a step_started and a step_finished event
// for every step, then plan_finished. A skipped step is announced as pending
// and never as running. Cancellation is checked before each step; once seen,
// every remaining step is skipped.
func (e *Executor) Execute(ctx context.Context, plan contractx.ExecutionPlan, emit contractx.Emitter) contractx.ExecutionResult {
	start := e.now()
	total := len(plan.Steps)
	result := contractx.ExecutionResult{
		PlanID: plan.ID,
		Steps:  make([]contractx.StepResult, 0, total),
	}

	send := func(ev contractx.ProgressEvent) {
		if emit == nil {
			return
		}
		ev.PlanID = plan.ID
		ev.TotalSteps = total
		ev.At = e.now().UTC()
		emit(ev)
	}

	send(contractx.ProgressEvent{Kind: contractx.EventPlanStarted})

	halt := ""
	failed := false
	for i, step := range plan.Steps {
		if halt == "" && ctx.Err() != nil {
			halt = "run cancelled"
			result.Cancelled = true
		}

		var sr contractx.StepResult
		if halt != "" {
			sr = e.skip(i, step, halt, send)
		} else {
			sr = e.runStep(ctx, i, step, result.Steps, send)
		}
		result.Steps = append(result.Steps, sr)

		if sr.Status == contractx.StepFailed {
			failed = true
			if e.cfg.FailFast && halt == "" {
				halt = fmt.Sprintf("stopped after step %d failed", i)
			}
		}
	}

	result.OverallSuccess = !failed && !result.Cancelled
	result.TotalDuration = e.now().Sub(start)
	send(contractx.ProgressEvent{Kind: contractx.EventPlanFinished})

	log.Debug().
		Str("component", "executor").
		Str("plan_id", plan.ID).
		Bool("overall_success", result.OverallSuccess).
		Dur("duration", result.TotalDuration).
		Msg("plan executed")
	return result
}

func (e *Executor) skip(i int, step contractx.Step, reason string, send func(contractx.ProgressEvent)) contractx.StepResult {
	send(contractx.ProgressEvent{
		Kind:      contractx.EventStepStarted,
		StepIndex: i,
		Tool:      step.Tool,
		Status:    contractx.StepPending,
	})
	sr := contractx.StepResult{
		Index:       i,
		Tool:        step.Tool,
		Description: step.Description,
		Status:      contractx.StepSkipped,
		Error:       reason,
	}
	send(contractx.ProgressEvent{
		Kind:      contractx.EventStepFinished,
		StepIndex: i,
		Tool:      step.Tool,
		Status:    contractx.StepSkipped,
		Error:     reason,
	})
	return sr
}

func (e *Executor) runStep(
	ctx context.Context,
	i int,
	step contractx.Step,
	done []contractx.StepResult,
	send func(contractx.ProgressEvent),
) contractx.StepResult {
	desc, lookupErr := e.tools.Lookup(step.Tool)

	var args map[string]any
	var resolveErr error
	if lookupErr == nil {
		var blocked *blockedRef
		args, blocked, resolveErr = resolveArgs(desc, step, done)
		if blocked != nil {
			return e.skip(i, step, blocked.reason(), send)
		}
	}

	send(contractx.ProgressEvent{
		Kind:      contractx.EventStepStarted,
		StepIndex: i,
		Tool:      step.Tool,
		Status:    contractx.StepRunning,
	})

	started := e.now()
	var output any
	var err error
	switch {
	case lookupErr != nil:
		err = fmt.Errorf("%w: %v", contractx.ErrToolInvocation, lookupErr)
	case resolveErr != nil:
		err = fmt.Errorf("%w: resolve arguments: %v", contractx.ErrToolInvocation, resolveErr)
	default:
		output, err = e.invoke(ctx, desc, args)
	}

	sr := contractx.StepResult{
		Index:       i,
		Tool:        step.Tool,
		Description: step.Description,
		Duration:    e.now().Sub(started),
	}
	if err != nil {
		sr.Status = contractx.StepFailed
		sr.Err = err
		sr.Error = err.Error()
		log.Warn().Err(err).Str("component", "executor").Str("tool", step.Tool).Int("step", i).Msg("step failed")
	} else {
		sr.Status = contractx.StepSucceeded
		sr.Output = output
	}

	send(contractx.ProgressEvent{
		Kind:      contractx.EventStepFinished,
		StepIndex: i,
		Tool:      step.Tool,
		Status:    sr.Status,
		Output:    sr.Output,
		Error:     sr.Error,
	})
	return sr
}

type invokeOutcome struct {
	output any
	err    error
}

// invoke calls the tool under the step timeout. The executor stops waiting
// when the timeout or the run context ends, even if the tool ignores ctx.
func (e *Executor) invoke(ctx context.Context, desc toolx.Descriptor, args map[string]any) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ToolTimeout)
	defer cancel()

	done := make(chan invokeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeOutcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		out, err := desc.Invoke(callCtx, args)
		done <- invokeOutcome{output: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err == nil {
			return o.output, nil
		}
		if errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: tool=%s after %s", contractx.ErrToolTimeout, desc.Name, e.cfg.ToolTimeout)
		}
		return nil, fmt.Errorf("%w: tool=%s: %v", contractx.ErrToolInvocation, desc.Name, o.err)
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: tool=%s: %v", contractx.ErrToolInvocation, desc.Name, ctx.Err())
		}
		return nil, fmt.Errorf("%w: tool=%s after %s", contractx.ErrToolTimeout, desc.Name, e.cfg.ToolTimeout)
	}
}
