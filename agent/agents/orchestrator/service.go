package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	nodex "github.com/tanpawarit/assistant-orchestrator/agent/nodes/orchestrator"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
	ErrStreamClosed   = errors.New("stream closed before the final event")
)

type Deps struct {
	Memory      contractx.Memory
	Planner     contractx.Planner
	Executor    contractx.Executor
	Synthesizer contractx.Synthesizer
	Hooks       []contractx.TurnHook
}

// Orchestrator runs one plan -> execute -> synthesize pass per message.
type Orchestrator struct {
	memory      contractx.Memory
	planner     contractx.Planner
	executor    contractx.Executor
	synthesizer contractx.Synthesizer
	hooks       []contractx.TurnHook
	cfg         Config

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Memory == nil {
		return nil, errors.New("memory manager is required")
	}
	if deps.Planner == nil {
		return nil, errors.New("planner is required")
	}
	if deps.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if deps.Synthesizer == nil {
		return nil, errors.New("synthesizer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c, ok := deps.Memory.(interface{ Ceiling() int }); ok && cfg.ContextTokens > c.Ceiling() {
		return nil, fmt.Errorf("%w: orchestrator context tokens %d exceed the memory ceiling %d",
			contractx.ErrValidation, cfg.ContextTokens, c.Ceiling())
	}

	o := &Orchestrator{
		memory:      deps.Memory,
		planner:     deps.Planner,
		executor:    deps.Executor,
		synthesizer: deps.Synthesizer,
		hooks:       deps.Hooks,
		cfg:         cfg,
		now:         time.Now,
	}

	graphRunner, err := o.compileRunGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Stream is the ordered event sequence of one run. It ends with exactly one
// final event and is then closed. A consumer that stops reading early must
// call Close.
type Stream struct {
	events chan contractx.ProgressEvent
	done   chan struct{}
	once   sync.Once
}

func (s *Stream) Events() <-chan contractx.ProgressEvent {
	return s.events
}

// Close releases the producer. Events not yet read are dropped.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Stream) send(ev contractx.ProgressEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Wait drains the stream and returns its final response.
func (s *Stream) Wait() (contractx.Response, error) {
	var final *contractx.Response
	for ev := range s.events {
		if ev.Kind == contractx.EventFinal && ev.Response != nil {
			resp := *ev.Response
			final = &resp
		}
	}
	if final == nil {
		return contractx.Response{}, ErrStreamClosed
	}
	return *final, nil
}

// Run validates the request and starts the run in the background. Input
// errors are returned directly; every later failure arrives as a failed
// final event.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, query string) (*Stream, error) {
	if _, err := nodex.ValidateRequest(nodex.GraphInput{SessionID: sessionID, Text: query}, o.now); err != nil {
		return nil, err
	}

	s := &Stream{
		events: make(chan contractx.ProgressEvent, o.cfg.EventBuffer),
		done:   make(chan struct{}),
	}
	go o.run(ctx, s, sessionID, query)
	return s, nil
}

func (o *Orchestrator) run(ctx context.Context, s *Stream, sessionID string, query string) {
	defer close(s.events)

	seq := 0
	emit := func(ev contractx.ProgressEvent) {
		seq++
		ev.Seq = seq
		if ev.At.IsZero() {
			ev.At = o.now().UTC()
		}
		s.send(ev)
	}

	logger := log.With().Str("component", "orchestrator").Str("session_id", sessionID).Logger()
	started := o.now()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      query,
		Emit:      emit,
	})

	final := contractx.ProgressEvent{Kind: contractx.EventFinal}
	if err != nil {
		resp := failedResponse(err)
		final.Response = &resp
		logger.Error().Err(err).Dur("duration", o.now().Sub(started)).Msg("run failed")
	} else {
		final.PlanID = out.Plan.ID
		final.TotalSteps = len(out.Plan.Steps)
		final.Response = &out.Response
		logger.Info().
			Str("plan_id", out.Plan.ID).
			Bool("failed", out.Response.Failed).
			Strs("tools", out.Response.ContributingTools).
			Float64("confidence", out.Response.Confidence).
			Dur("duration", o.now().Sub(started)).
			Msg("run finished")
	}
	emit(final)
}

// HandleMessage runs a message to completion and returns the final response.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, query string) (contractx.Response, error) {
	s, err := o.Run(ctx, sessionID, query)
	if err != nil {
		return contractx.Response{}, err
	}
	return s.Wait()
}

func failedResponse(err error) contractx.Response {
	return contractx.Response{
		Text:              failureText(err),
		ContributingTools: []string{},
		Failed:            true,
		Reason:            failureReason(err),
	}
}

// failureReason is the message of the error a stage returned, without the
// graph runtime framing around it.
func failureReason(err error) string {
	var stageErr *nodex.StageError
	switch {
	case errors.As(err, &stageErr):
		return stageErr.Err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "run cancelled"
	default:
		return err.Error()
	}
}

func failureText(err error) string {
	switch {
	case errors.Is(err, contractx.ErrPlanGeneration):
		return "Sorry, I couldn't work out how to handle that request. Please try rephrasing it."
	case errors.Is(err, contractx.ErrPlanValidation), errors.Is(err, contractx.ErrUnknownTool):
		return "Sorry, I don't have the tools needed to handle that request."
	case errors.Is(err, contractx.ErrSynthesis):
		return "Sorry, I ran into a problem while writing the answer. Please try again."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled before it could be completed."
	default:
		return "Sorry, something went wrong while handling your request."
	}
}
