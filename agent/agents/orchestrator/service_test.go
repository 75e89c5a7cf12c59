package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	"github.com/tanpawarit/assistant-orchestrator/agent/executor"
	"github.com/tanpawarit/assistant-orchestrator/agent/llm/llmtest"
	"github.com/tanpawarit/assistant-orchestrator/agent/memory"
	nodex "github.com/tanpawarit/assistant-orchestrator/agent/nodes/orchestrator"
	"github.com/tanpawarit/assistant-orchestrator/agent/planner"
	"github.com/tanpawarit/assistant-orchestrator/agent/synthesizer"
	toolx "github.com/tanpawarit/assistant-orchestrator/agent/tool"
)

type stubSummarizer struct{}

func (stubSummarizer) Summarize(context.Context, string, []contractx.Turn, int) (string, error) {
	return "earlier small talk", nil
}

type recordingHook struct {
	mu    sync.Mutex
	turns []contractx.Turn
	err   error
}

func (h *recordingHook) OnTurnComplete(_ context.Context, _ string, turn contractx.Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	return h.err
}

func (h *recordingHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

type harness struct {
	reg          *toolx.Registry
	calls        map[string]*atomic.Int32
	plannerModel *llmtest.ScriptedModel
	synthModel   *llmtest.ScriptedModel
	mem          *memory.Manager
	hook         *recordingHook
	orch         *Orchestrator
}

type harnessOptions struct {
	plannerReplies []string
	synthReplies   []string
	cfg            Config
	hookErr        error
	extraTools     []toolx.Descriptor
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	h := &harness{
		reg:          toolx.NewRegistry(),
		calls:        map[string]*atomic.Int32{},
		plannerModel: llmtest.NewScriptedModel(opts.plannerReplies...),
		synthModel:   llmtest.NewScriptedModel(opts.synthReplies...),
		hook:         &recordingHook{err: opts.hookErr},
	}

	h.register(toolx.Descriptor{
		Name:         "weather",
		Description:  "Current weather for a city",
		RequiredArgs: []toolx.Param{{Name: "city", Type: toolx.ParamString}},
		Invoke: func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"city": args["city"], "temp": 18, "condition": "sunny"}, nil
		},
	})
	h.register(toolx.Descriptor{
		Name:         "recipe_search",
		Description:  "Find a recipe",
		RequiredArgs: []toolx.Param{{Name: "dish", Type: toolx.ParamString}},
		Invoke: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("recipe backend unavailable")
		},
	})
	h.register(toolx.Descriptor{
		Name:         "shopping_list",
		Description:  "Build a shopping list from a recipe",
		RequiredArgs: []toolx.Param{{Name: "ingredients", Type: toolx.ParamAny}},
		Invoke: func(context.Context, map[string]any) (any, error) {
			return []string{"flour"}, nil
		},
	})
	for _, d := range opts.extraTools {
		h.register(d)
	}

	mem, err := memory.NewManager(memory.NewInMemoryStore(), stubSummarizer{}, memory.DefaultConfig)
	if err != nil {
		t.Fatalf("memory.NewManager() error = %v", err)
	}
	h.mem = mem

	pl, err := planner.New(context.Background(), h.plannerModel, h.reg, "plan things", planner.DefaultConfig)
	if err != nil {
		t.Fatalf("planner.New() error = %v", err)
	}
	ex, err := executor.New(h.reg, executor.DefaultConfig)
	if err != nil {
		t.Fatalf("executor.New() error = %v", err)
	}
	sy, err := synthesizer.New(context.Background(), h.synthModel, "answer things", synthesizer.DefaultConfig)
	if err != nil {
		t.Fatalf("synthesizer.New() error = %v", err)
	}

	cfg := opts.cfg
	if cfg == (Config{}) {
		cfg = DefaultConfig
	}
	h.orch, err = New(Deps{
		Memory:      mem,
		Planner:     pl,
		Executor:    ex,
		Synthesizer: sy,
		Hooks:       []contractx.TurnHook{h.hook},
	}, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func (h *harness) register(d toolx.Descriptor) {
	counter := &atomic.Int32{}
	h.calls[d.Name] = counter
	invoke := d.Invoke
	d.Invoke = func(ctx context.Context, args map[string]any) (any, error) {
		counter.Add(1)
		return invoke(ctx, args)
	}
	h.reg.MustRegister(d)
}

func (h *harness) totalCalls() int32 {
	var n int32
	for _, c := range h.calls {
		n += c.Load()
	}
	return n
}

func collect(t *testing.T, s *Stream) []contractx.ProgressEvent {
	t.Helper()
	var events []contractx.ProgressEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("stream did not close, got %d events", len(events))
		}
	}
}

func finalOf(t *testing.T, events []contractx.ProgressEvent) contractx.Response {
	t.Helper()
	var finals []contractx.ProgressEvent
	for _, ev := range events {
		if ev.Kind == contractx.EventFinal {
			finals = append(finals, ev)
		}
	}
	if len(finals) != 1 {
		t.Fatalf("final events = %d, want 1", len(finals))
	}
	if events[len(events)-1].Kind != contractx.EventFinal {
		t.Fatalf("last event = %s, want final", events[len(events)-1].Kind)
	}
	if finals[0].Response == nil {
		t.Fatalf("final event without response")
	}
	return *finals[0].Response
}

func kinds(events []contractx.ProgressEvent) []contractx.EventKind {
	out := make([]contractx.EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestRunSingleToolWeather(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{
		plannerReplies: []string{`{"steps":[{"tool":"weather","args":{"city":"Warsaw"}}]}`},
		synthReplies:   []string{"It is 18 degrees and sunny in Warsaw."},
	})

	s, err := h.orch.Run(context.Background(), "session-a", "What's the weather in Warsaw?")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	events := collect(t, s)
	resp := finalOf(t, events)

	if resp.Failed || !strings.Contains(resp.Text, "Warsaw") || !strings.Contains(resp.Text, "sunny") {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !reflect.DeepEqual(resp.ContributingTools, []string{"weather"}) {
		t.Fatalf("ContributingTools = %v", resp.ContributingTools)
	}

	want := []contractx.EventKind{
		contractx.EventPlanStarted,
		contractx.EventStepStarted,
		contractx.EventStepFinished,
		contractx.EventPlanFinished,
		contractx.EventFinal,
	}
	if got := kinds(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}
	for i, ev := range events {
		if ev.Seq != i+1 {
			t.Fatalf("event %d seq = %d, want %d", i, ev.Seq, i+1)
		}
	}

	conv, err := h.mem.Snapshot(context.Background(), "session-a")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(conv.Turns) != 1 || conv.Turns[0].Reply != resp.Text {
		t.Fatalf("turn not recorded: %+v", conv.Turns)
	}
	if h.hook.count() != 1 || h.hook.turns[0].ID != conv.Turns[0].ID {
		t.Fatalf("hook did not receive the recorded turn")
	}
}

func TestRunFailedDependencyStillAnswers(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{
		plannerReplies: []string{`{"steps":[` +
			`{"tool":"recipe_search","args":{"dish":"pasta"}},` +
			`{"tool":"shopping_list","args":{"ingredients":{"$ref":{"step":0,"field":"ingredients"}}}}` +
			`]}`},
	})

	s, err := h.orch.Run(context.Background(), "session-b", "Find a pasta recipe and make a shopping list")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	events := collect(t, s)
	resp := finalOf(t, events)

	if resp.Failed || resp.Text == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.Contains(resp.Text, "recipe_search: failed") {
		t.Fatalf("response does not mention the failure:\n%s", resp.Text)
	}
	if h.calls["shopping_list"].Load() != 0 {
		t.Fatalf("dependent tool was invoked")
	}
	for _, ev := range events {
		if ev.StepIndex == 1 && ev.Status == contractx.StepRunning {
			t.Fatalf("dependent step reported running: %+v", ev)
		}
	}
	if h.synthModel.Calls() != 0 {
		t.Fatalf("synthesizer model called for an all-failed result")
	}
}

func TestRunEmptyPlanAnswersDirectly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{
		plannerReplies: []string{`{"steps":[]}`},
		synthReplies:   []string{"Hello! What can I do for you?"},
	})

	resp, err := h.orch.HandleMessage(context.Background(), "session-c", "Hello")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if resp.Failed || resp.Text == "" || len(resp.ContributingTools) != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if h.totalCalls() != 0 {
		t.Fatalf("tools invoked for an empty plan")
	}
}

func TestRunPlanningFailureEndsWithFailedFinal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{
		plannerReplies: []string{"no idea", "still no idea"},
	})

	s, err := h.orch.Run(context.Background(), "session-d", "do the thing")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	events := collect(t, s)
	resp := finalOf(t, events)

	if !resp.Failed || resp.Reason == "" || resp.Text == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.HasPrefix(resp.Reason, contractx.ErrPlanGeneration.Error()) || strings.Contains(resp.Reason, "node path") {
		t.Fatalf("Reason = %q, want the planner error alone", resp.Reason)
	}
	if len(events) != 1 {
		t.Fatalf("events = %v, want only the final event", kinds(events))
	}
	if h.totalCalls() != 0 || h.synthModel.Calls() != 0 {
		t.Fatalf("work done after planning failed")
	}
	if _, err := h.mem.Snapshot(context.Background(), "session-d"); !errors.Is(err, contractx.ErrContextNotFound) {
		t.Fatalf("failed run recorded a turn, Snapshot() error = %v", err)
	}
	if h.hook.count() != 0 {
		t.Fatalf("hook called for a failed run")
	}
}

func TestRunUnknownToolIsValidationFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{
		plannerReplies: []string{`{"steps":[{"tool":"weather","args":{"city":"Rome"}},{"tool":"teleport","args":{}}]}`},
	})

	resp, err := h.orch.HandleMessage(context.Background(), "session-e", "weather then teleport")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !resp.Failed {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if h.totalCalls() != 0 {
		t.Fatalf("tools invoked for an invalid plan")
	}
}

func TestRunRejectsForwardReferenceBeforeAnyTool(t *testing.T) {
	t.Parallel()

	for name, reply := range map[string]string{
		"forward": `{"steps":[` +
			`{"tool":"shopping_list","args":{"ingredients":{"$ref":{"step":1,"field":"condition"}}}},` +
			`{"tool":"weather","args":{"city":"Rome"}}` +
			`]}`,
		"self": `{"steps":[` +
			`{"tool":"weather","args":{"city":"Rome"}},` +
			`{"tool":"shopping_list","args":{"ingredients":{"$ref":{"step":1,"field":""}}}}` +
			`]}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, harnessOptions{plannerReplies: []string{reply}})
			resp, err := h.orch.HandleMessage(context.Background(), "session-k", "weather then shopping")
			if err != nil {
				t.Fatalf("HandleMessage() error = %v", err)
			}
			if !resp.Failed || !strings.HasPrefix(resp.Reason, contractx.ErrPlanValidation.Error()) {
				t.Fatalf("unexpected response: %+v", resp)
			}
			if h.totalCalls() != 0 {
				t.Fatalf("tools invoked = %d, want 0", h.totalCalls())
			}
			if h.synthModel.Calls() != 0 {
				t.Fatalf("synthesizer called for an invalid plan")
			}
		})
	}
}

func TestRunHookErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{
		plannerReplies: []string{`{"steps":[]}`},
		synthReplies:   []string{"Hi there."},
		hookErr:        errors.New("database is down"),
	})

	resp, err := h.orch.HandleMessage(context.Background(), "session-f", "Hi")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if resp.Failed || resp.Text != "Hi there." {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if h.hook.count() != 1 {
		t.Fatalf("hook calls = %d, want 1", h.hook.count())
	}
}

func TestRunSynthesisFailureIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{
		plannerReplies: []string{`{"steps":[{"tool":"weather","args":{"city":"Oslo"}}]}`},
	})
	h.synthModel.FailNext(errors.New("upstream 503"))

	resp, err := h.orch.HandleMessage(context.Background(), "session-g", "weather in Oslo")
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if !resp.Failed || resp.Reason == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if h.hook.count() != 0 {
		t.Fatalf("hook called for a failed run")
	}
}

func TestRunUsesConversationContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{
		plannerReplies: []string{`{"steps":[]}`, `{"steps":[]}`},
		synthReplies:   []string{"Nice to meet you, Ada.", "Your name is Ada."},
	})

	if _, err := h.orch.HandleMessage(context.Background(), "session-h", "My name is Ada"); err != nil {
		t.Fatalf("first HandleMessage() error = %v", err)
	}
	if _, err := h.orch.HandleMessage(context.Background(), "session-h", "What's my name?"); err != nil {
		t.Fatalf("second HandleMessage() error = %v", err)
	}
	for name, model := range map[string]*llmtest.ScriptedModel{"planner": h.plannerModel, "synthesizer": h.synthModel} {
		if !strings.Contains(model.LastInput(), "My name is Ada") {
			t.Fatalf("%s input lacks earlier turn:\n%s", name, model.LastInput())
		}
	}
}

func TestRunCancelledMidPlan(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, harnessOptions{
		plannerReplies: []string{`{"steps":[{"tool":"cancel_run","args":{}},{"tool":"weather","args":{"city":"Rome"}}]}`},
		extraTools: []toolx.Descriptor{{
			Name:        "cancel_run",
			Description: "Cancels the surrounding run",
			Invoke: func(context.Context, map[string]any) (any, error) {
				cancel()
				return "ok", nil
			},
		}},
	})

	s, err := h.orch.Run(ctx, "session-i", "cancel then weather")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	resp := finalOf(t, collect(t, s))

	if !resp.Failed {
		t.Fatalf("cancelled run did not fail: %+v", resp)
	}
	if h.calls["weather"].Load() != 0 {
		t.Fatalf("step after cancellation was invoked")
	}
	if h.synthModel.Calls() != 0 {
		t.Fatalf("synthesizer called for a cancelled run")
	}
}

func TestRunRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{})
	if _, err := h.orch.Run(context.Background(), "", "hello"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Run() error = %v, want ErrInvalidSession", err)
	}
	if _, err := h.orch.Run(context.Background(), "s", "   "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Run() error = %v, want ErrValidation", err)
	}
	if h.plannerModel.Calls() != 0 {
		t.Fatalf("planner called for invalid input")
	}
}

func TestStreamCloseReleasesProducer(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig
	cfg.EventBuffer = 0
	h := newHarness(t, harnessOptions{
		plannerReplies: []string{`{"steps":[{"tool":"weather","args":{"city":"Rome"}}]}`},
		synthReplies:   []string{"Sunny in Rome."},
		cfg:            cfg,
	})

	s, err := h.orch.Run(context.Background(), "session-j", "weather in Rome")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	s.Close()
	collect(t, s)
}

func TestNewRejectsContextBudgetAboveMemoryCeiling(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessOptions{})
	cfg := DefaultConfig
	cfg.ContextTokens = h.mem.Ceiling() + 1

	_, err := New(Deps{
		Memory:      h.mem,
		Planner:     h.orch.planner,
		Executor:    h.orch.executor,
		Synthesizer: h.orch.synthesizer,
	}, cfg)
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("New() error = %v, want ErrValidation", err)
	}
}

func TestFailureReasonUnwrapsStageError(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("%w: step 1 references step 2", contractx.ErrPlanValidation)
	wrapped := fmt.Errorf("[NodeRunError]\n%w\nnode path: [plan]", &nodex.StageError{Stage: "plan", Err: inner})

	resp := failedResponse(wrapped)
	if resp.Reason != inner.Error() {
		t.Fatalf("Reason = %q, want %q", resp.Reason, inner.Error())
	}
	if !strings.HasPrefix(resp.Text, "Sorry, I don't have the tools") {
		t.Fatalf("Text = %q", resp.Text)
	}
}
