package contract

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

func (s StepStatus) Terminal() bool {
	return s == StepSucceeded || s == StepFailed || s == StepSkipped
}

// StepRef points at the output of an earlier step. Field is a gjson path into
// the JSON form of that output; empty means the whole output.
type StepRef struct {
	Step  int    `json:"step"`
	Field string `json:"field,omitempty"`
}

func (r StepRef) String() string {
	if r.Field == "" {
		return fmt.Sprintf("steps[%d]", r.Step)
	}
	return fmt.Sprintf("steps[%d].%s", r.Step, r.Field)
}

// Argument is either a literal value or a back-reference, never both.
type Argument struct {
	Value any
	Ref   *StepRef
}

func Literal(v any) Argument {
	return Argument{Value: v}
}

func Ref(step int, field string) Argument {
	return Argument{Ref: &StepRef{Step: step, Field: field}}
}

func (a Argument) IsRef() bool {
	return a.Ref != nil
}

type refEnvelope struct {
	Ref *StepRef `json:"$ref"`
}

func (a Argument) MarshalJSON() ([]byte, error) {
	if a.Ref != nil {
		return json.Marshal(refEnvelope{Ref: a.Ref})
	}
	return json.Marshal(a.Value)
}

func (a *Argument) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, `"$ref"`) {
		var env refEnvelope
		if err := json.Unmarshal(data, &env); err == nil && env.Ref != nil {
			a.Ref = env.Ref
			a.Value = nil
			return nil
		}
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	a.Value = v
	a.Ref = nil
	return nil
}

type Step struct {
	Index       int                 `json:"index"`
	Tool        string              `json:"tool"`
	Args        map[string]Argument `json:"args,omitempty"`
	Description string              `json:"description,omitempty"`
	Status      StepStatus          `json:"status"`
}

// ArgNames returns the argument names in sorted order.
func (s Step) ArgNames() []string {
	return slices.Sorted(maps.Keys(s.Args))
}

// Refs returns the back-references of the step ordered by argument name.
func (s Step) Refs() []StepRef {
	var refs []StepRef
	for _, name := range s.ArgNames() {
		if arg := s.Args[name]; arg.Ref != nil {
			refs = append(refs, *arg.Ref)
		}
	}
	return refs
}

// ExecutionPlan is an ordered list of steps; zero steps means the query is
// answered directly from context.
type ExecutionPlan struct {
	ID        string    `json:"plan_id"`
	Query     string    `json:"original_query"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
}

func (p ExecutionPlan) IsEmpty() bool {
	return len(p.Steps) == 0
}

// StepResult is immutable once the step reaches a terminal status.
type StepResult struct {
	Index       int           `json:"step_index"`
	Tool        string        `json:"tool"`
	Description string        `json:"description,omitempty"`
	Status      StepStatus    `json:"status"`
	Output      any           `json:"output,omitempty"`
	Error       string        `json:"error,omitempty"`
	Err         error         `json:"-"`
	Duration    time.Duration `json:"duration"`
}

type ExecutionResult struct {
	PlanID         string        `json:"plan_id"`
	Steps          []StepResult  `json:"steps"`
	OverallSuccess bool          `json:"overall_success"`
	Cancelled      bool          `json:"cancelled,omitempty"`
	TotalDuration  time.Duration `json:"total_duration"`
}

// Counts returns how many steps ended in each terminal status.
func (r ExecutionResult) Counts() (succeeded, failed, skipped int) {
	for _, s := range r.Steps {
		switch s.Status {
		case StepSucceeded:
			succeeded++
		case StepFailed:
			failed++
		case StepSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

func (r ExecutionResult) Summary() string {
	succeeded, failed, skipped := r.Counts()
	var b strings.Builder
	fmt.Fprintf(&b, "plan=%s steps=%d succeeded=%d failed=%d skipped=%d duration=%s",
		r.PlanID, len(r.Steps), succeeded, failed, skipped, r.TotalDuration.Round(time.Millisecond))
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "\n  [%d] %s %s (%s)", s.Index, s.Tool, s.Status, s.Duration.Round(time.Millisecond))
		if s.Error != "" {
			fmt.Fprintf(&b, ": %s", s.Error)
		}
	}
	return b.String()
}

type Citation struct {
	StepIndex int    `json:"step_index"`
	Tool      string `json:"tool"`
}

type Response struct {
	Text              string     `json:"text"`
	ContributingTools []string   `json:"contributing_tools"`
	Confidence        float64    `json:"confidence"`
	Citations         []Citation `json:"citations,omitempty"`

	// Failed marks a terminal failure of the whole run; Reason is human-readable.
	Failed bool   `json:"failed,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Turn is one completed exchange in a session.
type Turn struct {
	ID    string    `json:"id"`
	Query string    `json:"query"`
	Reply string    `json:"reply"`
	Tools []string  `json:"tools,omitempty"`
	At    time.Time `json:"at"`
}

// ContextView is the bounded, read-only view of a conversation handed to the
// planner and synthesizer.
type ContextView struct {
	Summary       string `json:"summary,omitempty"`
	Turns         []Turn `json:"turns,omitempty"`
	Text          string `json:"text"`
	TokenEstimate int    `json:"token_estimate"`
}

type EventKind string

const (
	EventPlanStarted  EventKind = "plan_started"
	EventStepStarted  EventKind = "step_started"
	EventStepFinished EventKind = "step_finished"
	EventPlanFinished EventKind = "plan_finished"
	EventFinal        EventKind = "final"
)

type ProgressEvent struct {
	Seq        int        `json:"seq"`
	Kind       EventKind  `json:"kind"`
	PlanID     string     `json:"plan_id,omitempty"`
	StepIndex  int        `json:"step_index"`
	TotalSteps int        `json:"total_steps"`
	Tool       string     `json:"tool,omitempty"`
	Status     StepStatus `json:"status,omitempty"`
	Output     any        `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	Response   *Response  `json:"response,omitempty"`
	At         time.Time  `json:"at"`
}

// Emitter receives progress events in order. It must not block for long.
type Emitter func(ProgressEvent)
