package planner

import (
	"errors"
	"testing"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

func planOf(steps ...contractx.Step) contractx.ExecutionPlan {
	for i := range steps {
		steps[i].Index = i
	}
	return contractx.ExecutionPlan{ID: "p1", Steps: steps}
}

func TestValidateAcceptsBackwardReference(t *testing.T) {
	t.Parallel()

	plan := planOf(
		contractx.Step{Tool: "weather", Args: map[string]contractx.Argument{"city": contractx.Literal("Oslo")}},
		contractx.Step{Tool: "advice", Args: map[string]contractx.Argument{"temp": contractx.Ref(0, "temp")}},
	)
	if err := Validate(plan, testRegistry(t)); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	cases := map[string]contractx.ExecutionPlan{
		"self reference": planOf(
			contractx.Step{Tool: "advice", Args: map[string]contractx.Argument{"temp": contractx.Ref(0, "")}},
		),
		"forward reference": planOf(
			contractx.Step{Tool: "advice", Args: map[string]contractx.Argument{"temp": contractx.Ref(1, "temp")}},
			contractx.Step{Tool: "weather", Args: map[string]contractx.Argument{"city": contractx.Literal("Oslo")}},
		),
		"negative reference": planOf(
			contractx.Step{Tool: "advice", Args: map[string]contractx.Argument{"temp": contractx.Ref(-1, "")}},
		),
		"unknown tool": planOf(
			contractx.Step{Tool: "teleport"},
		),
		"missing required": planOf(
			contractx.Step{Tool: "weather", Args: map[string]contractx.Argument{"units": contractx.Literal("metric")}},
		),
		"unknown argument": planOf(
			contractx.Step{Tool: "weather", Args: map[string]contractx.Argument{
				"city": contractx.Literal("Oslo"),
				"mood": contractx.Literal("happy"),
			}},
		),
		"literal type mismatch": planOf(
			contractx.Step{Tool: "advice", Args: map[string]contractx.Argument{"temp": contractx.Literal("warm")}},
		),
	}

	reg := testRegistry(t)
	for name, plan := range cases {
		if err := Validate(plan, reg); !errors.Is(err, contractx.ErrPlanValidation) {
			t.Fatalf("%s: Validate() error = %v, want ErrPlanValidation", name, err)
		}
	}
}

func TestValidateEmptyPlan(t *testing.T) {
	t.Parallel()

	if err := Validate(contractx.ExecutionPlan{ID: "p"}, testRegistry(t)); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
