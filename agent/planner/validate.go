package planner

import (
	"fmt"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	toolx "github.com/tanpawarit/assistant-orchestrator/agent/tool"
)

// ToolLookup is the part of the tool registry validation needs.
type ToolLookup interface {
	Lookup(name string) (toolx.Descriptor, error)
}

// Validate checks a plan against the registry before anything runs. Steps
// may only reference strictly earlier steps, which also rules out cycles.
func Validate(plan contractx.ExecutionPlan, tools ToolLookup) error {
	for i, step := range plan.Steps {
		if step.Index != i {
			return fmt.Errorf("%w: step at position %d has index %d", contractx.ErrPlanValidation, i, step.Index)
		}

		desc, err := tools.Lookup(step.Tool)
		if err != nil {
			return fmt.Errorf("%w: step %d: %v", contractx.ErrPlanValidation, i, err)
		}
		if err := toolx.ValidateArgs(desc, step.Args); err != nil {
			return fmt.Errorf("%w: step %d: %v", contractx.ErrPlanValidation, i, err)
		}

		for _, ref := range step.Refs() {
			if ref.Step < 0 || ref.Step >= i {
				return fmt.Errorf("%w: step %d references %s; only earlier steps may be referenced",
					contractx.ErrPlanValidation, i, ref)
			}
		}
	}
	return nil
}
