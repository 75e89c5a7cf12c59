package executor

import (
	"encoding/json"
	"fmt"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	toolx "github.com/tanpawarit/assistant-orchestrator/agent/tool"
	"github.com/tidwall/gjson"
)

// blockedRef reports a back-reference to a step that did not succeed.
type blockedRef struct {
	ref    contractx.StepRef
	status contractx.StepStatus
}

func (b *blockedRef) reason() string {
	return fmt.Sprintf("depends on step %d which %s", b.ref.Step, b.status)
}

// resolveArgs replaces back-references with values from earlier results and
// fills optional defaults. A reference to a step that did not succeed is
// returned as a blockedRef and the step must be skipped; this is decided
// before any field is read, so a blocked step never fails.
func resolveArgs(desc toolx.Descriptor, step contractx.Step, done []contractx.StepResult) (map[string]any, *blockedRef, error) {
	for _, ref := range step.Refs() {
		if ref.Step < 0 || ref.Step >= len(done) {
			return nil, nil, fmt.Errorf("reference to step %d which has not run", ref.Step)
		}
		if prior := done[ref.Step]; prior.Status != contractx.StepSucceeded {
			return nil, &blockedRef{ref: ref, status: prior.Status}, nil
		}
	}

	args := make(map[string]any, len(step.Args))
	for _, name := range step.ArgNames() {
		arg := step.Args[name]
		if !arg.IsRef() {
			args[name] = arg.Value
			continue
		}

		ref := *arg.Ref
		value, err := lookupField(done[ref.Step].Output, ref.Field)
		if err != nil {
			return nil, nil, fmt.Errorf("argument %q: %w", name, err)
		}
		if p, _, ok := desc.Param(name); ok && !p.Type.Matches(value) {
			return nil, nil, fmt.Errorf("argument %q from %s is not %s", name, ref, p.Type)
		}
		args[name] = value
	}
	return toolx.ApplyDefaults(desc, args), nil, nil
}

// lookupField reads a gjson path from the JSON form of output. An empty path
// returns output unchanged.
func lookupField(output any, field string) (any, error) {
	if field == "" {
		return output, nil
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return nil, fmt.Errorf("encode step output: %w", err)
	}
	res := gjson.GetBytes(raw, field)
	if !res.Exists() {
		return nil, fmt.Errorf("field %q not found in step output", field)
	}
	return res.Value(), nil
}
