package synthesizer

import (
	"encoding/json"
	"slices"
	"strings"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
	"github.com/tidwall/gjson"
)

const minLeafLen = 2

// attribute returns the succeeded steps whose tool name or any output value
// appears in text. Membership only; no deeper provenance.
func attribute(text string, steps []contractx.StepResult) ([]string, []contractx.Citation) {
	lower := strings.ToLower(text)
	seen := map[string]bool{}
	var tools []string
	var citations []contractx.Citation

	for _, sr := range steps {
		if sr.Status != contractx.StepSucceeded {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(sr.Tool)) && !mentionsOutput(lower, sr.Output) {
			continue
		}
		citations = append(citations, contractx.Citation{StepIndex: sr.Index, Tool: sr.Tool})
		if !seen[sr.Tool] {
			seen[sr.Tool] = true
			tools = append(tools, sr.Tool)
		}
	}
	slices.Sort(tools)
	return tools, citations
}

func mentionsOutput(lowerText string, output any) bool {
	raw, err := json.Marshal(output)
	if err != nil {
		return false
	}
	found := false
	walkLeaves(gjson.ParseBytes(raw), func(leaf string) bool {
		if len([]rune(leaf)) >= minLeafLen && strings.Contains(lowerText, strings.ToLower(leaf)) {
			found = true
			return false
		}
		return true
	})
	return found
}

// walkLeaves visits string and number leaves of a JSON value until visit
// returns false.
func walkLeaves(v gjson.Result, visit func(string) bool) bool {
	switch {
	case v.IsObject() || v.IsArray():
		keepGoing := true
		v.ForEach(func(_, child gjson.Result) bool {
			keepGoing = walkLeaves(child, visit)
			return keepGoing
		})
		return keepGoing
	case v.Type == gjson.String:
		return visit(strings.TrimSpace(v.String()))
	case v.Type == gjson.Number:
		return visit(v.Raw)
	default:
		return true
	}
}
