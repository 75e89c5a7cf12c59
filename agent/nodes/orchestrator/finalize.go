package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

func Finalize(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	resp := in.Response
	resp.Text = strings.TrimSpace(resp.Text)
	if !resp.Failed && resp.Text == "" {
		return GraphOutput{}, fmt.Errorf("%w: empty reply", contractx.ErrSynthesis)
	}
	if resp.ContributingTools == nil {
		resp.ContributingTools = []string{}
	}

	return GraphOutput{
		Plan:     in.Plan,
		Result:   in.Result,
		Response: resp,
		Turn:     in.Turn,
	}, nil
}
