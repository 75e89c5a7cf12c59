package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

const cancelledText = "The request was cancelled before it could be completed."

// Synthesize produces the reply. A cancelled run ends with a failed response
// unless synthesizeOnCancel is set, in which case the partial result is
// synthesised outside the cancelled context.
func Synthesize(
	ctx context.Context,
	in *GraphState,
	synthesizer contractx.Synthesizer,
	synthesizeOnCancel bool,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if in.Result.Cancelled || ctx.Err() != nil {
		if !synthesizeOnCancel {
			in.Response = contractx.Response{
				Text:              cancelledText,
				ContributingTools: []string{},
				Failed:            true,
				Reason:            "run cancelled",
			}
			return in, nil
		}
		ctx = context.WithoutCancel(ctx)
	}

	resp, err := synthesizer.Synthesize(ctx, contractx.SynthesisRequest{
		Query:   in.Text,
		Context: in.Context.Text,
		Plan:    in.Plan,
		Result:  in.Result,
	})
	if err != nil {
		return nil, err
	}
	in.Response = resp
	return in, nil
}
