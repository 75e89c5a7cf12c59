package orchestratornode

import "context"

// StageError is the error a run stage returned, tagged with the stage name.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Stage tags errors returned by fn with the stage name.
func Stage[I, O any](name string, fn func(context.Context, I) (O, error)) func(context.Context, I) (O, error) {
	return func(ctx context.Context, in I) (O, error) {
		out, err := fn(ctx, in)
		if err != nil {
			return out, &StageError{Stage: name, Err: err}
		}
		return out, nil
	}
}
