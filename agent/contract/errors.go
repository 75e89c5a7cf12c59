package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	// Tool registry.
	ErrDuplicateTool     = errors.New("tool already registered")
	ErrInvalidDescriptor = errors.New("invalid tool descriptor")
	ErrUnknownTool       = errors.New("unknown tool")

	// Planning aborts the run before any tool is invoked.
	ErrPlanGeneration = errors.New("plan generation failed")
	ErrPlanValidation = errors.New("plan validation failed")

	// Step-local; recorded in StepResult.
	ErrToolTimeout    = errors.New("tool timed out")
	ErrToolInvocation = errors.New("tool invocation failed")

	ErrSynthesis = errors.New("synthesis failed")

	ErrSummarization   = errors.New("context summarization failed")
	ErrContextNotFound = errors.New("conversation context not found")
)
