package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Evaluator abstracts structured-output language model providers.
// Implementations must return syntactically valid JSON or an error.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvalRequest) (json.RawMessage, error)
}

// EvalRequest captures the inputs for one structured evaluation call.
type EvalRequest struct {
	SystemPrompt string
	UserPrompt   string
}

// ErrNotImplemented is returned by the placeholder evaluator.
var ErrNotImplemented = errors.New("evaluator not implemented")

// PlaceholderEvaluator is a stub implementation until provider wiring is added.
type PlaceholderEvaluator struct{}

// Evaluate returns ErrNotImplemented.
func (PlaceholderEvaluator) Evaluate(ctx context.Context, req EvalRequest) (json.RawMessage, error) {
	_ = ctx
	_ = req
	return nil, ErrNotImplemented
}
