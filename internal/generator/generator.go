// Package generator produces answers from prompts with a chat model.
//
// A generation outcome is a Result: either text or an error. Callers branch
// on Result.OK and convert to the user-facing "ERROR: ..." string with
// Display only when presenting or recording the answer.
package generator

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned when the model produces no content
	ErrEmptyResponse = errors.New("empty model response")
	// ErrMissingCredentials is returned at construction when no API key is set
	ErrMissingCredentials = errors.New("missing generation credentials")
)

// Generator turns a prompt into an answer.
type Generator interface {
	Generate(ctx context.Context, prompt string) Result
	Model() string
}

// Result is the outcome of one generation call.
type Result struct {
	Text string
	Err  error
}

// OK reports whether generation succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Display returns the answer text, or an "ERROR:" message on failure.
func (r Result) Display() string {
	switch {
	case r.Err == nil:
		return r.Text
	case errors.Is(r.Err, ErrEmptyResponse):
		return "ERROR: Empty model response."
	default:
		return fmt.Sprintf("ERROR: LLM call failed: %v", r.Err)
	}
}

// Failed wraps err as a failed Result.
func Failed(err error) Result {
	return Result{Err: err}
}
