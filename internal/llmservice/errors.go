package llmservice

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLLMInvocation     = errors.New("failed to invoke LLM")
	ErrLLMUnavailable    = errors.New("LLM unavailable")
	ErrUnsupportedClient = errors.New("client exposes no supported calling convention")
	ErrEmptyResponse     = errors.New("LLM returned no content")
)

// InvocationError is returned when every calling convention failed.
// Attempts names the conventions in the order they were tried.
type InvocationError struct {
	Attempts []string
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%v after trying %s: %v", ErrLLMInvocation, strings.Join(e.Attempts, ", "), e.Err)
}

func (e *InvocationError) Unwrap() []error { return []error{ErrLLMInvocation, e.Err} }
