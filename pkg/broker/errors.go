package broker

import "fmt"

// GenerationError is returned once all retries against the backend are
// exhausted. Attempts names how many calls were made.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ParseError means the backend call itself succeeded but structured-output
// mode produced text that does not parse. It is terminal, never retried.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse generated output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
