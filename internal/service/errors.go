package service

import "fmt"

// ValidationError marks a malformed caller request. It maps to the
// invalid-request protocol code before reaching business logic.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError marks an unknown session, workflow or project identifier.
// Never fatal to the process.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}
