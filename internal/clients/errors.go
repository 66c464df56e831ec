package clients

import "fmt"

// DownstreamError marks a sibling service failure (crawler, code developer,
// doc generator) so the caller can record it against the owning stage.
type DownstreamError struct {
	Service string
	Err     error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("%s service: %v", e.Service, e.Err)
}

func (e *DownstreamError) Unwrap() error {
	return e.Err
}
