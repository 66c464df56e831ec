package model

import (
	"time"

	"ai-research-be/internal/protocol"
	"ai-research-be/pkg/workflow"
)

// Session is the caller-facing research session. The in-memory registry owns
// the live object; the durable mirror expires after 24 hours.
type Session struct {
	ID             string              `json:"id"`
	Topic          string              `json:"topic"`
	Clarifications []string            `json:"clarifications"`
	Stage          workflow.Stage      `json:"stage"`
	History        []protocol.Envelope `json:"history"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
