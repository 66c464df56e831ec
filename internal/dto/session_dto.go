package dto

import (
	"time"

	"ai-research-be/pkg/workflow"
)

type CreateSessionRequest struct {
	Topic string `json:"topic" validate:"required"`
}

type SessionResponse struct {
	ID        string         `json:"id"`
	Topic     string         `json:"topic"`
	Stage     workflow.Stage `json:"stage"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
