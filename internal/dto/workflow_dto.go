package dto

import (
	"ai-research-be/pkg/workflow"
)

type WorkflowStatusParams struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type WorkflowStatusResult struct {
	SessionID    string                                     `json:"sessionId"`
	CurrentStage workflow.Stage                             `json:"currentStage"`
	Stages       map[workflow.Stage]*workflow.StageProgress `json:"stages"`
	Errors       []workflow.StageError                      `json:"errors"`
	Metadata     map[string]interface{}                     `json:"metadata,omitempty"`
}
