package service

import (
	"context"
	"errors"

	"ai-research-be/internal/dto"
	"ai-research-be/pkg/workflow"
)

type IWorkflowService interface {
	Status(ctx context.Context, sessionID string) (*dto.WorkflowStatusResult, error)
}

type workflowService struct {
	wf *workflow.Manager
}

func NewWorkflowService(wf *workflow.Manager) IWorkflowService {
	return &workflowService{wf: wf}
}

// Status reports the full stage table for the session's workflow. Stage
// failures stay visible here without the original caller's connection. The
// result is a snapshot: background stages keep mutating the live state while
// the transport layer encodes this.
func (s *workflowService) Status(ctx context.Context, sessionID string) (*dto.WorkflowStatusResult, error) {
	state, err := s.wf.Snapshot(ctx, sessionID)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return nil, &NotFoundError{Resource: "workflow", ID: sessionID}
		}
		return nil, err
	}

	return &dto.WorkflowStatusResult{
		SessionID:    state.SessionID,
		CurrentStage: state.CurrentStage,
		Stages:       state.Stages,
		Errors:       state.Errors,
		Metadata:     state.Metadata,
	}, nil
}
