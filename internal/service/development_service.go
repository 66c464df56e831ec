package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-research-be/internal/clients"
	"ai-research-be/internal/dto"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository"
	"ai-research-be/internal/repository/contract"
	"ai-research-be/pkg/workflow"
)

const (
	// Failed test runs are retried this many times with a fixed delay,
	// regardless of why they failed.
	maxTestAttempts = 3
	testRetryDelay  = 2 * time.Second
)

type IDevelopmentService interface {
	Start(ctx context.Context, sessionID, language string) (*dto.StartDevelopmentResult, error)
	RunTests(ctx context.Context, sessionID string) (*dto.RunTestsResult, error)
}

type developmentService struct {
	wf        *workflow.Manager
	research  IResearchService
	developer clients.ICodeDeveloperClient
	store     contract.DurableStore
	logger    logger.ILogger
}

func NewDevelopmentService(
	wf *workflow.Manager,
	research IResearchService,
	developer clients.ICodeDeveloperClient,
	store contract.DurableStore,
	log logger.ILogger,
) IDevelopmentService {
	return &developmentService{
		wf:        wf,
		research:  research,
		developer: developer,
		store:     store,
		logger:    log,
	}
}

// Start creates a project, generates code against the research findings and
// runs an initial test pass. Completion advances the workflow into testing.
func (s *developmentService) Start(ctx context.Context, sessionID, language string) (*dto.StartDevelopmentResult, error) {
	results, err := s.research.Results(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.wf.Advance(ctx, sessionID, workflow.StageDevelopment); err != nil {
		return nil, err
	}
	s.wf.StartStage(ctx, sessionID, workflow.StageDevelopment)

	if language == "" {
		language = "python"
	}

	project, err := s.developer.CreateProject(ctx, results.Topic, language)
	if err != nil {
		s.wf.FailStage(ctx, sessionID, workflow.StageDevelopment, err)
		return nil, err
	}
	detail := &workflow.DevelopmentDetail{ProjectID: project.ID}
	s.wf.SetMetadata(ctx, sessionID, "project_id", project.ID)
	s.wf.UpdateProgress(ctx, sessionID, workflow.StageDevelopment, 25, detail)

	findings := map[string]interface{}{
		"topic":     results.Topic,
		"synthesis": results.Synthesis,
		"plan":      results.Plan,
	}
	codeGen, err := s.developer.GenerateCode(ctx, project.ID, findings)
	if err != nil {
		s.wf.FailStage(ctx, sessionID, workflow.StageDevelopment, err)
		return nil, err
	}
	detail.FilesGenerated = codeGen.FilesGenerated
	s.wf.UpdateProgress(ctx, sessionID, workflow.StageDevelopment, 70, detail)

	initial, err := s.runTestsWithRetry(ctx, sessionID, project.ID)
	if err != nil {
		s.wf.FailStage(ctx, sessionID, workflow.StageDevelopment, err)
		return nil, err
	}

	s.wf.CompleteStage(ctx, sessionID, workflow.StageDevelopment, detail)
	// The initial test pass done, the workflow moves into testing
	// implicitly.
	if err := s.wf.Advance(ctx, sessionID, workflow.StageTesting); err != nil {
		return nil, err
	}

	return &dto.StartDevelopmentResult{
		Stage:          string(workflow.StageTesting),
		ProjectID:      project.ID,
		FilesGenerated: codeGen.FilesGenerated,
		InitialTests:   initial,
	}, nil
}

// RunTests executes the project's tests, retrying any failing run up to the
// attempt bound, and persists the outcome.
func (s *developmentService) RunTests(ctx context.Context, sessionID string) (*dto.RunTestsResult, error) {
	state, err := s.wf.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, &NotFoundError{Resource: "workflow", ID: sessionID}
	}
	projectID, _ := state.Metadata["project_id"].(string)
	if projectID == "" {
		return nil, &NotFoundError{Resource: "project", ID: sessionID}
	}

	s.wf.StartStage(ctx, sessionID, workflow.StageTesting)

	summary, err := s.runTestsWithRetry(ctx, sessionID, projectID)
	if err != nil {
		s.wf.FailStage(ctx, sessionID, workflow.StageTesting, err)
		return nil, err
	}

	data, _ := json.Marshal(summary)
	if err := s.store.Set(ctx, repository.TestResultKeyPrefix+sessionID, data, repository.TestResultTTL); err != nil {
		s.logger.Warn("Development", "Failed to persist test results", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}

	testDetail := &workflow.TestingDetail{
		Passed:   summary.Passed,
		Failed:   summary.Failed,
		Attempts: summary.Attempts,
	}
	if summary.Failed > 0 {
		s.wf.RecordError(ctx, sessionID, workflow.StageTesting,
			"tests still failing after retries")
		s.wf.UpdateProgress(ctx, sessionID, workflow.StageTesting, 90, testDetail)
	} else {
		s.wf.CompleteStage(ctx, sessionID, workflow.StageTesting, testDetail)
	}

	return &dto.RunTestsResult{
		Stage:   string(workflow.StageTesting),
		Results: summary,
	}, nil
}

// runTestsWithRetry reruns on any non-zero failure count, up to the bound.
func (s *developmentService) runTestsWithRetry(ctx context.Context, sessionID, projectID string) (*dto.TestRunSummary, error) {
	var last *clients.TestRunResult

	for attempt := 1; attempt <= maxTestAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(testRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		run, err := s.developer.RunTests(ctx, projectID)
		if err != nil {
			return nil, err
		}
		last = run

		if run.Failed == 0 {
			return &dto.TestRunSummary{Passed: run.Passed, Failed: 0, Attempts: attempt}, nil
		}
		s.logger.Warn("Development", "Test run had failures, retrying", map[string]interface{}{
			"session_id": sessionID,
			"project_id": projectID,
			"attempt":    attempt,
			"failed":     run.Failed,
		})
	}

	return &dto.TestRunSummary{Passed: last.Passed, Failed: last.Failed, Attempts: maxTestAttempts}, nil
}
