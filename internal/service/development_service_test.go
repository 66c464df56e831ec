package service

import (
	"context"
	"testing"

	"ai-research-be/pkg/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevelopmentStartGeneratesAndTests(t *testing.T) {
	f := newFixture()
	sessionID := f.newSession("transformer forecasting")
	require.NoError(t, f.runToResearch(sessionID))

	res, err := f.development.Start(context.Background(), sessionID, "python")
	require.NoError(t, err)

	assert.Equal(t, string(workflow.StageTesting), res.Stage)
	assert.Equal(t, "proj-1", res.ProjectID)
	assert.Equal(t, 4, res.FilesGenerated)
	require.NotNil(t, res.InitialTests)
	assert.Zero(t, res.InitialTests.Failed)

	state, err := f.wf.Get(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, state.Stages[workflow.StageDevelopment].Status)
	assert.Equal(t, "proj-1", state.Metadata["project_id"])
}

func TestDevelopmentStartWithoutResearchResults(t *testing.T) {
	f := newFixture()
	sessionID := f.newSession("transformer forecasting")

	_, err := f.development.Start(context.Background(), sessionID, "python")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRunTestsRetriesFailingRuns(t *testing.T) {
	f := newFixture()
	f.developer.failingRuns = 1
	sessionID := f.newSession("transformer forecasting")
	require.NoError(t, f.runToResearch(sessionID))

	_, err := f.development.Start(context.Background(), sessionID, "python")
	require.NoError(t, err)

	res, err := f.development.RunTests(context.Background(), sessionID)
	require.NoError(t, err)

	assert.Zero(t, res.Results.Failed)
	assert.Equal(t, 9, res.Results.Passed)
}

func TestRunTestsRecordsPersistentFailures(t *testing.T) {
	f := newFixture()
	sessionID := f.newSession("transformer forecasting")
	require.NoError(t, f.runToResearch(sessionID))

	_, err := f.development.Start(context.Background(), sessionID, "python")
	require.NoError(t, err)

	// Every subsequent run fails.
	f.developer.mu.Lock()
	f.developer.failingRuns = 1 << 30
	f.developer.mu.Unlock()

	res, err := f.development.RunTests(context.Background(), sessionID)
	require.NoError(t, err, "persistent failures are reported, not errored")

	assert.Equal(t, 2, res.Results.Failed)
	assert.Equal(t, maxTestAttempts, res.Results.Attempts)

	state, err := f.wf.Get(context.Background(), sessionID)
	require.NoError(t, err)
	assert.NotEmpty(t, state.Errors)
	assert.NotEqual(t, workflow.StatusCompleted, state.Stages[workflow.StageTesting].Status)
}

func TestRunTestsWithoutProject(t *testing.T) {
	f := newFixture()
	sessionID := f.newSession("transformer forecasting")
	require.NoError(t, f.runToResearch(sessionID))

	_, err := f.development.RunTests(context.Background(), sessionID)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}
