package service

import (
	"context"
	"testing"

	"ai-research-be/pkg/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOpensClarificationWithQuestions(t *testing.T) {
	f := newFixture()
	sessionID := f.newSession("transformer forecasting")

	res, err := f.research.Start(context.Background(), sessionID, "")
	require.NoError(t, err)

	assert.Equal(t, string(workflow.StageClarification), res.Stage)
	assert.NotEmpty(t, res.Questions)

	state, err := f.wf.Get(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StageClarification, state.CurrentStage)
}

func TestStartRejectsUnknownSession(t *testing.T) {
	f := newFixture()

	_, err := f.research.Start(context.Background(), "nope", "topic")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestClarifyLoopsBelowThreshold(t *testing.T) {
	f := newFixture()
	sessionID := f.newSession("transformer forecasting")

	_, err := f.research.Start(context.Background(), sessionID, "")
	require.NoError(t, err)

	res, err := f.research.Clarify(context.Background(), sessionID, []string{"Long-horizon forecasting."})
	require.NoError(t, err)

	assert.True(t, res.NeedsMoreClarification)
	assert.Equal(t, string(workflow.StageClarification), res.Stage)
	assert.NotEmpty(t, res.Questions)
	assert.Nil(t, res.ResearchPlan)
}

func TestClarifyAtThresholdProducesPlanAndStartsResearch(t *testing.T) {
	f := newFixture()
	sessionID := f.newSession("transformer forecasting")
	ctx := context.Background()

	_, err := f.research.Start(ctx, sessionID, "")
	require.NoError(t, err)
	_, err = f.research.Clarify(ctx, sessionID, []string{"Long-horizon forecasting."})
	require.NoError(t, err)

	res, err := f.research.Clarify(ctx, sessionID, []string{"Practitioner audience."})
	require.NoError(t, err)

	assert.False(t, res.NeedsMoreClarification)
	assert.Equal(t, string(workflow.StageResearch), res.Stage)
	require.NotNil(t, res.ResearchPlan)
	assert.NotEmpty(t, res.ResearchPlan.ID)
	assert.NotEmpty(t, res.ResearchPlan.Objectives)
	assert.NotEmpty(t, res.ResearchPlan.Timeline)
	assert.NotEmpty(t, res.ResearchPlan.KeyPapers)

	task, ok := f.tasks.Get(sessionID)
	require.True(t, ok, "background research task should be registered")
	require.NoError(t, task.Wait())

	results, err := f.research.Results(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, results.SessionID)
	assert.Len(t, results.Papers, 3) // one per source
	assert.NotEmpty(t, results.Synthesis)

	state, err := f.wf.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, state.Stages[workflow.StageResearch].Status)
}

func TestResearchSkipsDeadSource(t *testing.T) {
	f := newFixture()
	f.crawler.failSource = "scholar"
	sessionID := f.newSession("transformer forecasting")

	require.NoError(t, f.runToResearch(sessionID))

	results, err := f.research.Results(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, results.Papers, 2, "papers from the dead source are skipped")

	state, err := f.wf.Get(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, state.Stages[workflow.StageResearch].Status)
	assert.NotEmpty(t, state.Errors, "the failed source is recorded")
}

func TestApproveAdvancesToDevelopment(t *testing.T) {
	f := newFixture()
	sessionID := f.newSession("transformer forecasting")
	require.NoError(t, f.runToResearch(sessionID))

	res, err := f.research.Approve(context.Background(), sessionID, true, "")
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StageDevelopment), res.Stage)
}

func TestRejectReopensResearch(t *testing.T) {
	f := newFixture()
	sessionID := f.newSession("transformer forecasting")
	require.NoError(t, f.runToResearch(sessionID))

	res, err := f.research.Approve(context.Background(), sessionID, false, "cover diffusion models too")
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StageResearch), res.Stage)

	task, ok := f.tasks.Get(sessionID)
	require.True(t, ok)
	require.NoError(t, task.Wait())

	// Refined results replace the originals.
	results, err := f.research.Results(context.Background(), sessionID)
	require.NoError(t, err)
	assert.NotEmpty(t, results.Synthesis)
}

func TestResultsMissingIsNotFound(t *testing.T) {
	f := newFixture()
	sessionID := f.newSession("transformer forecasting")

	_, err := f.research.Results(context.Background(), sessionID)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}
