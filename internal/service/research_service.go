package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-research-be/internal/clients"
	"ai-research-be/internal/dto"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository"
	"ai-research-be/internal/repository/contract"
	"ai-research-be/internal/repository/memory"
	"ai-research-be/pkg/broker"
	"ai-research-be/pkg/events"
	pktNats "ai-research-be/pkg/nats"
	"ai-research-be/pkg/workflow"

	"github.com/google/uuid"
)

// minClarifications is how many accumulated answers unlock the research
// stage. Fewer answers keep the clarification loop going.
const minClarifications = 2

const clarificationSystemPrompt = `You are a research assistant helping to scope an autonomous research project. Ask focused clarifying questions that narrow the topic down to something a literature survey can cover.`

const planSystemPrompt = `You are a research planner. Given a topic and the user's clarifications, produce a concrete research plan with objectives, a timeline and search queries for literature crawling.`

const synthesisSystemPrompt = `You are a research analyst. Synthesize the findings from the crawled literature into a coherent summary of the state of the art, open problems, and promising directions.`

type IResearchService interface {
	Start(ctx context.Context, sessionID, topic string) (*dto.StartResearchResult, error)
	Clarify(ctx context.Context, sessionID string, answers []string) (*dto.ClarifyResult, error)
	Approve(ctx context.Context, sessionID string, approved bool, feedback string) (*dto.ApproveResult, error)
	Results(ctx context.Context, sessionID string) (*dto.ResearchResults, error)
}

type researchService struct {
	registry *memory.SessionRegistry
	wf       *workflow.Manager
	broker   *broker.Broker
	crawler  clients.ICrawlerClient
	store    contract.DurableStore
	tasks    *TaskRegistry
	natsPub  *pktNats.Publisher
	logger   logger.ILogger
	sources  []string
}

func NewResearchService(
	registry *memory.SessionRegistry,
	wf *workflow.Manager,
	brk *broker.Broker,
	crawler clients.ICrawlerClient,
	store contract.DurableStore,
	tasks *TaskRegistry,
	natsPub *pktNats.Publisher,
	log logger.ILogger,
	sources []string,
) IResearchService {
	if len(sources) == 0 {
		sources = []string{"arxiv", "scholar", "semantic"}
	}
	return &researchService{
		registry: registry,
		wf:       wf,
		broker:   brk,
		crawler:  crawler,
		store:    store,
		tasks:    tasks,
		natsPub:  natsPub,
		logger:   log,
		sources:  sources,
	}
}

// Start opens the clarification stage and generates the first round of
// clarifying questions.
func (s *researchService) Start(ctx context.Context, sessionID, topic string) (*dto.StartResearchResult, error) {
	session, found := s.registry.Get(ctx, sessionID)
	if !found {
		return nil, &NotFoundError{Resource: "session", ID: sessionID}
	}
	if topic != "" {
		session.Topic = topic
	}
	if session.Topic == "" {
		return nil, &ValidationError{Message: "research topic is required"}
	}

	if _, err := s.wf.Create(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := s.wf.Advance(ctx, sessionID, workflow.StageClarification); err != nil {
		return nil, err
	}
	s.wf.StartStage(ctx, sessionID, workflow.StageClarification)

	questions, err := s.generateQuestions(ctx, session.Topic, session.Clarifications)
	if err != nil {
		s.wf.FailStage(ctx, sessionID, workflow.StageClarification, err)
		return nil, err
	}
	s.wf.UpdateProgress(ctx, sessionID, workflow.StageClarification, 50, nil)

	session.Stage = workflow.StageClarification
	if err := s.registry.Save(ctx, session); err != nil {
		return nil, err
	}

	return &dto.StartResearchResult{
		Stage:     string(workflow.StageClarification),
		Questions: questions,
	}, nil
}

// Clarify accumulates answers. Below the threshold it loops with follow-up
// questions; at the threshold it generates the research plan and kicks off
// background research execution without blocking the response.
func (s *researchService) Clarify(ctx context.Context, sessionID string, answers []string) (*dto.ClarifyResult, error) {
	session, found := s.registry.Get(ctx, sessionID)
	if !found {
		return nil, &NotFoundError{Resource: "session", ID: sessionID}
	}
	if len(answers) == 0 {
		return nil, &ValidationError{Message: "at least one answer is required"}
	}

	session.Clarifications = append(session.Clarifications, answers...)
	if err := s.registry.Save(ctx, session); err != nil {
		return nil, err
	}

	if len(session.Clarifications) < minClarifications {
		questions, err := s.generateQuestions(ctx, session.Topic, session.Clarifications)
		if err != nil {
			s.wf.RecordError(ctx, sessionID, workflow.StageClarification, err.Error())
			return nil, err
		}
		return &dto.ClarifyResult{
			Stage:                  string(workflow.StageClarification),
			NeedsMoreClarification: true,
			Questions:              questions,
		}, nil
	}

	plan, err := s.generatePlan(ctx, session.Topic, session.Clarifications)
	if err != nil {
		s.wf.FailStage(ctx, sessionID, workflow.StageClarification, err)
		return nil, err
	}

	s.wf.CompleteStage(ctx, sessionID, workflow.StageClarification, nil)
	if err := s.wf.Advance(ctx, sessionID, workflow.StageResearch); err != nil {
		return nil, err
	}
	s.wf.SetMetadata(ctx, sessionID, "plan_id", plan.ID)

	session.Stage = workflow.StageResearch
	if err := s.registry.Save(ctx, session); err != nil {
		return nil, err
	}

	// Research runs in the background; the caller gets the plan now and a
	// completion notification later.
	s.tasks.Run(sessionID, func() error {
		return s.executeResearch(context.Background(), sessionID, session.Topic, plan, "")
	})

	return &dto.ClarifyResult{
		Stage:        string(workflow.StageResearch),
		ResearchPlan: plan,
	}, nil
}

// Approve either advances to development or reopens research for refinement
// with the caller's feedback.
func (s *researchService) Approve(ctx context.Context, sessionID string, approved bool, feedback string) (*dto.ApproveResult, error) {
	session, found := s.registry.Get(ctx, sessionID)
	if !found {
		return nil, &NotFoundError{Resource: "session", ID: sessionID}
	}

	if !approved {
		// Refinement re-enters the research stage without leaving it.
		if err := s.wf.Advance(ctx, sessionID, workflow.StageResearch); err != nil {
			return nil, err
		}

		plan, err := s.loadPlan(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		s.tasks.Run(sessionID, func() error {
			return s.executeResearch(context.Background(), sessionID, session.Topic, plan, feedback)
		})

		return &dto.ApproveResult{
			Stage:   string(workflow.StageResearch),
			Message: "research reopened for refinement",
		}, nil
	}

	if err := s.wf.Advance(ctx, sessionID, workflow.StageDevelopment); err != nil {
		return nil, err
	}
	session.Stage = workflow.StageDevelopment
	if err := s.registry.Save(ctx, session); err != nil {
		return nil, err
	}

	return &dto.ApproveResult{
		Stage:   string(workflow.StageDevelopment),
		Message: "research approved",
	}, nil
}

// Results loads the durable research output for the session.
func (s *researchService) Results(ctx context.Context, sessionID string) (*dto.ResearchResults, error) {
	data, found, err := s.store.Get(ctx, repository.ResearchResultKeyPrefix+sessionID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Resource: "research results", ID: sessionID}
	}

	var results dto.ResearchResults
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode research results: %w", err)
	}
	return &results, nil
}

// executeResearch is the long-running stage body: crawl every source, skip
// the ones that fail, synthesize what was found, persist and announce.
func (s *researchService) executeResearch(ctx context.Context, sessionID, topic string, plan *dto.ResearchPlan, feedback string) error {
	s.wf.StartStage(ctx, sessionID, workflow.StageResearch)

	detail := &workflow.ResearchDetail{PlanID: plan.ID, SourcesTotal: len(s.sources)}
	s.wf.UpdateProgress(ctx, sessionID, workflow.StageResearch, 10, detail)
	s.wf.UpdateProgress(ctx, sessionID, workflow.StageResearch, 30, detail)

	queries := plan.Queries
	if len(queries) == 0 {
		queries = []string{topic}
	}

	var papers []clients.Paper
	for i, source := range s.sources {
		found, err := s.crawler.CrawlSource(ctx, source, queries, 20)
		if err != nil {
			// Partial results are acceptable; a dead source is logged and
			// skipped.
			s.logger.Warn("Research", "Source crawl failed, skipping", map[string]interface{}{
				"session_id": sessionID,
				"source":     source,
				"error":      err.Error(),
			})
			s.wf.RecordError(ctx, sessionID, workflow.StageResearch, err.Error())
		} else {
			papers = append(papers, found...)
		}

		detail.SourcesCompleted = i + 1
		detail.PapersFound = len(papers)
		progress := 30 + (i+1)*60/len(s.sources)
		if progress > 90 {
			progress = 90
		}
		s.wf.UpdateProgress(ctx, sessionID, workflow.StageResearch, progress, detail)
	}

	synthesis, err := s.synthesize(ctx, topic, plan, papers, feedback)
	if err != nil {
		s.wf.FailStage(ctx, sessionID, workflow.StageResearch, err)
		return err
	}

	results := dto.ResearchResults{
		SessionID:   sessionID,
		Topic:       topic,
		Plan:        plan,
		Papers:      papers,
		Sources:     s.sources,
		Synthesis:   synthesis,
		CompletedAt: time.Now(),
	}
	data, err := json.Marshal(results)
	if err != nil {
		s.wf.FailStage(ctx, sessionID, workflow.StageResearch, err)
		return err
	}
	if err := s.store.Set(ctx, repository.ResearchResultKeyPrefix+sessionID, data, repository.ResearchResultTTL); err != nil {
		s.logger.Warn("Research", "Failed to persist results", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}

	s.wf.CompleteStage(ctx, sessionID, workflow.StageResearch, detail)

	if s.natsPub != nil {
		event := events.ResearchCompletedEvent{
			SessionID:   sessionID,
			Topic:       topic,
			PaperCount:  len(papers),
			CompletedAt: time.Now(),
		}
		if err := s.natsPub.Publish(ctx, event); err != nil {
			s.logger.Warn("Research", "Failed to publish completion event", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}

	s.logger.Info("Research", "Research execution completed", map[string]interface{}{
		"session_id": sessionID,
		"papers":     len(papers),
	})
	return nil
}

func (s *researchService) generateQuestions(ctx context.Context, topic string, clarifications []string) ([]string, error) {
	prompt := fmt.Sprintf("Research topic: %s", topic)
	if len(clarifications) > 0 {
		prompt += fmt.Sprintf("\n\nAnswers so far:\n- %s", strings.Join(clarifications, "\n- "))
		prompt += "\n\nAsk follow-up questions that are still open."
	}

	var out struct {
		Questions []string `json:"questions"`
	}
	schema := `{"questions": ["string"]}`
	if err := s.broker.GenerateJSON(ctx, clarificationSystemPrompt, prompt, schema, &out); err != nil {
		return nil, err
	}
	if len(out.Questions) == 0 {
		return nil, fmt.Errorf("backend produced no clarification questions")
	}
	return out.Questions, nil
}

func (s *researchService) generatePlan(ctx context.Context, topic string, clarifications []string) (*dto.ResearchPlan, error) {
	prompt := fmt.Sprintf("Research topic: %s\n\nClarifications:\n- %s", topic, strings.Join(clarifications, "\n- "))
	schema := `{"topic": "string", "objectives": ["string"], "timeline": "string", "keyPapers": ["string"], "queries": ["string"]}`

	var plan dto.ResearchPlan
	if err := s.broker.GenerateJSON(ctx, planSystemPrompt, prompt, schema, &plan); err != nil {
		return nil, err
	}
	if plan.Topic == "" {
		plan.Topic = topic
	}
	plan.ID = uuid.NewString()

	data, err := json.Marshal(plan)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, repository.ResearchPlanKeyPrefix+plan.ID, data, repository.ResearchPlanTTL); err != nil {
		s.logger.Warn("Research", "Failed to persist plan", map[string]interface{}{
			"plan_id": plan.ID,
			"error":   err.Error(),
		})
	}
	return &plan, nil
}

func (s *researchService) synthesize(ctx context.Context, topic string, plan *dto.ResearchPlan, papers []clients.Paper, feedback string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\nObjectives: %s\n\n", topic, strings.Join(plan.Objectives, "; "))
	if feedback != "" {
		fmt.Fprintf(&sb, "The user asked for refinement: %s\n\n", feedback)
	}
	fmt.Fprintf(&sb, "Crawled literature (%d papers):\n", len(papers))
	for i, p := range papers {
		if i >= 30 {
			// Keep the prompt within a sane context budget.
			fmt.Fprintf(&sb, "... and %d more papers\n", len(papers)-i)
			break
		}
		fmt.Fprintf(&sb, "- %s (%s, %d): %s\n", p.Title, p.Source, p.Year, truncate(p.Abstract, 300))
	}

	return s.broker.GenerateText(ctx, synthesisSystemPrompt, sb.String(), broker.GenerationOptions{Temperature: 0.5})
}

func (s *researchService) loadPlan(ctx context.Context, sessionID string) (*dto.ResearchPlan, error) {
	state, err := s.wf.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	planID, _ := state.Metadata["plan_id"].(string)
	if planID == "" {
		return nil, &NotFoundError{Resource: "research plan", ID: sessionID}
	}

	data, found, err := s.store.Get(ctx, repository.ResearchPlanKeyPrefix+planID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NotFoundError{Resource: "research plan", ID: planID}
	}

	var plan dto.ResearchPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decode research plan: %w", err)
	}
	return &plan, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
