package dto

import (
	"time"

	"ai-research-be/internal/clients"
)

type StartResearchParams struct {
	SessionID string `json:"sessionId" validate:"required"`
	Topic     string `json:"topic"`
}

type StartResearchResult struct {
	Stage     string   `json:"stage"`
	Questions []string `json:"questions"`
}

type ClarifyParams struct {
	SessionID string   `json:"sessionId" validate:"required"`
	Answers   []string `json:"answers" validate:"required,min=1"`
}

type ClarifyResult struct {
	Stage                  string        `json:"stage"`
	NeedsMoreClarification bool          `json:"needsMoreClarification"`
	Questions              []string      `json:"questions,omitempty"`
	ResearchPlan           *ResearchPlan `json:"researchPlan,omitempty"`
}

// ResearchPlan is the broker-generated plan the research stage executes.
type ResearchPlan struct {
	ID         string   `json:"id"`
	Topic      string   `json:"topic"`
	Objectives []string `json:"objectives"`
	Timeline   string   `json:"timeline"`
	KeyPapers  []string `json:"keyPapers"`
	Queries    []string `json:"queries,omitempty"`
}

type ApproveParams struct {
	SessionID string `json:"sessionId" validate:"required"`
	Approved  bool   `json:"approved"`
	Feedback  string `json:"feedback,omitempty"`
}

type ApproveResult struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// ResearchResults is the durable output of the research stage.
type ResearchResults struct {
	SessionID   string          `json:"sessionId"`
	Topic       string          `json:"topic"`
	Plan        *ResearchPlan   `json:"plan"`
	Papers      []clients.Paper `json:"papers"`
	Sources     []string        `json:"sources"`
	Synthesis   string          `json:"synthesis"`
	CompletedAt time.Time       `json:"completedAt"`
}
