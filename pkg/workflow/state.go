package workflow

import "time"

// StageProgress is the per-stage progress record. Progress is an integer in
// [0,100], monotonically non-decreasing while the stage is in progress; a
// completed or failed transition freezes it.
type StageProgress struct {
	Status    StageStatus `json:"status"`
	Progress  int         `json:"progress"`
	StartedAt *time.Time  `json:"started_at,omitempty"`
	EndedAt   *time.Time  `json:"ended_at,omitempty"`
	Detail    interface{} `json:"detail,omitempty"`
}

// StageError records the latest failure for one stage. Repeated failures on
// the same stage bump RetryCount instead of appending a new entry.
type StageError struct {
	Stage      Stage     `json:"stage"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
}

// State is the durable workflow record for one research session.
type State struct {
	SessionID    string                   `json:"session_id"`
	CurrentStage Stage                    `json:"current_stage"`
	Stages       map[Stage]*StageProgress `json:"stages"`
	Errors       []StageError             `json:"errors"`
	Metadata     map[string]interface{}   `json:"metadata"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

// Typed per-stage detail payloads. Each stage publishes a known shape.

type ResearchDetail struct {
	PlanID           string `json:"plan_id,omitempty"`
	SourcesCompleted int    `json:"sources_completed"`
	SourcesTotal     int    `json:"sources_total"`
	PapersFound      int    `json:"papers_found"`
}

type DevelopmentDetail struct {
	ProjectID      string `json:"project_id,omitempty"`
	FilesGenerated int    `json:"files_generated"`
}

type TestingDetail struct {
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Attempts int `json:"attempts"`
}

type DocumentationDetail struct {
	Formats   map[string]bool `json:"formats"`
	Documents int             `json:"documents"`
}

func newState(sessionID string) *State {
	now := time.Now()
	stages := make(map[Stage]*StageProgress, len(stageOrder))
	for _, s := range stageOrder {
		stages[s] = &StageProgress{Status: StatusPending}
	}

	return &State{
		SessionID:    sessionID,
		CurrentStage: StageInitial,
		Stages:       stages,
		Errors:       []StageError{},
		Metadata:     make(map[string]interface{}),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
