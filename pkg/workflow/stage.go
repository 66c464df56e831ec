package workflow

// Stage is one named phase of the research pipeline.
type Stage string

const (
	StageInitial       Stage = "initial"
	StageClarification Stage = "clarification"
	StageResearch      Stage = "research"
	StageDevelopment   Stage = "development"
	StageTesting       Stage = "testing"
	StageDocumentation Stage = "documentation"
	StageCompleted     Stage = "completed"
)

// stageOrder fixes the forward direction of the pipeline.
var stageOrder = []Stage{
	StageInitial,
	StageClarification,
	StageResearch,
	StageDevelopment,
	StageTesting,
	StageDocumentation,
	StageCompleted,
}

// Index returns the stage's position in the pipeline, or -1 for an unknown
// stage.
func (s Stage) Index() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Stages returns the pipeline order. Callers must not mutate it.
func Stages() []Stage {
	return stageOrder
}

// StageStatus tracks the lifecycle of one stage.
type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusInProgress StageStatus = "in_progress"
	StatusCompleted  StageStatus = "completed"
	StatusFailed     StageStatus = "failed"
)
