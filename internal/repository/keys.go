package repository

import "time"

// Durable storage key layout and expiries.
const (
	SessionKeyPrefix        = "session:"
	WorkflowKeyPrefix       = "workflow:"
	ResearchPlanKeyPrefix   = "research:plan:"
	ResearchResultKeyPrefix = "research:results:"
	TestResultKeyPrefix     = "test:results:"

	SessionTTL        = 24 * time.Hour
	WorkflowTTL       = 7 * 24 * time.Hour
	ResearchPlanTTL   = 7 * 24 * time.Hour
	ResearchResultTTL = 7 * 24 * time.Hour
	TestResultTTL     = 24 * time.Hour
)
