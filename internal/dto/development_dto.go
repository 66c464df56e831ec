package dto

type StartDevelopmentParams struct {
	SessionID string `json:"sessionId" validate:"required"`
	Language  string `json:"language,omitempty"`
}

type StartDevelopmentResult struct {
	Stage          string          `json:"stage"`
	ProjectID      string          `json:"projectId"`
	FilesGenerated int             `json:"filesGenerated"`
	InitialTests   *TestRunSummary `json:"initialTests,omitempty"`
}

type RunTestsParams struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type TestRunSummary struct {
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Attempts int `json:"attempts"`
}

type RunTestsResult struct {
	Stage   string          `json:"stage"`
	Results *TestRunSummary `json:"results"`
}
