package service

import (
	"context"

	"ai-research-be/internal/clients"
	"ai-research-be/internal/dto"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/pkg/workflow"
)

type IDocumentationService interface {
	Generate(ctx context.Context, sessionID string, formats []string) (*dto.GenerateDocsResult, error)
}

type documentationService struct {
	wf       *workflow.Manager
	research IResearchService
	docgen   clients.IDocGeneratorClient
	logger   logger.ILogger
}

func NewDocumentationService(
	wf *workflow.Manager,
	research IResearchService,
	docgen clients.IDocGeneratorClient,
	log logger.ILogger,
) IDocumentationService {
	return &documentationService{
		wf:       wf,
		research: research,
		docgen:   docgen,
		logger:   log,
	}
}

// Generate produces one report per requested format. Producing every format
// completes the documentation stage and, implicitly, the whole workflow.
func (s *documentationService) Generate(ctx context.Context, sessionID string, formats []string) (*dto.GenerateDocsResult, error) {
	if len(formats) == 0 {
		return nil, &ValidationError{Message: "at least one document format is required"}
	}

	results, err := s.research.Results(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.wf.Advance(ctx, sessionID, workflow.StageDocumentation); err != nil {
		return nil, err
	}
	s.wf.StartStage(ctx, sessionID, workflow.StageDocumentation)

	researchData := map[string]interface{}{
		"topic":     results.Topic,
		"synthesis": results.Synthesis,
		"plan":      results.Plan,
		"papers":    results.Papers,
	}

	detail := &workflow.DocumentationDetail{Formats: make(map[string]bool, len(formats))}
	documents := make([]dto.DocumentDTO, 0, len(formats))

	for i, format := range formats {
		doc, err := s.generateOne(ctx, sessionID, researchData, format)
		if err != nil {
			s.wf.FailStage(ctx, sessionID, workflow.StageDocumentation, err)
			return nil, err
		}

		documents = append(documents, dto.DocumentDTO{
			Type:   doc.Type,
			Format: doc.Format,
			Path:   doc.Path,
			Size:   doc.Size,
		})
		detail.Formats[format] = true
		detail.Documents = len(documents)

		progress := (i + 1) * 100 / len(formats)
		if progress < 100 {
			s.wf.UpdateProgress(ctx, sessionID, workflow.StageDocumentation, progress, detail)
		}
	}

	s.wf.CompleteStage(ctx, sessionID, workflow.StageDocumentation, detail)
	if err := s.wf.Advance(ctx, sessionID, workflow.StageCompleted); err != nil {
		return nil, err
	}

	s.logger.Info("Documentation", "All documents generated", map[string]interface{}{
		"session_id": sessionID,
		"formats":    formats,
	})

	return &dto.GenerateDocsResult{
		Stage:     string(workflow.StageCompleted),
		Documents: documents,
	}, nil
}

func (s *documentationService) generateOne(ctx context.Context, sessionID string, researchData map[string]interface{}, format string) (*clients.Document, error) {
	switch format {
	case "latex", "paper":
		return s.docgen.GeneratePaper(ctx, sessionID, researchData, "ieee")
	case "pptx", "presentation":
		return s.docgen.GeneratePresentation(ctx, sessionID, researchData, "academic")
	default:
		// pdf, markdown, html all render as reports.
		return s.docgen.GenerateReport(ctx, sessionID, researchData, format)
	}
}
