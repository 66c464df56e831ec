package service

import (
	"context"
	"encoding/json"
	"errors"

	"ai-research-be/internal/clients"
	"ai-research-be/internal/dto"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/protocol"
	"ai-research-be/pkg/broker"
)

// IEnvelopeDispatcher resolves an inbound frame to a response envelope.
// Every frame is validated before any business logic runs.
type IEnvelopeDispatcher interface {
	Dispatch(ctx context.Context, raw []byte) *protocol.Envelope
}

type envelopeDispatcher struct {
	sessions      ISessionService
	research      IResearchService
	development   IDevelopmentService
	documentation IDocumentationService
	workflows     IWorkflowService
	logger        logger.ILogger
}

func NewEnvelopeDispatcher(
	sessions ISessionService,
	research IResearchService,
	development IDevelopmentService,
	documentation IDocumentationService,
	workflows IWorkflowService,
	log logger.ILogger,
) IEnvelopeDispatcher {
	return &envelopeDispatcher{
		sessions:      sessions,
		research:      research,
		development:   development,
		documentation: documentation,
		workflows:     workflows,
		logger:        log,
	}
}

func (d *envelopeDispatcher) Dispatch(ctx context.Context, raw []byte) *protocol.Envelope {
	env, err := protocol.Validate(raw)
	if err != nil {
		var perr *protocol.ErrorPayload
		if errors.As(err, &perr) {
			return protocol.NewErrorResponse("", perr.Code, perr.Message, nil)
		}
		return protocol.NewErrorResponse("", protocol.CodeInvalidRequest, err.Error(), nil)
	}

	if env.Kind != protocol.KindRequest {
		return protocol.NewErrorResponse(env.ID, protocol.CodeInvalidRequest,
			"only request envelopes are dispatched", nil)
	}

	d.logger.Info("Dispatcher", "Dispatching request", map[string]interface{}{
		"id":     env.ID,
		"method": env.Method,
	})

	result, err := d.invoke(ctx, env)
	if err != nil {
		return d.errorResponse(env.ID, err)
	}
	return protocol.NewResponse(env.ID, result)
}

func (d *envelopeDispatcher) invoke(ctx context.Context, env *protocol.Envelope) (interface{}, error) {
	switch env.Method {
	case "research.start":
		var params dto.StartResearchParams
		if err := decodeParams(env.Params, &params); err != nil {
			return nil, err
		}
		d.recordHistory(ctx, params.SessionID, env)
		return d.research.Start(ctx, params.SessionID, params.Topic)

	case "research.clarify":
		var params dto.ClarifyParams
		if err := decodeParams(env.Params, &params); err != nil {
			return nil, err
		}
		d.recordHistory(ctx, params.SessionID, env)
		return d.research.Clarify(ctx, params.SessionID, params.Answers)

	case "research.approve":
		var params dto.ApproveParams
		if err := decodeParams(env.Params, &params); err != nil {
			return nil, err
		}
		d.recordHistory(ctx, params.SessionID, env)
		return d.research.Approve(ctx, params.SessionID, params.Approved, params.Feedback)

	case "development.start":
		var params dto.StartDevelopmentParams
		if err := decodeParams(env.Params, &params); err != nil {
			return nil, err
		}
		d.recordHistory(ctx, params.SessionID, env)
		return d.development.Start(ctx, params.SessionID, params.Language)

	case "testing.run":
		var params dto.RunTestsParams
		if err := decodeParams(env.Params, &params); err != nil {
			return nil, err
		}
		d.recordHistory(ctx, params.SessionID, env)
		return d.development.RunTests(ctx, params.SessionID)

	case "documentation.generate":
		var params dto.GenerateDocsParams
		if err := decodeParams(env.Params, &params); err != nil {
			return nil, err
		}
		d.recordHistory(ctx, params.SessionID, env)
		return d.documentation.Generate(ctx, params.SessionID, params.AllFormats())

	case "workflow.status":
		var params dto.WorkflowStatusParams
		if err := decodeParams(env.Params, &params); err != nil {
			return nil, err
		}
		return d.workflows.Status(ctx, params.SessionID)

	default:
		return nil, &protocol.ErrorPayload{
			Code:    protocol.CodeMethodNotFound,
			Message: "unknown method: " + env.Method,
		}
	}
}

func (d *envelopeDispatcher) errorResponse(requestID string, err error) *protocol.Envelope {
	var perr *protocol.ErrorPayload
	if errors.As(err, &perr) {
		return protocol.NewErrorResponse(requestID, perr.Code, perr.Message, perr.Data)
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return protocol.NewErrorResponse(requestID, protocol.CodeInvalidRequest, validationErr.Error(), nil)
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return protocol.NewErrorResponse(requestID, protocol.CodeServerError, notFoundErr.Error(), nil)
	}

	var genErr *broker.GenerationError
	if errors.As(err, &genErr) {
		return protocol.NewErrorResponse(requestID, protocol.CodeInternalError, genErr.Error(),
			map[string]interface{}{"attempts": genErr.Attempts})
	}

	var parseErr *broker.ParseError
	if errors.As(err, &parseErr) {
		return protocol.NewErrorResponse(requestID, protocol.CodeInternalError, parseErr.Error(), nil)
	}

	var downstreamErr *clients.DownstreamError
	if errors.As(err, &downstreamErr) {
		return protocol.NewErrorResponse(requestID, protocol.CodeInternalError, downstreamErr.Error(),
			map[string]interface{}{"service": downstreamErr.Service})
	}

	d.logger.Error("Dispatcher", "Unclassified dispatch error", map[string]interface{}{
		"error": err.Error(),
	})
	return protocol.NewErrorResponse(requestID, protocol.CodeInternalError, err.Error(), nil)
}

// recordHistory appends the request to the session's exchange history.
// Best effort: an unknown session surfaces from the service call itself.
func (d *envelopeDispatcher) recordHistory(ctx context.Context, sessionID string, env *protocol.Envelope) {
	if sessionID == "" {
		return
	}
	_ = d.sessions.AppendHistory(ctx, sessionID, env)
}

func decodeParams(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return &protocol.ErrorPayload{Code: protocol.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &protocol.ErrorPayload{Code: protocol.CodeInvalidParams, Message: "malformed params: " + err.Error()}
	}
	return nil
}
