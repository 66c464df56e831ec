package service

import (
	"context"

	"ai-research-be/internal/dto"
	"ai-research-be/internal/model"
	"ai-research-be/internal/protocol"
	"ai-research-be/internal/repository/memory"
)

type ISessionService interface {
	Create(ctx context.Context, topic string) (*model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context) ([]dto.SessionResponse, error)
	AppendHistory(ctx context.Context, id string, env *protocol.Envelope) error
}

type sessionService struct {
	registry *memory.SessionRegistry
}

func NewSessionService(registry *memory.SessionRegistry) ISessionService {
	return &sessionService{registry: registry}
}

func (s *sessionService) Create(ctx context.Context, topic string) (*model.Session, error) {
	if topic == "" {
		return nil, &ValidationError{Message: "topic is required"}
	}
	return s.registry.Create(ctx, topic)
}

func (s *sessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	session, found := s.registry.Get(ctx, id)
	if !found {
		return nil, &NotFoundError{Resource: "session", ID: id}
	}
	return session, nil
}

func (s *sessionService) List(ctx context.Context) ([]dto.SessionResponse, error) {
	sessions, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		res = append(res, dto.SessionResponse{
			ID:        session.ID,
			Topic:     session.Topic,
			Stage:     session.Stage,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}
	return res, nil
}

// AppendHistory records an exchanged envelope on the session.
func (s *sessionService) AppendHistory(ctx context.Context, id string, env *protocol.Envelope) error {
	session, found := s.registry.Get(ctx, id)
	if !found {
		return &NotFoundError{Resource: "session", ID: id}
	}
	session.History = append(session.History, *env)
	return s.registry.Save(ctx, session)
}
