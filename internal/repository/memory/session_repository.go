package memory

import (
	"context"
	"encoding/json"
	"time"

	"ai-research-be/internal/model"
	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository"
	"ai-research-be/internal/repository/contract"
	"ai-research-be/pkg/workflow"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionRegistry maps session ids to live Session objects. The in-memory
// copy is authoritative while present; every mutation is mirrored to the
// durable store with a 24-hour expiry.
type SessionRegistry struct {
	cache   *cache.Cache
	durable contract.DurableStore
	logger  logger.ILogger
}

func NewSessionRegistry(durable contract.DurableStore, log logger.ILogger) *SessionRegistry {
	// Live sessions expire with their durable mirror; purge sweep every 10
	// minutes.
	c := cache.New(repository.SessionTTL, 10*time.Minute)
	return &SessionRegistry{
		cache:   c,
		durable: durable,
		logger:  log,
	}
}

// Create allocates a session with a fresh id at the initial stage.
func (r *SessionRegistry) Create(ctx context.Context, topic string) (*model.Session, error) {
	now := time.Now()
	session := &model.Session{
		ID:             uuid.NewString(),
		Topic:          topic,
		Clarifications: []string{},
		Stage:          workflow.StageInitial,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := r.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns the live session, falling back to the durable mirror on a
// memory miss.
func (r *SessionRegistry) Get(ctx context.Context, id string) (*model.Session, bool) {
	if x, found := r.cache.Get(id); found {
		return x.(*model.Session), true
	}

	data, found, err := r.durable.Get(ctx, repository.SessionKeyPrefix+id)
	if err != nil || !found {
		return nil, false
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		r.logger.Warn("SessionRegistry", "Undecodable durable session", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
		return nil, false
	}

	r.cache.Set(id, &session, cache.DefaultExpiration)
	return &session, true
}

// Save stores the session in memory and mirrors it durably.
func (r *SessionRegistry) Save(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = time.Now()
	r.cache.Set(session.ID, session, cache.DefaultExpiration)

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := r.durable.Set(ctx, repository.SessionKeyPrefix+session.ID, data, repository.SessionTTL); err != nil {
		// Mirror is best effort.
		r.logger.Warn("SessionRegistry", "Failed to mirror session", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
	}
	return nil
}

// List enumerates every durable session. Entries that fail to decode are
// skipped rather than aborting the listing.
func (r *SessionRegistry) List(ctx context.Context) ([]*model.Session, error) {
	keys, err := r.durable.Keys(ctx, repository.SessionKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(keys))
	for _, key := range keys {
		data, found, err := r.durable.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		var session model.Session
		if err := json.Unmarshal(data, &session); err != nil {
			r.logger.Warn("SessionRegistry", "Skipping undecodable session entry", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

// Delete drops the session from memory and the durable mirror.
func (r *SessionRegistry) Delete(ctx context.Context, id string) {
	r.cache.Delete(id)
	_ = r.durable.Delete(ctx, repository.SessionKeyPrefix+id)
}
