package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-research-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// ProgressTopic is the in-process bus topic every stage mutation is
// published to.
const ProgressTopic = "WORKFLOW_PROGRESS"

const (
	keyPrefix  = "workflow:"
	persistTTL = 7 * 24 * time.Hour
)

var ErrNotFound = errors.New("workflow not found")

// Store is the durable backing the manager mirrors state into after every
// mutation.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ProgressEvent is published on every stage mutation.
type ProgressEvent struct {
	SessionID string      `json:"session_id"`
	Stage     Stage       `json:"stage"`
	Status    StageStatus `json:"status"`
	Progress  int         `json:"progress"`
}

// Manager sequences sessions through the pipeline stages and tracks progress
// durably. The in-memory copy is authoritative while present; durable storage
// is reloaded on a miss.
type Manager struct {
	store     Store
	publisher message.Publisher
	logger    logger.ILogger

	mu     sync.Mutex
	states map[string]*State
}

func NewManager(store Store, publisher message.Publisher, log logger.ILogger) *Manager {
	return &Manager{
		store:     store,
		publisher: publisher,
		logger:    log,
		states:    make(map[string]*State),
	}
}

// Create initializes and persists a fresh workflow for the session.
func (m *Manager) Create(ctx context.Context, sessionID string) (*State, error) {
	m.mu.Lock()
	if existing, ok := m.states[sessionID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	state := newState(sessionID)
	m.states[sessionID] = state
	m.mu.Unlock()

	if err := m.persist(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Get returns the workflow for the session, reloading from durable storage
// on an in-memory miss.
func (m *Manager) Get(ctx context.Context, sessionID string) (*State, error) {
	m.mu.Lock()
	if state, ok := m.states[sessionID]; ok {
		m.mu.Unlock()
		return state, nil
	}
	m.mu.Unlock()

	data, found, err := m.store.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", sessionID, err)
	}
	if !found {
		return nil, ErrNotFound
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", sessionID, err)
	}

	m.mu.Lock()
	m.states[sessionID] = &state
	m.mu.Unlock()
	return &state, nil
}

// Snapshot returns a deep copy of the workflow state. The live copy keeps
// being mutated by background stages under the manager's lock; anything
// handed to an encoder or a caller outside this package must come from here.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (*State, error) {
	state, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := &State{
		SessionID:    state.SessionID,
		CurrentStage: state.CurrentStage,
		Stages:       make(map[Stage]*StageProgress, len(state.Stages)),
		Errors:       append([]StageError(nil), state.Errors...),
		Metadata:     make(map[string]interface{}, len(state.Metadata)),
		CreatedAt:    state.CreatedAt,
		UpdatedAt:    state.UpdatedAt,
	}
	for stage, sp := range state.Stages {
		dup := *sp
		snapshot.Stages[stage] = &dup
	}
	for k, v := range state.Metadata {
		snapshot.Metadata[k] = v
	}
	return snapshot, nil
}

// Advance moves the workflow to a new stage. The current stage only moves
// forward through the pipeline; re-entering the same stage is allowed so
// clarification can loop and research can be reopened for refinement.
func (m *Manager) Advance(ctx context.Context, sessionID string, to Stage) error {
	state, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	toIdx := to.Index()
	if toIdx < 0 {
		return fmt.Errorf("unknown stage %q", to)
	}

	m.mu.Lock()
	curIdx := state.CurrentStage.Index()
	if toIdx < curIdx {
		m.mu.Unlock()
		return fmt.Errorf("cannot move workflow %s backward from %s to %s", sessionID, state.CurrentStage, to)
	}
	state.CurrentStage = to
	state.UpdatedAt = time.Now()
	progress := *state.Stages[to]
	m.mu.Unlock()

	m.logger.Info("Workflow", "Stage advanced", map[string]interface{}{
		"session_id": sessionID,
		"stage":      string(to),
	})

	m.publishProgress(state.SessionID, to, progress.Status, progress.Progress)
	return m.persist(ctx, state)
}

// StartStage marks a stage in progress and stamps its start time. Reopening
// a finished stage resets its meter so refinement reports real progress.
func (m *Manager) StartStage(ctx context.Context, sessionID string, stage Stage) error {
	return m.mutateStage(ctx, sessionID, stage, func(sp *StageProgress) {
		now := time.Now()
		if sp.Status == StatusCompleted || sp.Status == StatusFailed {
			sp.Progress = 0
			sp.StartedAt = &now
		}
		sp.Status = StatusInProgress
		if sp.StartedAt == nil {
			sp.StartedAt = &now
		}
		sp.EndedAt = nil
	})
}

// UpdateProgress raises a stage's progress. Values below the current one are
// ignored while in progress, and a finished stage's value is frozen.
func (m *Manager) UpdateProgress(ctx context.Context, sessionID string, stage Stage, progress int, detail interface{}) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	frozen := freezeDetail(detail)
	return m.mutateStage(ctx, sessionID, stage, func(sp *StageProgress) {
		if sp.Status != StatusInProgress {
			return
		}
		if progress > sp.Progress {
			sp.Progress = progress
		}
		if frozen != nil {
			sp.Detail = frozen
		}
	})
}

// freezeDetail captures the detail value as encoded bytes at call time. The
// caller keeps mutating its detail struct between updates; storing the live
// pointer would let encoders race with those writes.
func freezeDetail(detail interface{}) interface{} {
	if detail == nil {
		return nil
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil
	}
	return json.RawMessage(raw)
}

// CompleteStage freezes the stage at 100 and stamps its end time.
func (m *Manager) CompleteStage(ctx context.Context, sessionID string, stage Stage, detail interface{}) error {
	frozen := freezeDetail(detail)
	return m.mutateStage(ctx, sessionID, stage, func(sp *StageProgress) {
		if sp.Status == StatusCompleted || sp.Status == StatusFailed {
			return
		}
		now := time.Now()
		sp.Status = StatusCompleted
		sp.Progress = 100
		sp.EndedAt = &now
		if frozen != nil {
			sp.Detail = frozen
		}
	})
}

// FailStage marks the stage failed and records the error. The workflow's
// current stage is untouched so the session remains inspectable.
func (m *Manager) FailStage(ctx context.Context, sessionID string, stage Stage, failure error) error {
	if err := m.mutateStage(ctx, sessionID, stage, func(sp *StageProgress) {
		if sp.Status == StatusCompleted {
			return
		}
		now := time.Now()
		sp.Status = StatusFailed
		sp.EndedAt = &now
	}); err != nil {
		return err
	}
	return m.RecordError(ctx, sessionID, stage, failure.Error())
}

// RecordError keeps the error list bounded to one entry per stage: a repeat
// failure increments the retry counter and overwrites message and timestamp.
func (m *Manager) RecordError(ctx context.Context, sessionID string, stage Stage, message string) error {
	state, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	found := false
	for i := range state.Errors {
		if state.Errors[i].Stage == stage {
			state.Errors[i].RetryCount++
			state.Errors[i].Message = message
			state.Errors[i].Timestamp = time.Now()
			found = true
			break
		}
	}
	if !found {
		state.Errors = append(state.Errors, StageError{
			Stage:     stage,
			Message:   message,
			Timestamp: time.Now(),
		})
	}
	state.UpdatedAt = time.Now()
	m.mu.Unlock()

	m.logger.Error("Workflow", "Stage error recorded", map[string]interface{}{
		"session_id": sessionID,
		"stage":      string(stage),
		"error":      message,
	})

	return m.persist(ctx, state)
}

// SetMetadata stores a free-form value on the workflow.
func (m *Manager) SetMetadata(ctx context.Context, sessionID, key string, value interface{}) error {
	state, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	state.Metadata[key] = value
	state.UpdatedAt = time.Now()
	m.mu.Unlock()

	return m.persist(ctx, state)
}

func (m *Manager) mutateStage(ctx context.Context, sessionID string, stage Stage, fn func(*StageProgress)) error {
	state, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	sp, ok := state.Stages[stage]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown stage %q", stage)
	}
	fn(sp)
	state.UpdatedAt = time.Now()
	snapshot := *sp
	m.mu.Unlock()

	m.publishProgress(sessionID, stage, snapshot.Status, snapshot.Progress)
	return m.persist(ctx, state)
}

func (m *Manager) persist(ctx context.Context, state *State) error {
	m.mu.Lock()
	data, err := json.Marshal(state)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode workflow %s: %w", state.SessionID, err)
	}

	if err := m.store.Set(ctx, keyPrefix+state.SessionID, data, persistTTL); err != nil {
		// Durable backing is best effort; the in-memory copy stays
		// authoritative.
		m.logger.Warn("Workflow", "Failed to persist state", map[string]interface{}{
			"session_id": state.SessionID,
			"error":      err.Error(),
		})
	}
	return nil
}

func (m *Manager) publishProgress(sessionID string, stage Stage, status StageStatus, progress int) {
	if m.publisher == nil {
		return
	}

	event := ProgressEvent{
		SessionID: sessionID,
		Stage:     stage,
		Status:    status,
		Progress:  progress,
	}
	payload, _ := json.Marshal(event)

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := m.publisher.Publish(ProgressTopic, msg); err != nil {
		m.logger.Warn("Workflow", "Failed to publish progress event", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}
