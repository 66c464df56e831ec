package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-research-be/internal/pkg/logger"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (s *mapStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func newTestManager() (*Manager, *mapStore) {
	store := newMapStore()
	return NewManager(store, nil, logger.NewNopLogger()), store
}

func TestAdvanceNeverRegresses(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	if _, err := m.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sequence := []Stage{
		StageClarification,
		StageResearch,
		StageDevelopment,
		StageTesting,
		StageDocumentation,
		StageCompleted,
	}

	prev := StageInitial
	for _, next := range sequence {
		if err := m.Advance(ctx, "s1", next); err != nil {
			t.Fatalf("Advance(%s): %v", next, err)
		}
		state, _ := m.Get(ctx, "s1")
		if state.CurrentStage.Index() < prev.Index() {
			t.Errorf("stage regressed from %s to %s", prev, state.CurrentStage)
		}
		prev = next
	}

	if err := m.Advance(ctx, "s1", StageResearch); err == nil {
		t.Error("backward advance from completed to research must fail")
	}
}

func TestAdvanceAllowsResearchReopen(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.Advance(ctx, "s1", StageClarification)
	m.Advance(ctx, "s1", StageResearch)

	// Refinement re-enters the research stage without leaving it.
	if err := m.Advance(ctx, "s1", StageResearch); err != nil {
		t.Fatalf("research reopen: %v", err)
	}

	state, _ := m.Get(ctx, "s1")
	if state.CurrentStage != StageResearch {
		t.Errorf("stage = %s, want research", state.CurrentStage)
	}
}

func TestProgressIsMonotonicWhileInProgress(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.StartStage(ctx, "s1", StageResearch)

	m.UpdateProgress(ctx, "s1", StageResearch, 30, nil)
	m.UpdateProgress(ctx, "s1", StageResearch, 10, nil) // lower, ignored
	m.UpdateProgress(ctx, "s1", StageResearch, 60, nil)

	state, _ := m.Get(ctx, "s1")
	if got := state.Stages[StageResearch].Progress; got != 60 {
		t.Errorf("progress = %d, want 60", got)
	}
}

func TestCompleteFreezesProgress(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.StartStage(ctx, "s1", StageResearch)
	m.UpdateProgress(ctx, "s1", StageResearch, 50, nil)
	m.CompleteStage(ctx, "s1", StageResearch, nil)

	m.UpdateProgress(ctx, "s1", StageResearch, 75, nil) // frozen, ignored

	state, _ := m.Get(ctx, "s1")
	sp := state.Stages[StageResearch]
	if sp.Progress != 100 {
		t.Errorf("progress = %d, want 100", sp.Progress)
	}
	if sp.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", sp.Status)
	}
	if sp.EndedAt == nil {
		t.Error("end time not stamped")
	}
}

func TestStartStageReopenResetsProgress(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.StartStage(ctx, "s1", StageResearch)
	m.UpdateProgress(ctx, "s1", StageResearch, 80, nil)
	m.CompleteStage(ctx, "s1", StageResearch, nil)

	// Refinement reopens the finished stage; the meter starts over.
	m.StartStage(ctx, "s1", StageResearch)

	state, _ := m.Get(ctx, "s1")
	sp := state.Stages[StageResearch]
	if sp.Status != StatusInProgress {
		t.Errorf("status = %s, want in_progress", sp.Status)
	}
	if sp.Progress != 0 {
		t.Errorf("progress = %d, want 0 after reopen", sp.Progress)
	}
	if sp.EndedAt != nil {
		t.Error("end time still stamped after reopen")
	}

	m.UpdateProgress(ctx, "s1", StageResearch, 35, nil)
	state, _ = m.Get(ctx, "s1")
	if got := state.Stages[StageResearch].Progress; got != 35 {
		t.Errorf("progress = %d, want 35", got)
	}
}

func TestSnapshotIsolatedFromLaterMutation(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.StartStage(ctx, "s1", StageResearch)
	m.UpdateProgress(ctx, "s1", StageResearch, 30, nil)
	m.SetMetadata(ctx, "s1", "project_id", "proj-1")

	snapshot, err := m.Snapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	m.UpdateProgress(ctx, "s1", StageResearch, 90, nil)
	m.SetMetadata(ctx, "s1", "project_id", "proj-2")
	m.RecordError(ctx, "s1", StageResearch, "late failure")

	if got := snapshot.Stages[StageResearch].Progress; got != 30 {
		t.Errorf("snapshot progress = %d, want 30", got)
	}
	if got := snapshot.Metadata["project_id"]; got != "proj-1" {
		t.Errorf("snapshot metadata = %v, want proj-1", got)
	}
	if len(snapshot.Errors) != 0 {
		t.Errorf("snapshot errors = %d, want 0", len(snapshot.Errors))
	}
}

func TestSnapshotSafeForConcurrentEncoding(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.StartStage(ctx, "s1", StageResearch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		detail := &ResearchDetail{}
		for i := 0; i < 200; i++ {
			detail.PapersFound = i
			m.UpdateProgress(ctx, "s1", StageResearch, i%100, detail)
			m.SetMetadata(ctx, "s1", "round", i)
		}
	}()

	for i := 0; i < 200; i++ {
		snapshot, err := m.Snapshot(ctx, "s1")
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if _, err := json.Marshal(snapshot); err != nil {
			t.Fatalf("encode snapshot: %v", err)
		}
	}
	<-done
}

func TestFailStageKeepsWorkflowInspectable(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.Advance(ctx, "s1", StageClarification)
	m.Advance(ctx, "s1", StageResearch)
	m.StartStage(ctx, "s1", StageResearch)
	m.UpdateProgress(ctx, "s1", StageResearch, 40, nil)

	m.FailStage(ctx, "s1", StageResearch, errors.New("crawler unreachable"))

	state, _ := m.Get(ctx, "s1")
	sp := state.Stages[StageResearch]
	if sp.Status != StatusFailed {
		t.Errorf("status = %s, want failed", sp.Status)
	}
	if sp.Progress != 40 {
		t.Errorf("progress = %d, want frozen at 40", sp.Progress)
	}
	if state.CurrentStage != StageResearch {
		t.Errorf("current stage forced to %s", state.CurrentStage)
	}
	if len(state.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(state.Errors))
	}
}

func TestRecordErrorDeduplicatesPerStage(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.RecordError(ctx, "s1", StageResearch, "first failure")
	m.RecordError(ctx, "s1", StageResearch, "second failure")

	state, _ := m.Get(ctx, "s1")
	if len(state.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(state.Errors))
	}
	entry := state.Errors[0]
	if entry.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", entry.RetryCount)
	}
	if entry.Message != "second failure" {
		t.Errorf("message = %q, want latest", entry.Message)
	}

	m.RecordError(ctx, "s1", StageTesting, "different stage")
	state, _ = m.Get(ctx, "s1")
	if len(state.Errors) != 2 {
		t.Errorf("errors = %d, want 2 (one per stage)", len(state.Errors))
	}
}

func TestGetReloadsFromDurableStorage(t *testing.T) {
	store := newMapStore()
	ctx := context.Background()

	first := NewManager(store, nil, logger.NewNopLogger())
	first.Create(ctx, "s1")
	first.Advance(ctx, "s1", StageClarification)
	first.StartStage(ctx, "s1", StageClarification)
	first.UpdateProgress(ctx, "s1", StageClarification, 50, nil)

	// A second manager simulates a process restart over the same store.
	second := NewManager(store, nil, logger.NewNopLogger())
	state, err := second.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if state.CurrentStage != StageClarification {
		t.Errorf("stage = %s, want clarification", state.CurrentStage)
	}
	if state.Stages[StageClarification].Progress != 50 {
		t.Errorf("progress = %d, want 50", state.Stages[StageClarification].Progress)
	}

	if _, err := second.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
