package memory

import (
	"context"
	"testing"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/repository"
	"ai-research-be/pkg/workflow"
)

func TestSessionRegistryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	registry := NewSessionRegistry(NewMemoryStore(), logger.NewNopLogger())

	session, err := registry.Create(ctx, "edge caching for CDNs")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if session.ID == "" {
		t.Fatal("session id not allocated")
	}
	if session.Stage != workflow.StageInitial {
		t.Errorf("stage = %s, want initial", session.Stage)
	}

	got, found := registry.Get(ctx, session.ID)
	if !found {
		t.Fatal("session not found after create")
	}
	if got.Topic != "edge caching for CDNs" {
		t.Errorf("topic = %q", got.Topic)
	}

	if _, found := registry.Get(ctx, "nope"); found {
		t.Error("unknown id must not resolve")
	}
}

func TestSessionRegistryListSkipsUndecodableEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	registry := NewSessionRegistry(store, logger.NewNopLogger())

	registry.Create(ctx, "topic one")
	registry.Create(ctx, "topic two")
	store.Set(ctx, repository.SessionKeyPrefix+"broken", []byte("not json"), repository.SessionTTL)

	sessions, err := registry.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("sessions = %d, want 2 (broken entry skipped)", len(sessions))
	}
}

func TestSessionRegistryDurableFallback(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := NewSessionRegistry(store, logger.NewNopLogger())
	session, _ := first.Create(ctx, "reload me")

	// Fresh registry over the same durable store simulates a restart.
	second := NewSessionRegistry(store, logger.NewNopLogger())
	got, found := second.Get(ctx, session.ID)
	if !found {
		t.Fatal("session not reloaded from durable store")
	}
	if got.Topic != "reload me" {
		t.Errorf("topic = %q", got.Topic)
	}
}
