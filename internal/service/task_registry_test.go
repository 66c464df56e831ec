package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskWaitReturnsError(t *testing.T) {
	r := NewTaskRegistry()
	wantErr := errors.New("crawl failed")

	task := r.Run("s1", func() error {
		return wantErr
	})

	require.ErrorIs(t, task.Wait(), wantErr)
	assert.True(t, task.Done())
}

func TestTaskDoneIsNonBlocking(t *testing.T) {
	r := NewTaskRegistry()
	release := make(chan struct{})

	task := r.Run("s1", func() error {
		<-release
		return nil
	})

	assert.False(t, task.Done())
	close(release)
	require.NoError(t, task.Wait())
	assert.True(t, task.Done())
}

func TestRegistryTracksLatestTaskPerSession(t *testing.T) {
	r := NewTaskRegistry()

	first := r.Run("s1", func() error { return nil })
	require.NoError(t, first.Wait())

	second := r.Run("s1", func() error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	got, ok := r.Get("s1")
	require.True(t, ok)
	assert.Same(t, second, got)
	require.NoError(t, second.Wait())

	_, ok = r.Get("other")
	assert.False(t, ok)
}
