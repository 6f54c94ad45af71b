package events

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe()
	b, cancelB := bus.Subscribe()
	defer cancelA()
	defer cancelB()

	bus.Emit(BackupCompleted, "reliability", map[string]interface{}{"uploaded": false})

	assert.Equal(t, BackupCompleted, receive(t, a).Type)
	assert.Equal(t, BackupCompleted, receive(t, b).Type)
}

func TestBus_CancelUnsubscribesAndCloses(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	assert.Equal(t, 1, bus.SubscriberCount())

	cancel()
	cancel()

	assert.Equal(t, 0, bus.SubscriberCount())
	_, open := <-ch
	assert.False(t, open)

	// Publishing with no subscribers is a no-op
	bus.Emit(ErrorOccurred, "test", nil)
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Emit(ErrorOccurred, "test", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
}

func TestManager_EmitTyped(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	m := NewManager(bus, zerolog.Nop())
	m.EmitTyped("optimization", &OptimizationRejectedData{
		Objective: "YTM",
		Reason:    "solver",
		Status:    "Infeasible",
	})

	ev := receive(t, ch)
	assert.Equal(t, OptimizationRejected, ev.Type)
	assert.Equal(t, "optimization", ev.Module)
	require.NotNil(t, ev.Data)
	assert.Equal(t, "Infeasible", ev.Data["status"])
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	NewManager(bus, zerolog.Nop()).EmitError("scheduler", errors.New("disk full"), map[string]interface{}{"job": "backup"})

	ev := receive(t, ch)
	assert.Equal(t, ErrorOccurred, ev.Type)
	assert.Equal(t, "disk full", ev.Data["error"])
}

func TestManager_NilSafe(t *testing.T) {
	var m *Manager
	m.EmitTyped("x", &BackupCompletedData{})

	NewManager(nil, zerolog.Nop()).EmitTyped("x", &BackupCompletedData{})
}
