package critwatch

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tap30/critwatch/adapters"
)

func criticalRecording(clock *fakeClock) (*Recording, *CriticalCallEmitter) {
	rec := startedRecording(RecordingOptions{Clock: clock.Now}, CriticalCallKind)
	return rec, NewCriticalCallEmitter(NewEmitter(rec), nil)
}

func TestCriticalCallEmitter_OnCriticalCall(t *testing.T) {
	rec, calls := criticalRecording(newFakeClock())
	calls.OnCriticalCall(MethodGetStringCritical, false)
	calls.OnCriticalCall(MethodGetPrimitiveArrayCritical, true)

	events := rec.Events()
	require.Len(t, events, 2)
	require.Equal(t, []any{false, MethodGetStringCritical}, events[0].Values())
	require.Equal(t, []any{true, MethodGetPrimitiveArrayCritical}, events[1].Values())
	require.True(t, events[0].Begin().Equal(events[0].End()))
}

func TestCriticalCallEmitter_Disabled(t *testing.T) {
	rec := startedRecording(RecordingOptions{})
	calls := NewCriticalCallEmitter(NewEmitter(rec), nil)
	calls.OnCriticalCall(MethodGetStringCritical, true)

	thread := calls.NewThread()
	thread.Acquire(MethodGetStringCritical)
	require.NoError(t, thread.Release(true))
	require.Zero(t, rec.Len())
}

func TestThreadTracker_Nesting(t *testing.T) {
	rec, calls := criticalRecording(newFakeClock())
	thread := calls.NewThread()

	t.Run("should emit one event for the outermost pair", func(t *testing.T) {
		thread.Acquire(MethodGetPrimitiveArrayCritical)
		thread.Acquire(MethodGetStringCritical)
		thread.Acquire(MethodGetPrimitiveArrayCritical)
		require.Equal(t, 3, thread.Depth())

		require.NoError(t, thread.Release(false))
		require.NoError(t, thread.Release(false))
		require.Zero(t, rec.Len(), "nested releases emit nothing")

		require.NoError(t, thread.Release(true))
		require.Zero(t, thread.Depth())

		events := rec.Events()
		require.Len(t, events, 1)
		require.Equal(t, []any{true, MethodGetPrimitiveArrayCritical}, events[0].Values())
		require.Greater(t, events[0].End().Sub(events[0].Begin()), time.Duration(0), "spans acquire to release")
	})

	t.Run("should start over after the outermost release", func(t *testing.T) {
		thread.Acquire(MethodGetStringCritical)
		require.NoError(t, thread.Release(false))

		events := rec.Events()
		require.Len(t, events, 2)
		require.Equal(t, []any{false, MethodGetStringCritical}, events[1].Values())
	})

	t.Run("should reject release without acquire", func(t *testing.T) {
		var stateErr *StateError
		require.ErrorAs(t, thread.Release(true), &stateErr)
		require.Zero(t, thread.Depth())
		require.Len(t, rec.Events(), 2)
	})
}

func TestThreadTracker_IndependentThreads(t *testing.T) {
	rec, calls := criticalRecording(newFakeClock())
	a, b := calls.NewThread(), calls.NewThread()

	a.Acquire(MethodGetPrimitiveArrayCritical)
	b.Acquire(MethodGetStringCritical)
	require.NoError(t, b.Release(false))
	require.NoError(t, a.Release(true))

	events := rec.Events()
	require.Len(t, events, 2)
	require.Equal(t, MethodGetStringCritical, events[0].Value(FieldMethodName))
	require.Equal(t, MethodGetPrimitiveArrayCritical, events[1].Value(FieldMethodName))
}

func TestThreadTracker_RecordingStoppedMidSection(t *testing.T) {
	var buf bytes.Buffer
	logger := adapters.NewPrintLoggerAdapter(adapters.LogLevelDebug).WithLogger(log.New(&buf, "", 0))

	rec := startedRecording(RecordingOptions{}, CriticalCallKind)
	thread := NewCriticalCallEmitter(NewEmitter(rec), logger).NewThread()

	thread.Acquire(MethodGetStringCritical)
	require.NoError(t, rec.Stop())
	require.NoError(t, thread.Release(false))
	require.Zero(t, rec.Len())
	require.Empty(t, buf.String(), "a discarded commit is not an error")
}
