package critwatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tap30/critwatch/adapters"
)

func newTestReporter(t *testing.T, storage StorageAdapter) *Reporter {
	t.Helper()
	r, err := NewReporter(ReporterConfig{
		Name:           "test",
		StorageAdapter: storage,
		LoggerAdapter:  adapters.NewNoOpLoggerAdapter(),
		Clock:          newFakeClock().Now,
		Labels:         map[string]string{"suite": "reporter"},
	})
	require.NoError(t, err)
	return r
}

func TestNewReporter_Validation(t *testing.T) {
	_, err := NewReporter(ReporterConfig{})
	require.Error(t, err)

	_, err = NewReporter(ReporterConfig{StorageAdapter: adapters.NewNoOpStorageAdapter(), MaxSize: -1})
	require.Error(t, err)

	_, err = NewReporter(ReporterConfig{StorageAdapter: adapters.NewNoOpStorageAdapter(), MaxRetries: -1})
	require.Error(t, err)

	r, err := NewReporter(ReporterConfig{StorageAdapter: adapters.NewNoOpStorageAdapter()})
	require.NoError(t, err)
	require.NotNil(t, r.loggerAdapter, "defaults to a print logger")
}

func TestReporter_Lifecycle(t *testing.T) {
	storage := adapters.NewMemoryStorageAdapter()
	r := newTestReporter(t, storage)

	t.Run("should ignore calls before init", func(t *testing.T) {
		r.OnCriticalCall(MethodGetStringCritical, true)
		_, err := r.NewThread()
		require.Error(t, err)
		require.Error(t, r.Checkpoint(context.Background()))
		require.Nil(t, r.Recording())
	})

	require.NoError(t, r.Init())
	require.NoError(t, r.Init(), "init is idempotent")
	require.Equal(t, StateRecording, r.Recording().State())

	r.OnCriticalCall(MethodGetStringCritical, true)
	thread, err := r.NewThread()
	require.NoError(t, err)
	thread.Acquire(MethodGetPrimitiveArrayCritical)
	thread.Acquire(MethodGetStringCritical)
	require.NoError(t, thread.Release(false))
	require.NoError(t, thread.Release(false))
	require.Equal(t, 2, r.Recording().Len())

	require.NoError(t, r.Checkpoint(context.Background()))
	require.Equal(t, 1, storage.Saves())

	rec := r.Recording()
	require.NoError(t, r.Dispose(context.Background()))
	require.NoError(t, r.Dispose(context.Background()), "dispose is idempotent")
	require.Equal(t, StateClosed, rec.State())
	require.Equal(t, 2, storage.Saves())

	r.OnCriticalCall(MethodGetStringCritical, false)
	var stateErr *StateError
	require.ErrorAs(t, r.Init(), &stateErr)

	reader, err := OpenStorage(context.Background(), storage)
	require.NoError(t, err)
	require.NotNil(t, reader.Manifest().StoppedAt)
	require.Equal(t, map[string]string{"suite": "reporter"}, reader.Manifest().Labels)

	n, err := CountWhere(reader, And(KindIs(CriticalCallKind), FieldEquals("isCopy", true)))
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestReporter_DisposeWithoutFlush(t *testing.T) {
	storage := adapters.NewMemoryStorageAdapter()
	r := newTestReporter(t, storage)
	require.NoError(t, r.Init())
	r.OnCriticalCall(MethodGetStringCritical, false)

	r.DisposeWithoutFlush()
	require.Zero(t, storage.Saves())
	require.Equal(t, StateClosed, r.Recording().State())
}

func TestReporter_DisposeReportsFinalDumpFailure(t *testing.T) {
	storage := newFlakyStorage(100)
	r := newTestReporter(t, storage)
	require.NoError(t, r.Init())

	err := r.Dispose(context.Background())
	require.ErrorIs(t, err, errSaveFailed)
	require.Equal(t, StateClosed, r.Recording().State(), "released even when the dump fails")
}
