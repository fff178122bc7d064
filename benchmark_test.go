package critwatch

import (
	"context"
	"testing"

	"github.com/Tap30/critwatch/adapters"
)

// Benchmark the check every interception point pays while recording is off
func BenchmarkEnabled_Disabled(b *testing.B) {
	rec := NewRecording(RecordingOptions{})
	em := NewEmitter(rec)
	schema := CriticalCallSchema()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = em.Enabled(schema)
	}
}

func BenchmarkEnabled_Recording(b *testing.B) {
	rec := startedRecording(RecordingOptions{}, CriticalCallKind)
	em := NewEmitter(rec)
	schema := CriticalCallSchema()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = em.Enabled(schema)
	}
}

// Benchmark a full critical call with a bounded buffer
func BenchmarkOnCriticalCall(b *testing.B) {
	rec := startedRecording(RecordingOptions{MaxSize: 1 << 20}, CriticalCallKind)
	calls := NewCriticalCallEmitter(NewEmitter(rec), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		calls.OnCriticalCall(MethodGetPrimitiveArrayCritical, i%2 == 0)
	}
}

func BenchmarkOnCriticalCall_Parallel(b *testing.B) {
	rec := startedRecording(RecordingOptions{MaxSize: 1 << 20}, CriticalCallKind)
	calls := NewCriticalCallEmitter(NewEmitter(rec), nil)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			calls.OnCriticalCall(MethodGetStringCritical, false)
		}
	})
}

func BenchmarkDump(b *testing.B) {
	rec := startedRecording(RecordingOptions{}, CriticalCallKind)
	calls := NewCriticalCallEmitter(NewEmitter(rec), nil)
	for i := 0; i < 10_000; i++ {
		calls.OnCriticalCall(MethodGetPrimitiveArrayCritical, i%3 == 0)
	}
	storage := adapters.NewNoOpStorageAdapter()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := rec.Dump(context.Background(), storage); err != nil {
			b.Fatal(err)
		}
	}
}
