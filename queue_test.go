package critwatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventBuffer_PushPreservesOrder(t *testing.T) {
	b := newEventBuffer(0)
	for i := 0; i < 3; i++ {
		require.Zero(t, b.push(sizedEvent(i)))
	}
	require.Equal(t, 3, b.Len())

	events := b.toSlice()
	for i, ev := range events {
		require.Equal(t, string(make([]byte, i)), ev.Value(0))
	}
	require.Equal(t, int64(20+21+22), b.Size())
}

func TestEventBuffer_EvictsOldestFirst(t *testing.T) {
	b := newEventBuffer(50)
	require.Zero(t, b.push(sizedEvent(0)))     // 20
	require.Zero(t, b.push(sizedEvent(5)))     // 25
	require.Equal(t, 1, b.push(sizedEvent(0))) // 65 > 50, drop the first

	require.Equal(t, 2, b.Len())
	require.Equal(t, int64(45), b.Size())
	require.Equal(t, string(make([]byte, 5)), b.toSlice()[0].Value(0))
}

func TestEventBuffer_OversizeEventEvictsItself(t *testing.T) {
	b := newEventBuffer(30)
	b.push(sizedEvent(0))
	require.Equal(t, 2, b.push(sizedEvent(100)))
	require.Zero(t, b.Len())
	require.Zero(t, b.Size())
}

func TestEventBuffer_Clear(t *testing.T) {
	b := newEventBuffer(0)
	b.push(sizedEvent(1))
	b.clear()
	require.Zero(t, b.Len())
	require.Zero(t, b.Size())
	require.Empty(t, b.toSlice())
}
