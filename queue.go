package critwatch

import "container/list"

// eventBuffer is a FIFO of committed events capped by their cumulative size.
// It is not safe for concurrent use; Recording guards it with its mutex.
type eventBuffer struct {
	list    *list.List
	size    int64
	maxSize int64 // 0 means unlimited
}

func newEventBuffer(maxSize int64) *eventBuffer {
	return &eventBuffer{list: list.New(), maxSize: maxSize}
}

// push appends event and then evicts from the front until the buffer fits
// its cap again. It returns the number of events evicted. An event larger
// than the whole cap evicts everything, itself included.
func (b *eventBuffer) push(event RecordedEvent) int {
	b.list.PushBack(event)
	b.size += event.size
	if b.maxSize <= 0 {
		return 0
	}
	evicted := 0
	for b.size > b.maxSize {
		front := b.list.Front()
		if front == nil {
			break
		}
		b.list.Remove(front)
		b.size -= front.Value.(RecordedEvent).size
		evicted++
	}
	return evicted
}

// Len returns the number of retained events.
func (b *eventBuffer) Len() int {
	return b.list.Len()
}

// Size returns the cumulative size of retained events.
func (b *eventBuffer) Size() int64 {
	return b.size
}

// toSlice returns the retained events oldest first.
func (b *eventBuffer) toSlice() []RecordedEvent {
	events := make([]RecordedEvent, 0, b.list.Len())
	for e := b.list.Front(); e != nil; e = e.Next() {
		events = append(events, e.Value.(RecordedEvent))
	}
	return events
}

// clear drops every retained event.
func (b *eventBuffer) clear() {
	b.list.Init()
	b.size = 0
}
