package mocks

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// FakeEventSource is an in-memory port.EventSource. Every Subscribe call opens a
// fresh FakeEventStream that tests feed with Push/Emit/End.
type FakeEventSource struct {
	mu           sync.Mutex
	streams      map[domain.DocumentID][]*FakeEventStream
	subscribeErr error
}

// NewFakeEventSource creates an empty FakeEventSource.
func NewFakeEventSource() *FakeEventSource {
	return &FakeEventSource{streams: make(map[domain.DocumentID][]*FakeEventStream)}
}

// FailSubscribe makes subsequent Subscribe calls return err.
func (f *FakeEventSource) FailSubscribe(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeErr = err
}

func (f *FakeEventSource) Subscribe(_ context.Context, id domain.DocumentID) (port.EventStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	s := &FakeEventStream{
		events: make(chan port.RawEvent, 64),
		closed: make(chan struct{}),
	}
	f.streams[id] = append(f.streams[id], s)
	return s, nil
}

// Latest returns the most recent stream opened for id, or nil.
func (f *FakeEventSource) Latest(id domain.DocumentID) *FakeEventStream {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.streams[id]
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

// Subscriptions returns how many times id was subscribed.
func (f *FakeEventSource) Subscriptions(id domain.DocumentID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams[id])
}

// FakeEventStream is a controllable port.EventStream.
type FakeEventStream struct {
	events    chan port.RawEvent
	closed    chan struct{}
	closeOnce sync.Once
	endOnce   sync.Once
}

func (s *FakeEventStream) Next() (port.RawEvent, error) {
	select {
	case ev, ok := <-s.events:
		if !ok {
			return port.RawEvent{}, io.EOF
		}
		return ev, nil
	case <-s.closed:
		return port.RawEvent{}, io.ErrClosedPipe
	}
}

func (s *FakeEventStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Push queues a raw event.
func (s *FakeEventStream) Push(name, data string) {
	s.events <- port.RawEvent{Name: name, Data: []byte(data)}
}

// Emit queues ev encoded the way the backend sends it.
func (s *FakeEventStream) Emit(ev domain.StreamEvent) {
	data, _ := json.Marshal(ev)
	s.events <- port.RawEvent{Name: ev.Type, Data: data}
}

// End closes the stream from the backend side.
func (s *FakeEventStream) End() {
	s.endOnce.Do(func() { close(s.events) })
}

// IsClosed reports whether the consumer closed the stream.
func (s *FakeEventStream) IsClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
