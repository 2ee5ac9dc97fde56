// Package stream owns the push-stream subscription of the active document and
// turns its messages into typed notifications.
package stream

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"scanorder/internal/domain"
	"scanorder/internal/port"
)

// Messages delivered as failures when the stream itself breaks.
const (
	MsgStreamUnavailable = "Failed to connect to the extraction event stream"
	MsgStreamClosed      = "Extraction event stream closed before a result was delivered"
)

// Sink receives notifications on the subscription's reader goroutine. ctx is
// canceled once the subscription is released; a sink must stop blocking then.
type Sink func(ctx context.Context, n domain.Notification)

// Channel keeps at most one subscription open at a time.
type Channel struct {
	source port.EventSource
	logger *zap.Logger

	mu     sync.Mutex
	active *subscription
}

type subscription struct {
	id     domain.DocumentID
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stream  port.EventStream
	stopped bool
}

// NewChannel creates a Channel reading from source.
func NewChannel(source port.EventSource, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{source: source, logger: logger}
}

// Open subscribes to the push stream of id and delivers decoded notifications
// to sink, in order, until a terminal notification, Release, or ctx ends.
// A subscription for a different document is released first. Opening the
// document that is already being followed is a no-op.
//
// Open does not block on the network: connecting happens on the reader goroutine,
// and a failure to connect is delivered as a Failed notification.
func (c *Channel) Open(ctx context.Context, id domain.DocumentID, sink Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		if c.active.id == id && !c.active.finished() {
			return
		}
		c.active.stop()
		c.active = nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.active = sub
	go c.read(subCtx, sub, sink)
}

// Release closes the open subscription, if any, and waits for its reader to
// exit. No notification is delivered after Release returns.
func (c *Channel) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.stop()
		c.active = nil
	}
}

// DocumentID returns the document currently followed, or "".
func (c *Channel) DocumentID() domain.DocumentID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.active.finished() {
		return ""
	}
	return c.active.id
}

func (c *Channel) read(ctx context.Context, sub *subscription, sink Sink) {
	defer close(sub.done)
	defer sub.cancel()

	log := c.logger.With(zap.String("document_id", sub.id.String()))

	es, err := c.source.Subscribe(ctx, sub.id)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("event stream subscription failed", zap.Error(err))
			sink(ctx, domain.Failed{Message: MsgStreamUnavailable})
		}
		return
	}
	if !sub.attach(es) {
		return
	}
	defer func() { _ = es.Close() }()

	log.Debug("event stream opened")
	for {
		raw, err := es.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("event stream ended without a terminal event", zap.Error(err))
			sink(ctx, domain.Failed{Message: MsgStreamClosed})
			return
		}

		n, ok := Decode(raw)
		if !ok {
			log.Debug("dropping malformed event", zap.String("event", raw.Name), zap.ByteString("data", raw.Data))
			continue
		}
		if ctx.Err() != nil {
			return
		}
		sink(ctx, n)
		if domain.IsTerminalNotification(n) {
			log.Debug("event stream closed after terminal event")
			return
		}
	}
}

// attach records the opened stream. It returns false, closing es, when the
// subscription was stopped while connecting.
func (s *subscription) attach(es port.EventStream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		_ = es.Close()
		return false
	}
	s.stream = es
	return true
}

func (s *subscription) stop() {
	s.cancel()

	s.mu.Lock()
	s.stopped = true
	if s.stream != nil {
		_ = s.stream.Close()
	}
	s.mu.Unlock()

	<-s.done
}

func (s *subscription) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
