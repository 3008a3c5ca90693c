package janus

import (
	"sync"

	"janusbridge/tools/safe"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// EventSink receives unsolicited gateway messages.
type EventSink interface {
	OnEvent(msg *InboundMessage)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(msg *InboundMessage)

func (f EventSinkFunc) OnEvent(msg *InboundMessage) { f(msg) }

type closer interface {
	Close() error
}

// MultiSink delivers each event to every sink in order.
type MultiSink []EventSink

func (m MultiSink) OnEvent(msg *InboundMessage) {
	for _, s := range m {
		if s != nil {
			s.OnEvent(msg)
		}
	}
}

// Close closes every sink that has a Close method and combines the errors.
func (m MultiSink) Close() error {
	var err error
	for _, s := range m {
		if c, ok := s.(closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

// AsyncSink decouples the read loop from a slow sink: Offer never blocks, and events that do not
// fit in the queue are dropped.
type AsyncSink struct {
	next  EventSink
	queue chan *InboundMessage
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
	log   *zap.Logger
}

func NewAsyncSink(next EventSink, size int, log *zap.Logger) *AsyncSink {
	if size <= 0 {
		size = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &AsyncSink{
		next:  next,
		queue: make(chan *InboundMessage, size),
		done:  make(chan struct{}),
		log:   log,
	}
	s.wg.Add(1)
	safe.Go("janus-event-sink", s.loop)
	return s
}

func (s *AsyncSink) OnEvent(msg *InboundMessage) { s.Offer(msg) }

// Offer queues msg and reports whether it was accepted.
func (s *AsyncSink) Offer(msg *InboundMessage) bool {
	if s == nil || s.next == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.queue <- msg:
		return true
	default:
		s.log.Warn("event sink queue full, event dropped",
			zap.String("janus", msg.Janus), zap.Uint64("session_id", msg.SessionID))
		return false
	}
}

func (s *AsyncSink) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.queue:
			s.deliver(msg)
		}
	}
}

func (s *AsyncSink) deliver(msg *InboundMessage) {
	safe.Run("janus-event-sink-deliver", func() { s.next.OnEvent(msg) })
}

// Close stops the worker; queued events not yet delivered are discarded. The wrapped sink is
// closed if it has a Close method.
func (s *AsyncSink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		if c, ok := s.next.(closer); ok {
			err = c.Close()
		}
	})
	return err
}
