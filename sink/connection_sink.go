package sink

import (
	"context"
	"fmt"
	"match-chat/contract"
	"match-chat/domain/event"
	"match-chat/errors"
	"sync"
)

var _ contract.EventSink = (*ConnectionSink)(nil)

// ConnectionSink is the bounded outbound queue of one realtime connection.
// Consume never blocks: a full or closed queue drops the event.
// The queue is never closed, the writer stops on Done instead.
type ConnectionSink struct {
	connID string
	events chan event.DomainEvent
	done   chan struct{}
	once   sync.Once
}

func NewConnectionSink(connID string, size int) *ConnectionSink {
	return &ConnectionSink{
		connID: connID,
		events: make(chan event.DomainEvent, size),
		done:   make(chan struct{}),
	}
}

func (s *ConnectionSink) Consume(_ context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return fmt.Errorf("%w: connection %s", errors.ErrSessionClosed, s.connID)
	default:
	}
	select {
	case s.events <- e:
		return nil
	default:
		return fmt.Errorf("%w: connection %s dropped %s", errors.ErrSinkFull, s.connID, e.Type())
	}
}

func (s *ConnectionSink) Events() <-chan event.DomainEvent { return s.events }

func (s *ConnectionSink) Done() <-chan struct{} { return s.done }

func (s *ConnectionSink) ConnID() string { return s.connID }

// Close is idempotent.
func (s *ConnectionSink) Close() {
	s.once.Do(func() { close(s.done) })
}
