package testutil

import (
	"context"
	"sync"

	"github.com/invoicely/invoicely/internal/publisher"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/samber/lo"
)

// InMemoryEventPublisher records every published ledger event for assertions
type InMemoryEventPublisher struct {
	mu     sync.RWMutex
	events []*types.LedgerEvent
	err    error
}

var _ publisher.EventPublisher = (*InMemoryEventPublisher)(nil)

// NewInMemoryEventPublisher creates a new recording publisher
func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{
		events: make([]*types.LedgerEvent, 0),
	}
}

func (p *InMemoryEventPublisher) Publish(_ context.Context, event *types.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// FailWith makes every following Publish call return err
func (p *InMemoryEventPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Events returns the recorded events in publish order
func (p *InMemoryEventPublisher) Events() []*types.LedgerEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*types.LedgerEvent(nil), p.events...)
}

// EventsByTopic returns the recorded events of one topic
func (p *InMemoryEventPublisher) EventsByTopic(topic string) []*types.LedgerEvent {
	return lo.Filter(p.Events(), func(e *types.LedgerEvent, _ int) bool {
		return e.Topic == topic
	})
}

// Clear drops every recorded event
func (p *InMemoryEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = make([]*types.LedgerEvent, 0)
	p.err = nil
}
