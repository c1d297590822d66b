package activity

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/pubsub"
	pubsubRouter "github.com/invoicely/invoicely/internal/pubsub/router"
	"github.com/invoicely/invoicely/internal/types"
)

const defaultCapacity = 100

// Feed keeps the most recent ledger events in memory, newest last.
// It is a read model only; the invoice and payment tables stay authoritative.
type Feed struct {
	mu       sync.RWMutex
	events   []*types.LedgerEvent
	next     int
	full     bool
	capacity int
	logger   *logger.Logger
}

// NewFeed creates a feed sized from the activity configuration
func NewFeed(cfg *config.Configuration, logger *logger.Logger) *Feed {
	capacity := cfg.Activity.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Feed{
		events:   make([]*types.LedgerEvent, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

// RegisterHandlers subscribes the feed to every ledger topic
func (f *Feed) RegisterHandlers(router *pubsubRouter.Router, subscriber pubsub.Subscriber) {
	for _, topic := range types.LedgerTopics {
		router.AddNoPublishHandler(
			"activity_"+topic,
			topic,
			subscriber,
			f.processMessage,
		)
	}
}

func (f *Feed) processMessage(msg *message.Message) error {
	var event types.LedgerEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		f.logger.Errorw("failed to unmarshal ledger event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		return err
	}

	f.Append(&event)
	return nil
}

// Append records an event, evicting the oldest one when the feed is full
func (f *Feed) Append(event *types.LedgerEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events[f.next] = event
	f.next = (f.next + 1) % f.capacity
	if f.next == 0 {
		f.full = true
	}
}

// Recent returns up to limit events, newest first. A non-positive limit returns all.
func (f *Feed) Recent(limit int) []*types.LedgerEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	size := f.next
	if f.full {
		size = f.capacity
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	result := make([]*types.LedgerEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (f.next - i + f.capacity) % f.capacity
		result = append(result, f.events[idx])
	}
	return result
}
