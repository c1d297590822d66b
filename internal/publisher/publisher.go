package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	ierr "github.com/invoicely/invoicely/internal/errors"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/pubsub"
	"github.com/invoicely/invoicely/internal/types"
)

// EventPublisher publishes ledger events after the change they describe has committed
type EventPublisher interface {
	Publish(ctx context.Context, event *types.LedgerEvent) error
}

type eventPublisher struct {
	pubSub pubsub.PubSub
	logger *logger.Logger
}

// NewEventPublisher creates a publisher on top of pubSub
func NewEventPublisher(pubSub pubsub.PubSub, logger *logger.Logger) EventPublisher {
	return &eventPublisher{
		pubSub: pubSub,
		logger: logger,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event *types.LedgerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode event").
			Mark(ierr.ErrSystem)
	}

	messageID := event.ID
	if messageID == "" {
		messageID = watermill.NewUUID()
	}

	msg := message.NewMessage(messageID, payload)
	msg.Metadata.Set("request_id", event.RequestID)
	msg.Metadata.Set("user_id", event.UserID)
	msg.Metadata.Set("invoice_id", event.InvoiceID)

	p.logger.Debugw("publishing ledger event",
		"event_id", event.ID,
		"topic", event.Topic,
		"invoice_id", event.InvoiceID,
	)

	if err := p.pubSub.Publish(ctx, event.Topic, msg); err != nil {
		p.logger.Errorw("failed to publish ledger event",
			"error", err,
			"event_id", event.ID,
			"topic", event.Topic,
		)
		return ierr.WithError(err).
			WithHint("Failed to publish event").
			Mark(ierr.ErrSystem)
	}

	return nil
}
