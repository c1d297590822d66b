package activity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/invoicely/invoicely/internal/config"
	"github.com/invoicely/invoicely/internal/logger"
	"github.com/invoicely/invoicely/internal/publisher"
	"github.com/invoicely/invoicely/internal/pubsub/memory"
	pubsubRouter "github.com/invoicely/invoicely/internal/pubsub/router"
	"github.com/invoicely/invoicely/internal/sentry"
	"github.com/invoicely/invoicely/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeed(capacity int) *Feed {
	cfg := config.GetDefaultConfig()
	cfg.Activity.Capacity = capacity
	return NewFeed(cfg, logger.NewNoopLogger())
}

func TestFeedEvictsOldest(t *testing.T) {
	feed := newFeed(3)
	for i := 0; i < 5; i++ {
		feed.Append(&types.LedgerEvent{ID: fmt.Sprintf("event_%d", i)})
	}

	recent := feed.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "event_4", recent[0].ID)
	assert.Equal(t, "event_2", recent[2].ID)

	assert.Len(t, feed.Recent(2), 2)
}

func TestFeedPartiallyFilled(t *testing.T) {
	feed := newFeed(10)
	assert.Empty(t, feed.Recent(5))

	feed.Append(&types.LedgerEvent{ID: "a"})
	feed.Append(&types.LedgerEvent{ID: "b"})

	recent := feed.Recent(5)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ID)
}

func TestFeedConsumesPublishedEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.GetDefaultConfig()
	log := logger.NewNoopLogger()
	ps := memory.NewPubSub(log)

	router, err := pubsubRouter.NewRouter(cfg, log, sentry.NewSentryService(cfg, log))
	require.NoError(t, err)

	feed := NewFeed(cfg, log)
	feed.RegisterHandlers(router, ps)

	go func() { _ = router.Run(ctx) }()
	defer router.Close()

	select {
	case <-router.Running():
	case <-ctx.Done():
		t.Fatal("router did not start")
	}

	pub := publisher.NewEventPublisher(ps, log)
	event := types.NewLedgerEvent(ctx, types.TopicInvoiceSent, time.Now())
	event.InvoiceID = "inv_1"
	require.NoError(t, pub.Publish(ctx, event))

	assert.Eventually(t, func() bool {
		recent := feed.Recent(1)
		return len(recent) == 1 && recent[0].ID == event.ID
	}, 5*time.Second, 10*time.Millisecond)
}
