package loyalty

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/epicure/pkg/event"
)

const defaultFeedSize = 200

// ActivityFeed keeps the most recent ledger events in memory. It is warmed by
// replaying the ledger stream and then follows it live.
type ActivityFeed struct {
	mu     sync.RWMutex
	events []event.LedgerEvent
	size   int

	stream events.StreamConsumer
	logger apt.Logger
}

func NewActivityFeed(stream events.StreamConsumer, size int, logger apt.Logger) *ActivityFeed {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if size <= 0 {
		size = defaultFeedSize
	}
	return &ActivityFeed{
		events: make([]event.LedgerEvent, 0, size),
		size:   size,
		stream: stream,
		logger: logger,
	}
}

func (f *ActivityFeed) Start(ctx context.Context) error {
	if f.stream == nil {
		f.logger.Info("activity feed has no stream, staying empty")
		return nil
	}
	if err := f.Warm(ctx); err != nil {
		f.logger.Info("activity feed replay failed", "error", err)
	}
	return f.stream.SubscribeStream(ctx, f.handleEvent)
}

func (f *ActivityFeed) Stop(ctx context.Context) error {
	return nil
}

// Warm replays stored ledger events.
func (f *ActivityFeed) Warm(ctx context.Context) error {
	messages, err := f.stream.Fetch(ctx, f.size*5)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		f.apply(msg.Data)
	}
	f.logger.Info("activity feed warmed", "events", len(messages))
	return nil
}

func (f *ActivityFeed) handleEvent(ctx context.Context, msg []byte) error {
	f.apply(msg)
	return nil
}

func (f *ActivityFeed) apply(msg []byte) {
	var evt event.LedgerEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		f.logger.Debug("skipping invalid ledger event", "error", err)
		return
	}
	if evt.EventType == "" {
		return
	}
	f.Add(evt)
}

// Add appends an event, dropping the oldest once the feed is full.
func (f *ActivityFeed) Add(evt event.LedgerEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == f.size {
		copy(f.events, f.events[1:])
		f.events = f.events[:f.size-1]
	}
	f.events = append(f.events, evt)
}

// Recent returns up to limit events, newest first.
func (f *ActivityFeed) Recent(limit int) []event.LedgerEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if limit <= 0 || limit > len(f.events) {
		limit = len(f.events)
	}
	out := make([]event.LedgerEvent, 0, limit)
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.events[i])
	}
	return out
}
