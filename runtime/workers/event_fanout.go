package workers

import (
	"context"
	"log/slog"
	"time"

	"relay-lab/contract"
	"relay-lab/domain/event"
)

// EventFanout drains the router's tap stream and offers each tagged event
// to every subscriber sink under a per-event timeout.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. EventFanout is not a message broker:
// it exists so that persistence and projections observe the relay without
// ever blocking it.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.Tagged
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, events <-chan event.Tagged,
	sinkTimeout time.Duration, sinks ...contract.EventSink) *EventFanout {
	return &EventFanout{log: log, events: events, sinks: sinks, sinkTimeout: sinkTimeout}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fan-out")
			return nil
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout offers one event to each sink in turn.
func (w *EventFanout) Fanout(ctx context.Context, evt event.Tagged) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink rejected event", "tag", evt.Event.EventTag(), "err", err)
		}
		cancel()
	}
}
