package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"go.uber.org/mock/gomock"

	"relay-lab/domain/event"
	"relay-lab/mocks"
)

func TestEventFanout_Offers_Event_To_Every_Sink(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first := mocks.NewMockEventSink(ctrl)
	second := mocks.NewMockEventSink(ctrl)

	evt := event.Tagged{
		SessionID: "math42",
		Dest:      []string{"conn-host"},
		Event:     event.PromptUpdate{Text: "What is 2+2?"},
	}

	// Given both sinks accept the event
	first.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)
	second.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	worker := NewEventFanout(log, nil, time.Second, first, second)
	worker.Fanout(context.Background(), evt)
}

func TestEventFanout_A_Failing_Sink_Does_Not_Stop_The_Others(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	failing := mocks.NewMockEventSink(ctrl)
	healthy := mocks.NewMockEventSink(ctrl)

	evt := event.Tagged{SessionID: "math42", Event: event.SessionClosed{}}

	failing.EXPECT().Consume(gomock.Any(), evt).Return(context.DeadlineExceeded).Times(1)
	healthy.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	worker := NewEventFanout(log, nil, time.Second, failing, healthy)
	worker.Fanout(context.Background(), evt)
}

func TestEventFanout_Applies_Per_Sink_Timeout(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slow := mocks.NewMockEventSink(ctrl)
	evt := event.Tagged{SessionID: "math42", Event: event.SessionClosed{}}

	// Given a sink blocking until its context is canceled
	slow.EXPECT().Consume(gomock.Any(), evt).
		DoAndReturn(func(ctx context.Context, _ event.Tagged) error {
			<-ctx.Done()     // Waiting for timeout to trigger cancellation
			return ctx.Err() // Sending back "context deadline exceeded"
		}).
		Times(1)

	worker := NewEventFanout(log, nil, 20*time.Millisecond, slow)

	// When fan-out runs, the timeout frees it instead of hanging forever
	worker.Fanout(context.Background(), evt)
}

func TestEventFanout_Run_Drains_The_Tap_Stream(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sink := mocks.NewMockEventSink(ctrl)
	taps := make(chan event.Tagged, 1)

	done := make(chan struct{})
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ event.Tagged) error {
			close(done)
			return nil
		}).
		Times(1)

	worker := NewEventFanout(log, taps, time.Second, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	taps <- event.Tagged{SessionID: "math42", Event: event.Created{SessionID: "math42"}}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event was never offered to the sink")
	}
}
