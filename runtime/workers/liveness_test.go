package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"go.uber.org/mock/gomock"

	"relay-lab/contract"
	"relay-lab/mocks"
)

func TestLivenessWorker_Evicts_Unresponsive_Connection(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := mocks.NewMockConn(ctrl)
	lister := mocks.NewMockConnLister(ctrl)
	router := mocks.NewMockIRouter(ctrl)

	// Given a connection whose flag stayed down since the last cycle
	lister.EXPECT().Snapshot().Return([]contract.Conn{conn}).Times(1)
	conn.EXPECT().Alive().Return(false).Times(1)
	conn.EXPECT().ID().Return("conn-dead").AnyTimes()

	// Then it is closed and pushed through the disconnect path
	conn.EXPECT().Close().Return(nil).Times(1)
	router.EXPECT().Disconnect(gomock.Any(), conn).Times(1)

	worker := NewLivenessWorker(log, lister, router, time.Minute)
	worker.Cycle(context.Background())
}

func TestLivenessWorker_Probes_Responsive_Connection(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conn := mocks.NewMockConn(ctrl)
	lister := mocks.NewMockConnLister(ctrl)
	router := mocks.NewMockIRouter(ctrl)

	// Given a connection that answered since the last cycle
	lister.EXPECT().Snapshot().Return([]contract.Conn{conn}).Times(1)
	conn.EXPECT().Alive().Return(true).Times(1)

	// Then the flag is lowered and a fresh probe goes out, nothing else
	conn.EXPECT().MarkAlive(false).Times(1)
	conn.EXPECT().Probe().Return(nil).Times(1)

	worker := NewLivenessWorker(log, lister, router, time.Minute)
	worker.Cycle(context.Background())
}
