//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"relay-lab/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives a copy of every outbound event, tagged with its
// destinations. Sinks are side channels (persistence, projections, UI);
// a slow sink must never delay routing.
type EventSink interface {
	Consume(ctx context.Context, e event.Tagged) error
}

// Conn is one transport-level duplex channel as seen by the core.
// Send must never block: implementations queue on a buffered channel and
// drop on overflow. Alive is the liveness flag the monitor cycles.
type Conn interface {
	ID() string
	Send(frame []byte)
	Probe() error
	Alive() bool
	MarkAlive(alive bool)
	Close() error
}

// IRouter is the command-submission surface of the protocol engine.
// Dispatch handles one inbound frame; Disconnect runs the cleanup path
// and is safe to invoke more than once for the same connection.
type IRouter interface {
	Dispatch(ctx context.Context, conn Conn, frame []byte)
	Disconnect(ctx context.Context, conn Conn)
}

// ConnLister exposes a snapshot of currently live connections,
// used by the liveness monitor.
type ConnLister interface {
	Snapshot() []Conn
}
