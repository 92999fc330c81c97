package workers

import (
	"context"
	"log/slog"
	"time"

	"relay-lab/contract"
)

// LivenessWorker runs the periodic probe cycle over all live connections.
// A connection whose flag is still down from the previous cycle is
// forcibly closed and pushed through the same cleanup path an explicit
// disconnect would take, so a crashed peer stays visible for at most one
// interval. Otherwise the flag is cleared and a probe goes out; the
// transport raises the flag again on the probe response or any inbound
// frame.
type LivenessWorker struct {
	log      *slog.Logger
	conns    contract.ConnLister
	router   contract.IRouter
	interval time.Duration
}

func NewLivenessWorker(log *slog.Logger, conns contract.ConnLister,
	router contract.IRouter, interval time.Duration) *LivenessWorker {
	return &LivenessWorker{log: log, conns: conns, router: router, interval: interval}
}

func (w *LivenessWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping liveness probes")
			return nil
		case <-ticker.C:
			w.Cycle(ctx)
		}
	}
}

// Cycle performs one probe pass. Exported so tests can drive the monitor
// without waiting on the ticker.
func (w *LivenessWorker) Cycle(ctx context.Context) {
	for _, conn := range w.conns.Snapshot() {
		if !conn.Alive() {
			w.log.Warn("Evicting unresponsive connection", "conn_id", conn.ID())
			if err := conn.Close(); err != nil {
				w.log.Debug("Closing evicted connection failed", "conn_id", conn.ID(), "err", err)
			}
			w.router.Disconnect(ctx, conn)
			continue
		}
		conn.MarkAlive(false)
		if err := conn.Probe(); err != nil {
			w.log.Debug("Probe failed", "conn_id", conn.ID(), "err", err)
		}
	}
}
